package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/Rectify/core/errors"
)

// Writer streams files into a compressed tar archive. Entries are placed
// under a single top-level directory.
type Writer struct {
	tw      *tar.Writer
	comp    io.WriteCloser
	file    *os.File
	baseDir string
	modTime time.Time
}

// NewWriter creates the archive at path, choosing the compression from
// its extension. Parent directories are created. Every entry gets
// modTime, which keeps archives of the same content byte-identical.
func NewWriter(path, baseDir string, modTime time.Time) (*Writer, error) {
	format := DetectFormat(path)
	if format == "unknown" {
		return nil, errors.NewUnsupported("archive format", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewIO("create directory", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.NewIO("create archive", path, err)
	}

	var comp io.WriteCloser
	if format == "tar.xz" {
		xw, err := xz.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, errors.NewIO("start xz stream", path, err)
		}
		comp = xw
	} else {
		comp = gzip.NewWriter(f)
	}

	return &Writer{
		tw:      tar.NewWriter(comp),
		comp:    comp,
		file:    f,
		baseDir: baseDir,
		modTime: modTime,
	}, nil
}

// AddFile writes one regular file entry.
func (w *Writer) AddFile(name string, data []byte) error {
	header := &tar.Header{
		Name:     w.baseDir + "/" + name,
		Mode:     0644,
		Size:     int64(len(data)),
		ModTime:  w.modTime,
		Typeflag: tar.TypeReg,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return errors.NewIO("write header", name, err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return errors.NewIO("write", name, err)
	}
	return nil
}

// Close flushes the tar stream, the compressor and the file, in that order.
func (w *Writer) Close() error {
	err := w.tw.Close()
	if cerr := w.comp.Close(); err == nil {
		err = cerr
	}
	if ferr := w.file.Close(); err == nil {
		err = ferr
	}
	if err != nil {
		return errors.NewIO("close archive", w.file.Name(), err)
	}
	return nil
}
