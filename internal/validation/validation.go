// Package validation checks user-supplied document names, paths and
// import files before they reach the store or the file system.
package validation

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/Rectify/core/errors"
)

// Limits on user input.
const (
	// MaxFileSize is the largest file accepted for import (256 MB).
	MaxFileSize = 256 << 20
	// MaxNameLength is the longest accepted document name, in bytes.
	MaxNameLength = 255
	// MaxPathLength is the longest accepted path, in bytes.
	MaxPathLength = 4096
)

// DocumentName checks that name can be used as a document name. Names
// become bundle entry names, so they must be usable as file names: no
// path separators, no control characters, no leading hyphen, and
// neither "." nor "..".
func DocumentName(name string) error {
	fail := func(msg string) error {
		return errors.NewValidation("document", fmt.Sprintf("%s: %q", msg, name))
	}
	switch {
	case name == "":
		return errors.NewValidation("document", "name must not be empty")
	case len(name) > MaxNameLength:
		return fail("name too long")
	case name == "." || name == "..":
		return fail("reserved name")
	case strings.ContainsAny(name, `/\`):
		return fail("path separator not allowed")
	case strings.HasPrefix(name, "-"):
		return fail("name cannot start with hyphen")
	case strings.TrimSpace(name) != name:
		return fail("leading or trailing space not allowed")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fail("control character not allowed")
		}
	}
	return nil
}

// Path checks a file system path for emptiness, length and control
// characters.
func Path(path string) error {
	switch {
	case path == "":
		return errors.NewValidation("path", "must not be empty")
	case len(path) > MaxPathLength:
		return errors.NewValidation("path", "too long")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return errors.NewValidation("path", fmt.Sprintf("control character not allowed: %q", path))
		}
	}
	return nil
}

// FileType is the kind of an import file.
type FileType string

// File types.
const (
	FileTypeTarXZ   FileType = "tar.xz"
	FileTypeTarGZ   FileType = "tar.gz"
	FileTypeXML     FileType = "xml"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes are the signatures checked by DetectFileType.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeTarXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeTarGZ, []byte{0x1f, 0x8b}},
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
}

// DetectFileType reads the start of r and reports the type of the file
// named filename. When the extension names a known type the content must
// agree with it; otherwise the content alone decides.
func DetectFileType(r io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, errors.NewIO("read header of", filename, err)
	}
	buf = buf[:n]

	detected := fromContent(buf)
	expected := fromExtension(filename)
	switch {
	case expected == FileTypeUnknown:
		return detected, nil
	case detected == expected:
		return detected, nil
	}
	return FileTypeUnknown, errors.NewValidation("file",
		fmt.Sprintf("%s: extension suggests %s but content is %s", filepath.Base(filename), expected, detected))
}

func fromContent(buf []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType
		}
	}
	text := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(text, []byte("<")) && isLikelyText(text) {
		return FileTypeXML
	}
	return FileTypeUnknown
}

func fromExtension(filename string) FileType {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"):
		return FileTypeTarXZ
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FileTypeTarGZ
	}
	switch filepath.Ext(lower) {
	case ".xml":
		return FileTypeXML
	case ".db", ".sqlite", ".sqlite3":
		return FileTypeSQLite
	default:
		return FileTypeUnknown
	}
}

// isLikelyText reports whether buf looks like text: no NUL bytes and
// almost no other control characters.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 || bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b == '\t' || b == '\n' || b == '\r':
			printable++
		case b < 0x20 || b == 0x7f:
			control++
		case b < 0x80:
			printable++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
