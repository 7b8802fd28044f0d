package archive

import (
	"archive/tar"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/core/syntax"
	"github.com/FocuswithJustin/Rectify/internal/store"
	"github.com/FocuswithJustin/Rectify/internal/validation"
)

// BundleVersion is written into every manifest.
const BundleVersion = "1"

// ManifestName is the name of the manifest entry inside a bundle.
const ManifestName = "manifest.json"

// GraphExt is the extension of document entries.
const GraphExt = ".graph"

// Manifest lists the documents of a bundle.
type Manifest struct {
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Documents []ManifestEntry `json:"documents"`
}

// ManifestEntry describes one document entry.
type ManifestEntry struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Revision int    `json:"revision,omitempty"`
	Hash     string `json:"hash"`
}

// Document is a named graph, optionally tagged with the store revision
// it was exported from.
type Document struct {
	Name     string
	Revision int
	Graph    graph.Graph
}

// BundleName derives a bundle's base name from its file name.
func BundleName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{ExtTarXz, ExtTarGz} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// WriteBundle writes docs to path as a tar.xz or tar.gz bundle: one
// compact-syntax file per document plus manifest.json.
func WriteBundle(path string, docs []Document, createdAt time.Time) error {
	m := Manifest{Version: BundleVersion, CreatedAt: createdAt.UTC()}
	seen := make(map[string]bool)
	for _, d := range docs {
		if err := validation.DocumentName(d.Name); err != nil {
			return err
		}
		if seen[d.Name] {
			return errors.NewValidation("document", "duplicate name "+d.Name)
		}
		seen[d.Name] = true
	}

	w, err := NewWriter(path, BundleName(path), createdAt)
	if err != nil {
		return err
	}
	for _, d := range docs {
		file := d.Name + GraphExt
		if err := w.AddFile(file, []byte(syntax.Format(d.Graph)+"\n")); err != nil {
			w.Close()
			return err
		}
		m.Documents = append(m.Documents, ManifestEntry{
			Name:     d.Name,
			File:     file,
			Revision: d.Revision,
			Hash:     store.Hash(d.Graph),
		})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		w.Close()
		return errors.Wrap(err, "encode manifest")
	}
	if err := w.AddFile(ManifestName, data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadBundle reads a bundle written by WriteBundle. Every document is
// parsed, validated and checked against the manifest fingerprint.
// Documents are returned in manifest order.
func ReadBundle(path string) (Manifest, []Document, error) {
	var m Manifest
	var haveManifest bool
	texts := make(map[string]string)

	err := IterateFile(path, func(header *tar.Header, r io.Reader) (bool, error) {
		if header.Typeflag != tar.TypeReg {
			return false, nil
		}
		name := entryName(header.Name)
		data, err := io.ReadAll(r)
		if err != nil {
			return true, errors.NewIO("read", name, err)
		}
		if name == ManifestName {
			if err := json.Unmarshal(data, &m); err != nil {
				return true, &errors.ParseError{Format: "manifest", Path: name, Message: err.Error(), Err: err}
			}
			haveManifest = true
		} else if strings.HasSuffix(name, GraphExt) {
			texts[name] = strings.TrimSuffix(string(data), "\n")
		}
		return false, nil
	})
	if err != nil {
		return m, nil, err
	}
	if !haveManifest {
		return m, nil, errors.NewNotFound("archive entry", ManifestName)
	}

	docs := make([]Document, 0, len(m.Documents))
	for _, e := range m.Documents {
		if err := validation.DocumentName(e.Name); err != nil {
			return m, nil, err
		}
		text, ok := texts[e.File]
		if !ok {
			return m, nil, errors.NewNotFound("archive entry", e.File)
		}
		g, err := syntax.Parse(text)
		if err != nil {
			return m, nil, errors.Wrapf(err, "document %s", e.Name)
		}
		if got := store.Hash(g); got != e.Hash {
			return m, nil, &errors.ValidationError{
				Field:   "hash",
				Value:   got,
				Message: "document " + e.Name + " does not match its manifest fingerprint",
			}
		}
		docs = append(docs, Document{Name: e.Name, Revision: e.Revision, Graph: g})
	}
	return m, docs, nil
}
