// Package export writes documents as a tree of JSON files, one file per
// document path, for inspecting job output locally.
package export

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/teranos/legisync/am"
	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/errors"
)

// Exporter writes documents under a base directory
type Exporter struct {
	fs   afero.Fs
	base string

	mu      sync.Mutex
	written []string
}

// New creates an exporter rooted at base on fs
func New(fs afero.Fs, base string) *Exporter {
	return &Exporter{fs: fs, base: base}
}

// NewOS creates an exporter on the local filesystem
func NewOS(base string) *Exporter {
	return New(afero.NewOsFs(), base)
}

// Base returns the export root
func (e *Exporter) Base() string {
	return e.base
}

// FilePath maps a document path to its file: <base>/<segments...>.json
func (e *Exporter) FilePath(p batch.Path) string {
	parts := append([]string{e.base}, p.Segments()...)
	return filepath.Join(parts...) + ".json"
}

// WriteDocument serializes data to the file for path, creating directories
// as needed, and returns the file written
func (e *Exporter) WriteDocument(path string, data any) (string, error) {
	p, err := batch.ParsePath(path)
	if err != nil {
		return "", err
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "encode %s", path)
	}

	file := e.FilePath(p)
	if err := e.fs.MkdirAll(filepath.Dir(file), am.DefaultDirPermissions); err != nil {
		return "", errors.Wrapf(err, "create directory for %s", path)
	}
	if err := afero.WriteFile(e.fs, file, append(encoded, '\n'), am.DefaultFilePermissions); err != nil {
		return "", errors.Wrapf(err, "write %s", file)
	}

	e.mu.Lock()
	e.written = append(e.written, file)
	e.mu.Unlock()
	return file, nil
}

// WriteOperations exports the effect of set operations. Updates merge into
// an existing file; deletes remove it. It stops at the first failure.
func (e *Exporter) WriteOperations(ops []batch.Operation) (int, error) {
	written := 0
	for _, op := range ops {
		switch op.Kind {
		case batch.KindSet:
			data := op.Data
			if op.Merge {
				existing, err := e.ReadDocument(op.Path.String())
				switch {
				case err == nil:
					for k, v := range data {
						existing[k] = v
					}
					data = existing
				case !errors.IsNotFoundError(err):
					return written, err
				}
			}
			if _, err := e.WriteDocument(op.Path.String(), data); err != nil {
				return written, err
			}
			written++
		case batch.KindUpdate:
			existing, err := e.ReadDocument(op.Path.String())
			if err != nil {
				return written, err
			}
			for k, v := range op.Data {
				existing[k] = v
			}
			if _, err := e.WriteDocument(op.Path.String(), existing); err != nil {
				return written, err
			}
			written++
		case batch.KindDelete:
			file := e.FilePath(op.Path)
			if err := e.fs.Remove(file); err != nil {
				if exists, _ := afero.Exists(e.fs, file); exists {
					return written, errors.Wrapf(err, "remove %s", file)
				}
			}
		}
	}
	return written, nil
}

// ReadDocument reads back an exported document
func (e *Exporter) ReadDocument(path string) (map[string]any, error) {
	p, err := batch.ParsePath(path)
	if err != nil {
		return nil, err
	}

	file := e.FilePath(p)
	data, err := afero.ReadFile(e.fs, file)
	if err != nil {
		if exists, _ := afero.Exists(e.fs, file); !exists {
			return nil, errors.Mark(errors.Newf("no exported document at %s", file), errors.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "read %s", file)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode %s", file)
	}
	return doc, nil
}

// Written returns every file written so far, in order
func (e *Exporter) Written() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.written...)
}
