// Package samples serves the bundled sample images offered in place of an
// upload.
package samples

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
)

var ErrNotFound = errors.New("samples: sample not found")

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".tif": {}, ".tiff": {}, ".webp": {},
}

// IsImageName reports whether name carries a supported image extension.
func IsImageName(name string) bool {
	_, ok := imageExts[strings.ToLower(path.Ext(name))]
	return ok
}

// Library is a read-only set of sample images: the regular image files at the
// top level of fsys.
type Library struct {
	fsys fs.FS
}

func NewLibrary(fsys fs.FS) *Library {
	return &Library{fsys: fsys}
}

func (l *Library) Open(name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) || strings.Contains(name, "/") || !IsImageName(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	info, err := fs.Stat(l.fsys, name)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return l.fsys.Open(name)
}

// Exists is Open without the read.
func (l *Library) Exists(name string) bool {
	f, err := l.Open(name)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// List returns sample names in lexical order.
func (l *Library) List() ([]string, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsImageName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
