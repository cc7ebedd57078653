// Package storage is the flat storage area holding uploaded originals and
// derived renditions, keyed by filename.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("storage: file not found")

type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a flat name -> bytes mapping. Names never contain path separators;
// callers sanitize them before use.
type Store interface {
	// Put writes r under name, replacing any existing file.
	Put(ctx context.Context, name string, r io.Reader) error
	// Open returns ErrNotFound when name is absent.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Stat(ctx context.Context, name string) (FileInfo, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]FileInfo, error)
}

// ReadAll returns the whole content of name.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	return io.ReadAll(rc)
}
