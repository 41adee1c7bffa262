package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Open when the key does not exist.
var ErrObjectNotFound = errors.New("stored object not found")

// Store persists uploaded files under flat keys.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
