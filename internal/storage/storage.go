package storage

import (
	"context"
	"errors"
	"io"
)

// Object kinds separate material files from profile pictures in the
// backing store (subdirectories on disk, key prefixes in MinIO).
const (
	KindMaterial = "materials"
	KindAvatar   = "avatars"
)

// ErrObjectNotFound is returned when the requested blob does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore persists uploaded bytes. Implementations: LocalStore
// (default, on-disk) and MinioStore.
type BlobStore interface {
	Save(ctx context.Context, kind, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, kind, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, kind, name string) error
}
