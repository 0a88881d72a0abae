package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

// LocalStore keeps blobs under rootDir/<kind>/<name>.
type LocalStore struct {
	rootDir string
}

func NewLocalStore(rootDir string) (*LocalStore, error) {
	for _, kind := range []string{KindMaterial, KindAvatar} {
		if err := os.MkdirAll(filepath.Join(rootDir, kind), 0755); err != nil {
			return nil, err
		}
	}
	return &LocalStore{rootDir: rootDir}, nil
}

func (s *LocalStore) path(kind, name string) string {
	// name is sanitized upstream, but Base guards against a caller
	// passing a path anyway.
	return filepath.Join(s.rootDir, kind, filepath.Base(name))
}

func (s *LocalStore) Save(ctx context.Context, kind, name string, r io.Reader, size int64, contentType string) error {
	f, err := os.Create(s.path(kind, name))
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}

	// Sync before returning: the metadata record is only written after
	// Save succeeds, so the bytes must actually be on disk by then.
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *LocalStore) Open(ctx context.Context, kind, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(kind, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, kind, name string) error {
	err := os.Remove(s.path(kind, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		logger.Log.Error("Failed to remove blob",
			zap.String("kind", kind),
			zap.String("name", name),
			zap.Error(err),
		)
		return err
	}
	return nil
}
