package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/studyshare/backend/internal/config"
	"github.com/studyshare/backend/pkg/logger"
	"go.uber.org/zap"
)

// MinioStore keeps blobs in a single bucket, keyed <kind>/<name>.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	s := &MinioStore{client: client, bucket: cfg.MinioBucket}
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

func objectKey(kind, name string) string {
	return kind + "/" + name
}

func (s *MinioStore) Save(ctx context.Context, kind, name string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(kind, name), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Log.Error("MinIO upload failed",
			zap.String("object", objectKey(kind, name)),
			zap.Int64("size", size),
			zap.Error(err),
		)
	}
	return err
}

func (s *MinioStore) Open(ctx context.Context, kind, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(kind, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat forces the round-trip so a missing key
	// surfaces here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return obj, nil
}

func (s *MinioStore) Delete(ctx context.Context, kind, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey(kind, name), minio.RemoveObjectOptions{})
	if err != nil {
		logger.Log.Error("MinIO delete failed",
			zap.String("object", objectKey(kind, name)),
			zap.Error(err),
		)
	}
	return err
}
