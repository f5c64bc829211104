package cachestore

import (
	"context"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shipline/shipline/internal/ctxlog"
)

// S3Store keeps cache entries in an S3-compatible bucket so ephemeral workers
// share one dependency cache. Objects are named "<key>.tar.gz" under an
// optional prefix.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// S3Config carries the connection settings for an S3-backed cache.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Insecure  bool
}

// NewS3Store connects to the configured bucket. Credentials fall back to the
// standard AWS environment variables when not set explicitly.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 cache requires both an endpoint and a bucket")
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure s3 cache client: %w", err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) objectName(key string) string {
	if s.prefix == "" {
		return key + ".tar.gz"
	}
	return s.prefix + "/" + key + ".tar.gz"
}

// Has implements Store.
func (s *S3Store) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Restore implements Store.
func (s *S3Store) Restore(ctx context.Context, key string, root string) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	found, err := s.Has(ctx, key)
	if err != nil || !found {
		return false, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return false, err
	}
	defer obj.Close()

	if err := unpack(obj, root); err != nil {
		return false, fmt.Errorf("failed to restore cache entry %q: %w", key, err)
	}
	logger.Debug("Cache entry restored from s3 store.", "key", key, "bucket", s.bucket)
	return true, nil
}

// Save implements Store.
func (s *S3Store) Save(ctx context.Context, key string, root string, paths []string) error {
	logger := ctxlog.FromContext(ctx)

	// Spool to a temp file first: PutObject needs the size up front, and the
	// archive has to be complete before anything is uploaded.
	tmp, err := os.CreateTemp("", "shipline-cache-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := pack(tmp, root, paths); err != nil {
		return fmt.Errorf("failed to archive cache entry %q: %w", key, err)
	}
	size, err := tmp.Seek(0, 2)
	if err != nil {
		return err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.objectName(key), tmp, size, minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	if err != nil {
		return fmt.Errorf("failed to upload cache entry %q: %w", key, err)
	}
	logger.Debug("Cache entry saved to s3 store.", "key", key, "bucket", s.bucket, "size", size)
	return nil
}
