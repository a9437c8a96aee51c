package blobstore

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/config"
)

// MinioStore is the production BlobStore, backed by an S3-compatible
// bucket. Put refuses to overwrite an existing key: it stats the key first
// and writes only if the key is absent. The stat and the write are two
// separate calls, not one atomic conditional put, and no lock is held
// around them.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "connect to blob store", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	exists, err := m.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.New(apperrors.Duplicate, "blob already written for this key")
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "blob put failed", err)
	}
	return nil
}

func (m *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NotFound, "blob get failed", err)
	}
	return obj, nil
}

func (m *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.StoreUnavailable, "blob stat failed", err)
	}
	return true, nil
}
