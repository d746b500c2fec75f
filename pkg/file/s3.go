package file

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/thothlabs/thoth/pkg/errors"
)

/*
S3Store keeps uploads in an S3-compatible bucket under owner/name keys.
It works against MinIO and any other S3 API endpoint.
*/
type S3Store struct {
	client *minio.Client
	bucket string
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
}

/*
NewS3Store connects to the endpoint and ensures the bucket exists.
*/
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.ErrConfig.WithMessagef("failed to connect to object store: %v", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to check bucket: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.ErrPersistence.WithMessagef("failed to create bucket: %v", err)
		}
	}

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Save(ctx context.Context, owner, name string, body io.Reader, limit int64) (int64, error) {
	key, err := s.key(owner, name)
	if err != nil {
		return 0, err
	}

	reader := body
	if limit > 0 {
		reader = io.LimitReader(body, limit+1)
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, errors.ErrPersistence.WithMessagef("failed to store upload: %v", err)
	}

	if limit > 0 && info.Size > limit {
		if removeErr := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); removeErr != nil {
			return 0, errors.ErrPersistence.WithMessagef("failed to discard oversized upload: %v", removeErr)
		}
		return 0, errors.ErrTooLarge.WithMessagef("upload exceeds the %d byte limit", limit)
	}

	return info.Size, nil
}

func (s *S3Store) Open(ctx context.Context, owner, name string) (io.ReadCloser, error) {
	key, err := s.key(owner, name)
	if err != nil {
		return nil, err
	}

	// Stat first: GetObject defers errors to the first read, which is too
	// late to send a clean status line.
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.ErrNotFound.WithMessagef("file %s not found", name)
		}
		return nil, errors.ErrPersistence.WithMessagef("failed to stat file: %v", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to open file: %v", err)
	}

	return obj, nil
}

func (s *S3Store) Remove(ctx context.Context, owner, name string) error {
	key, err := s.key(owner, name)
	if err != nil {
		return err
	}

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return errors.ErrNotFound.WithMessagef("file %s not found", name)
		}
		return errors.ErrPersistence.WithMessagef("failed to stat file: %v", err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.ErrPersistence.WithMessagef("failed to remove file: %v", err)
	}

	return nil
}

func (s *S3Store) key(owner, name string) (string, error) {
	if err := validateComponent(owner); err != nil {
		return "", err
	}
	if err := validateComponent(name); err != nil {
		return "", err
	}
	return owner + "/" + name, nil
}
