package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string // empty means ask the server
	UseSSL    bool
}

// MinioStore stores objects in a MinIO (or any S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	log    zerolog.Logger
}

// NewMinioStore creates a client for opts.Bucket. No request is made until
// EnsureReady.
func NewMinioStore(opts MinioOptions, log zerolog.Logger) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinioStore{
		client: client,
		bucket: opts.Bucket,
		log:    log.With().Str("component", "minio-storage").Logger(),
	}, nil
}

// EnsureReady creates the bucket if it doesn't exist.
func (s *MinioStore) EnsureReady(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &IOError{Op: "init", Err: fmt.Errorf("failed to check bucket existence: %w", err)}
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return &IOError{Op: "init", Err: fmt.Errorf("failed to create bucket: %w", err)}
	}
	s.log.Info().Str("bucket", s.bucket).Msg("created bucket")
	return nil
}

func (s *MinioStore) Write(ctx context.Context, handle string, data []byte) error {
	h, err := cleanHandle(handle)
	if err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	_, err = s.client.PutObject(ctx, s.bucket, h, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	return nil
}

func (s *MinioStore) Read(ctx context.Context, handle string) ([]byte, error) {
	h, err := cleanHandle(handle)
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: err}
	}
	obj, err := s.client.GetObject(ctx, s.bucket, h, minio.GetObjectOptions{})
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: minioNotExist(err)}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: minioNotExist(err)}
	}
	return data, nil
}

func (s *MinioStore) Size(ctx context.Context, handle string) (int64, error) {
	h, err := cleanHandle(handle)
	if err != nil {
		return 0, &IOError{Op: "size", Handle: handle, Err: err}
	}
	info, err := s.client.StatObject(ctx, s.bucket, h, minio.StatObjectOptions{})
	if err != nil {
		return 0, &IOError{Op: "size", Handle: handle, Err: minioNotExist(err)}
	}
	return info.Size, nil
}

func (s *MinioStore) Delete(ctx context.Context, handle string) error {
	h, err := cleanHandle(handle)
	if err != nil {
		return &IOError{Op: "delete", Handle: handle, Err: err}
	}
	if err := s.client.RemoveObject(ctx, s.bucket, h, minio.RemoveObjectOptions{}); err != nil {
		return &IOError{Op: "delete", Handle: handle, Err: err}
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, &IOError{Op: "list", Err: obj.Err}
		}
		objects = append(objects, Object{Handle: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
	}
	return objects, nil
}

func minioNotExist(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return err
}
