package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// S3Options configures an S3Store.
type S3Options struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKeyID  string
	SecretKey    string
	UsePathStyle bool
}

// S3Store stores objects in an AWS S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

func NewS3Store(ctx context.Context, opts S3Options, log zerolog.Logger) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is not configured")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &S3Store{
		client: client,
		bucket: bucket,
		log:    log.With().Str("component", "s3-storage").Logger(),
	}, nil
}

// EnsureReady performs a HeadBucket request.
func (s *S3Store) EnsureReady(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return &IOError{Op: "init", Err: err}
	}
	return nil
}

func (s *S3Store) Write(ctx context.Context, handle string, data []byte) error {
	h, err := cleanHandle(handle)
	if err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(h),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	return nil
}

func (s *S3Store) Read(ctx context.Context, handle string) ([]byte, error) {
	h, err := cleanHandle(handle)
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: err}
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(h),
	})
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: s3NotExist(err)}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &IOError{Op: "read", Handle: handle, Err: err}
	}
	return data, nil
}

func (s *S3Store) Size(ctx context.Context, handle string) (int64, error) {
	h, err := cleanHandle(handle)
	if err != nil {
		return 0, &IOError{Op: "size", Handle: handle, Err: err}
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(h),
	})
	if err != nil {
		return 0, &IOError{Op: "size", Handle: handle, Err: s3NotExist(err)}
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3Store) Delete(ctx context.Context, handle string) error {
	h, err := cleanHandle(handle)
	if err != nil {
		return &IOError{Op: "delete", Handle: handle, Err: err}
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(h),
	})
	if err != nil {
		return &IOError{Op: "delete", Handle: handle, Err: err}
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, &IOError{Op: "list", Err: err}
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Handle:  aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

func s3NotExist(err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	}
	return err
}
