package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOAPI is the subset of the MinIO client used by MinIOSink.
type MinIOAPI interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// MinIOConfig holds connection settings for an S3-compatible endpoint.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

// MinIOSink stores artifacts on a MinIO (or other S3-compatible) server.
// URIs have the form s3://bucket/key.
type MinIOSink struct {
	client MinIOAPI
	bucket string
}

// MinIOSinkOption configures a MinIOSink.
type MinIOSinkOption func(*MinIOSink)

// WithMinIOClient sets a custom client (useful for testing).
func WithMinIOClient(c MinIOAPI) MinIOSinkOption {
	return func(s *MinIOSink) { s.client = c }
}

// NewMinIOSink connects to cfg.Endpoint and creates the bucket if missing.
func NewMinIOSink(ctx context.Context, cfg MinIOConfig, opts ...MinIOSinkOption) (*MinIOSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("MinIO bucket name required")
	}
	s := &MinIOSink{bucket: cfg.Bucket}
	for _, o := range opts {
		o(s)
	}
	if s.client != nil {
		return s, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	s.client = cli
	return s, nil
}

// Put uploads data to prefix+key.
func (s *MinIOSink) Put(ctx context.Context, prefix, key string, data []byte, contentType string) (string, error) {
	objectKey := strings.TrimLeft(prefix+key, "/")
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("putting %s to MinIO: %w", objectKey, err)
	}
	return "s3://" + s.bucket + "/" + objectKey, nil
}

// List returns the URIs of all objects under prefix.
func (s *MinIOSink) List(ctx context.Context, prefix string) ([]string, error) {
	var uris []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    strings.TrimLeft(prefix, "/"),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing MinIO objects: %w", obj.Err)
		}
		uris = append(uris, "s3://"+s.bucket+"/"+obj.Key)
	}
	return sortedCopy(uris), nil
}

// Get downloads the object at uri.
func (s *MinIOSink) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := splitBucketURI(uri, "s3")
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting %s from MinIO: %w", uri, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	return data, nil
}
