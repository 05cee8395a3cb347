package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Sink stores artifacts in an S3 bucket. URIs have the form s3://bucket/key.
type S3Sink struct {
	client S3API
	bucket string
	region string
}

// S3SinkOption configures an S3Sink.
type S3SinkOption func(*S3Sink)

// WithS3Client sets a custom S3 client (useful for testing).
func WithS3Client(c S3API) S3SinkOption {
	return func(s *S3Sink) { s.client = c }
}

// WithS3Region overrides the region from the default AWS config chain.
func WithS3Region(region string) S3SinkOption {
	return func(s *S3Sink) { s.region = region }
}

// NewS3Sink creates a new S3 blob sink.
func NewS3Sink(ctx context.Context, bucket string, opts ...S3SinkOption) (*S3Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name required")
	}
	s := &S3Sink{bucket: bucket}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if s.region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(s.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = s3.NewFromConfig(cfg)
	}
	return s, nil
}

// Put uploads data to prefix+key.
func (s *S3Sink) Put(ctx context.Context, prefix, key string, data []byte, contentType string) (string, error) {
	objectKey := strings.TrimLeft(prefix+key, "/")
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("putting %s to S3: %w", objectKey, err)
	}
	return "s3://" + s.bucket + "/" + objectKey, nil
}

// List returns the URIs of all objects under prefix.
func (s *S3Sink) List(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(strings.TrimLeft(prefix, "/")),
	})
	var uris []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			uris = append(uris, "s3://"+s.bucket+"/"+aws.ToString(obj.Key))
		}
	}
	return sortedCopy(uris), nil
}

// Get downloads the object at uri.
func (s *S3Sink) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := splitBucketURI(uri, "s3")
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("getting %s from S3: %w", uri, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	return data, nil
}
