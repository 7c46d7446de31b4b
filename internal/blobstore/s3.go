package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/meshpack/meshpack/internal/cid"
)

// api is the slice of the SDK client surface the store uses.
// Narrow on purpose so tests can substitute their own implementation.
type api interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 is a Store backed by an S3-compatible object store.
type S3 struct {
	client api
}

// S3Options tunes the underlying SDK client.
type S3Options struct {
	// Region overrides the region from the SDK environment.
	Region string
	// Endpoint points at an S3-compatible server; path-style addressing is
	// switched on alongside it, as most compatible servers require it.
	Endpoint string
	// Timeout bounds a single HTTP request when positive.
	Timeout time.Duration
}

// NewS3 builds an S3 store using the default AWS credential chain.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load object store configuration: %w", err)
	}

	if opts.Region != "" {
		cfg.Region = opts.Region
	}

	var clientOpts []func(*s3.Options)

	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	if opts.Timeout > 0 {
		httpClient := &http.Client{Timeout: opts.Timeout}

		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return &S3{client: s3.NewFromConfig(cfg, clientOpts...)}, nil
}

// NewS3WithAPI wires a custom SDK surface; primarily used by tests.
func NewS3WithAPI(client api) *S3 {
	return &S3{client: client}
}

// Exists reports whether the blob is already present in the bucket.
func (s *S3) Exists(ctx context.Context, bucket string, id cid.ID) (bool, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(id.String()),
	}

	_, err := s.client.HeadObject(ctx, input)
	if err != nil {
		// The SDK reports missing objects through typed and untyped variants,
		// so match on the error text.
		if isMissingObjectError(err) {
			return false, nil
		}

		return false, fmt.Errorf("head %s/%s: %w", bucket, id, err)
	}

	return true, nil
}

// Put stores the blob under its identifier.
func (s *S3) Put(ctx context.Context, bucket string, id cid.ID, contentType string, data []byte) error {
	if contentType == "" {
		contentType = DefaultContentType
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(id.String()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, id, err)
	}

	return nil
}

// Get returns the blob's bytes, or ErrNotFound when the bucket has no such
// identifier.
func (s *S3) Get(ctx context.Context, bucket string, id cid.ID) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(id.String()),
	}

	output, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isMissingObjectError(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, id, ErrNotFound)
		}

		return nil, fmt.Errorf("get %s/%s: %w", bucket, id, err)
	}

	// Best-effort cleanup.
	defer func() {
		_ = output.Body.Close()
	}()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, id, err)
	}

	return data, nil
}

// isMissingObjectError matches the "object absent" answers across SDK error shapes.
func isMissingObjectError(err error) bool {
	message := err.Error()

	return strings.Contains(message, "NotFound") || strings.Contains(message, "NoSuchKey")
}
