// Package s3source reads flat files straight from S3 or an S3-compatible
// store. Objects are streamed; nothing is buffered beyond the decoder's
// line reader.
package s3source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

var (
	ErrInvalidConfig      = errors.New("s3source: invalid configuration")
	ErrFailedToLoadConfig = errors.New("s3source: failed to load AWS config")
	ErrInvalidURI         = errors.New("s3source: invalid object uri")
	ErrBucketNotFound     = errors.New("s3source: bucket not found")
	ErrAccessDenied       = errors.New("s3source: access denied")
	ErrServiceUnavailable = errors.New("s3source: service unavailable")
)

// API is the subset of the S3 client used here. *s3.Client satisfies it.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config contains connection settings.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for S3-compatible services
	ForcePathStyle  bool   // For S3-compatible services like MinIO
	DefaultBucket   string // Used by ParseURI when a uri names no bucket
}

// Option configures a Client.
type Option func(*options)

type options struct {
	api           API
	configOptions []func(*config.LoadOptions) error
}

// WithAPI sets a pre-configured client. Useful for testing with mocks.
func WithAPI(api API) Option {
	return func(o *options) { o.api = api }
}

// WithConfigOption adds a custom AWS config option.
func WithConfigOption(opt func(*config.LoadOptions) error) Option {
	return func(o *options) { o.configOptions = append(o.configOptions, opt) }
}

// Client opens S3 objects as flatfile sources.
type Client struct {
	api           API
	defaultBucket string
}

// New builds a client from cfg, loading the default AWS credential chain
// unless static keys are given.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.api != nil {
		return &Client{api: o.api, defaultBucket: cfg.DefaultBucket}, nil
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrInvalidConfig)
	}

	awsOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsOptions = append(awsOptions,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			)),
		)
	}
	awsOptions = append(awsOptions, o.configOptions...)

	awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
	}

	api := s3.NewFromConfig(awsConfig, func(so *s3.Options) {
		if cfg.Endpoint != "" {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		so.UsePathStyle = cfg.ForcePathStyle
	})
	return &Client{api: api, defaultBucket: cfg.DefaultBucket}, nil
}

// ParseURI splits "s3://bucket/key". Without the scheme the uri is a key
// in the default bucket, or "bucket/key" when there is none.
func (c *Client) ParseURI(uri string) (bucket, key string, err error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		bucket, key, _ = strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
	case c.defaultBucket != "":
		bucket, key = c.defaultBucket, strings.TrimPrefix(uri, "/")
	default:
		bucket, key, _ = strings.Cut(uri, "/")
	}
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

// Object returns a source for bucket/key. Each Open issues a new GET, so
// the source can be decoded more than once.
func (c *Client) Object(bucket, key string) flatfile.Source {
	return &objectSource{api: c.api, bucket: bucket, key: key}
}

type objectSource struct {
	api    API
	bucket string
	key    string
}

func (s *objectSource) Name() string {
	return "s3://" + s.bucket + "/" + s.key
}

// Open checks the object size against limits before streaming the body.
func (s *objectSource) Open(ctx context.Context, limits flatfile.Limits) (io.ReadCloser, error) {
	head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, classifyS3Error(err, s.Name())
	}
	if size := aws.ToInt64(head.ContentLength); limits.MaxFileSize > 0 && size > limits.MaxFileSize {
		return nil, &flatfile.ConfigError{
			Op:  "open " + s.Name(),
			Err: fmt.Errorf("%w: %d bytes exceeds %d", flatfile.ErrFileTooLarge, size, limits.MaxFileSize),
		}
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, classifyS3Error(err, s.Name())
	}
	return out.Body, nil
}

// classifyS3Error maps S3 failures onto the decoder's source errors where
// one fits.
func classifyS3Error(err error, name string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return &flatfile.ConfigError{Op: "open " + name, Err: fmt.Errorf("%w: %v", flatfile.ErrSourceNotFound, err)}
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); code {
		case "NoSuchKey", "NotFound":
			return &flatfile.ConfigError{Op: "open " + name, Err: fmt.Errorf("%w: %v", flatfile.ErrSourceNotFound, err)}
		case "NoSuchBucket":
			return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
		case "AccessDenied", "Forbidden":
			return &flatfile.ConfigError{Op: "open " + name, Err: fmt.Errorf("%w: %w", flatfile.ErrNotReadable, ErrAccessDenied)}
		case "SlowDown", "ServiceUnavailable":
			return fmt.Errorf("%w: %s", ErrServiceUnavailable, name)
		default:
			return fmt.Errorf("open %s failed (code: %s): %w", name, code, err)
		}
	}
	return fmt.Errorf("open %s: %w", name, err)
}
