package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds construction parameters for S3Store.
type S3Config struct {
	Bucket          string
	Region          string // default us-east-1
	Endpoint        string // optional; set for MinIO and other S3-compatible services
	PathStyle       bool
	AccessKeyID     string // optional; empty uses the default credentials chain
	SecretAccessKey string
	URLPrefix       string       // prefix of returned paths; default is the object URL
	HTTPClient      *http.Client // optional
}

// S3Store writes images to a single S3 bucket. Object keys are the file names.
type S3Store struct {
	client    *s3.Client
	bucket    string
	urlPrefix string
}

// NewS3 creates an S3 image store.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})

	prefix := cfg.URLPrefix
	if prefix == "" {
		switch {
		case cfg.Endpoint != "":
			prefix = cfg.Endpoint + "/" + cfg.Bucket
		default:
			prefix = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket, urlPrefix: prefix}, nil
}

// Driver implements Store.
func (s *S3Store) Driver() string { return DriverS3 }

// Put implements Store. The body is buffered so the SDK can sign a seekable
// payload; uploads are already capped by the handler.
func (s *S3Store) Put(ctx context.Context, filename string, r io.Reader, contentType string) (Stored, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Stored{}, fmt.Errorf("read image %s: %w", filename, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(filename),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Stored{}, fmt.Errorf("put image %s: %w", filename, err)
	}
	return Stored{Filename: filename, Path: joinURL(s.urlPrefix, filename)}, nil
}
