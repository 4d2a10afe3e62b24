// Package s3blob stores quote capture files and archived opportunity batches
// in S3-compatible object storage. It works against AWS S3 as well as
// providers like MinIO and Cloudflare R2 via a custom endpoint.
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig describes the object store to connect to.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for S3-compatible providers.
	// Empty means standard AWS S3.
	Endpoint string

	// Region is the bucket region, or whatever the provider expects there.
	Region string

	// Bucket holds both capture files and archive batches.
	Bucket string

	AccessKey string
	SecretKey string

	// UseSSL picks the scheme when Endpoint is given without one.
	UseSSL bool

	// ForcePathStyle puts the bucket in the URL path instead of the host.
	// Most non-AWS providers need it.
	ForcePathStyle bool
}

// Client wraps the AWS SDK client plus the bucket every reader and writer in
// this package operates on.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New connects to the object store described by cfg.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(cfg.Endpoint, cfg.UseSSL))
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
	}, nil
}

// Close exists for symmetry with the other wired clients; the SDK's HTTP
// client needs no teardown.
func (c *Client) Close() error {
	return nil
}

// S3 returns the underlying SDK client.
func (c *Client) S3() *s3.Client {
	return c.s3
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// withScheme prepends https:// or http:// when the endpoint lacks a scheme.
func withScheme(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
