// Package storage talks to the S3-compatible bucket holding list media.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/multierr"
)

// s3Client is an interface for testability.
type s3Client interface {
	s3.ListObjectsV2APIClient
	DeleteObjects(ctx context.Context, input *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Configured reports whether enough is set to reach a bucket.
func (c Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Bucket struct {
	client s3Client
	bucket string
}

// New returns a Bucket, or nil when cfg is not configured.
func New(cfg Config) *Bucket {
	if !cfg.Configured() {
		return nil
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &Bucket{client: s3.New(opts), bucket: cfg.Bucket}
}

// ListPrefix is where a list's media lives.
func ListPrefix(listID string) string {
	return "lists/" + listID + "/"
}

// DeletePrefix removes every object under prefix and returns how many were
// deleted. Per-object failures are collected and returned together after
// the remaining pages have been attempted.
func (b *Bucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	var deleted int
	var errs error
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, multierr.Append(errs, fmt.Errorf("list objects: %w", err))
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete objects: %w", err))
			continue
		}
		deleted += len(ids) - len(out.Errors)
		for _, e := range out.Errors {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}
	return deleted, errs
}
