// Package archive mirrors every delivered report to an S3-compatible bucket
// so history survives Slack's retention window.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores a rendered report. kind is a short slug such as
// "notes", "diff" or "period-7".
type Archiver interface {
	PutReport(ctx context.Context, account, kind string, takenAt time.Time, text string) error
}

type S3Archive struct {
	client *s3.Client
	bucket string
}

type Config struct {
	Endpoint string // non-empty for R2 or another S3-compatible endpoint
	Bucket   string
	Region   string
}

// NewS3 builds the archive. Credentials come from the standard AWS
// environment and config chain.
func NewS3(ctx context.Context, cfg Config) (*S3Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Archive{client: client, bucket: cfg.Bucket}, nil
}

func (a *S3Archive) PutReport(ctx context.Context, account, kind string, takenAt time.Time, text string) error {
	if text == "" {
		return nil
	}

	key := fmt.Sprintf("reports/%s/%d_%s.txt", account, takenAt.Unix(), kind)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata: map[string]string{
			"account": account,
			"kind":    kind,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload report %s: %w", key, err)
	}
	return nil
}

// Noop satisfies Archiver when no bucket is configured.
type Noop struct{}

func (Noop) PutReport(context.Context, string, string, time.Time, string) error { return nil }
