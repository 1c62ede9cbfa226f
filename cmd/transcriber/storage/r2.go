package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/whisperhallu/transcriber/cmd/transcriber/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Client uploads transcription artifacts to an S3-compatible bucket
// (Cloudflare R2).
type R2Client struct {
	cfg    config.R2Config
	client *s3.Client
}

func NewR2Client(ctx context.Context, cfg config.R2Config) (*R2Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("object storage is not configured")
	}
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &R2Client{
		cfg:    cfg,
		client: client,
	}, nil
}

// Upload stores body under key and returns the object's public URL.
func (c *R2Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	slog.Debug("uploaded object", slog.String("bucket", c.cfg.Bucket), slog.String("key", key))

	base := c.cfg.PublicBaseURL
	if base == "" {
		base = strings.TrimSuffix(c.cfg.Endpoint, "/") + "/" + c.cfg.Bucket
	}

	return strings.TrimSuffix(base, "/") + "/" + key, nil
}
