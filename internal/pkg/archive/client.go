package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// ObjectStore is the write side of the archive bucket.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) error
}

// Client writes archive objects to S3 or an S3-compatible service
type Client struct {
	s3Client *s3.Client
	bucket   string
}

// NewClient creates the S3 client and checks that the bucket is reachable
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("invoice archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", cfg.BucketName, err)
	}

	log.Infof("[Archive] Initialized S3 client for bucket: %s", cfg.BucketName)
	return &Client{s3Client: s3Client, bucket: cfg.BucketName}, nil
}

// Put uploads body under key
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata:      metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Infof("[Archive] Uploaded s3://%s/%s (%d bytes)", c.bucket, key, len(body))
	return nil
}
