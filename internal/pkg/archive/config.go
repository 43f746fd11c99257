// Package archive copies paid invoices to S3-compatible object storage.
package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/PropFox/internal/pkg/env"
)

// Config holds the object storage settings for paid invoice archives
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("ARCHIVE_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("ARCHIVE_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("ARCHIVE_S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("ARCHIVE_S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("ARCHIVE_S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("ARCHIVE_S3_ACCESS_KEY_ID is required when the invoice archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("ARCHIVE_S3_SECRET_ACCESS_KEY is required when the invoice archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("ARCHIVE_S3_BUCKET_NAME is required when the invoice archive is enabled")
		}
	}

	return config, nil
}

// ObjectKey builds invoices/<provider>/YYYY/MM/<number>.json from the payment date.
func ObjectKey(providerID uint, invoiceNumber string, paidAt time.Time) string {
	paidAt = paidAt.UTC()
	return fmt.Sprintf("invoices/%d/%04d/%02d/%s.json", providerID, paidAt.Year(), int(paidAt.Month()), invoiceNumber)
}
