package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fernwick/trapline"
)

// Compile-time interface check
var _ trapline.FileStorage = (*LocalStorage)(nil)
var _ trapline.FileStorage = (*S3Storage)(nil)

// NewFileStorage creates a photo storage instance based on the provider
// configuration. Keys are supplied by the caller; the visit engine derives
// them from the session and station IDs so a photo is traceable without a
// database lookup.
func NewFileStorage(ctx context.Context, logger *slog.Logger, cfg trapline.StorageConfig) (trapline.FileStorage, error) {
	switch cfg.Provider {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		logger.Info("initialized S3 photo storage",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region))
		return &S3Storage{
			client:  client,
			bucket:  cfg.S3Bucket,
			region:  cfg.S3Region,
			baseURL: cfg.S3BaseURL,
		}, nil
	default:
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
		logger.Info("initialized local photo storage",
			slog.String("path", cfg.LocalPath),
			slog.String("url", cfg.LocalURL))
		return &LocalStorage{
			basePath: cfg.LocalPath,
			baseURL:  cfg.LocalURL,
		}, nil
	}
}

// LocalStorage implements trapline.FileStorage on local disk. Intended for
// development and single-node deployments.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// Upload saves a photo to local disk under its key.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("storage key is required")
	}

	filePath := filepath.Join(s.basePath, key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("creating directories: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		// Leave the partial file; the next upload for this key overwrites it.
		return "", fmt.Errorf("writing file: %w", err)
	}

	return s.GetURL(key), nil
}

// Delete removes a photo from local disk. Missing files are not an error so
// the compensating delete after a failed save stays idempotent.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	filePath := filepath.Join(s.basePath, key)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// GetURL returns the URL to access the photo.
func (s *LocalStorage) GetURL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, key)
}

// Exists checks if a photo exists in local storage.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking file: %w", err)
}

// S3Storage implements trapline.FileStorage on AWS S3.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

// Upload uploads a photo to S3.
func (s *S3Storage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("storage key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading to S3: %w", err)
	}

	return s.GetURL(key), nil
}

// Delete removes a photo from S3.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting from S3: %w", err)
	}
	return nil
}

// GetURL returns the URL to access the photo.
func (s *S3Storage) GetURL(key string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Exists checks if a photo exists in S3.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}
