/*
Package storage presigns direct browser uploads and downloads of chat images and
avatars against an S3-compatible bucket.
*/
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by Stat for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ObjectInfo is the subset of object metadata the relay checks before serving a download.
type ObjectInfo struct {
	ContentType string
	Size        int64
}

// Service defines the public interface for the file storage service.
type Service interface {
	// PresignUpload generates a pre-signed PUT URL bound to the given type and size.
	PresignUpload(ctx context.Context, key, mimeType string, size int64, ttl time.Duration) (string, error)

	// PresignDownload generates a pre-signed GET URL.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Stat returns the metadata of key, or ErrObjectNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes the object specified by key.
	Delete(ctx context.Context, key string) error
}

// NewService returns the S3-compatible implementation for cfg.
func NewService(ctx context.Context, cfg ServiceConfig) (Service, error) {
	return newS3Client(ctx, cfg)
}
