package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for a MinIO/S3-compatible backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore implements Store using MinIO
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates a new MinIO-backed store
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// ContainerExists reports whether the configured bucket exists.
func (s *MinioStore) ContainerExists(ctx context.Context) (bool, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return exists, nil
}

// Walk iterates all objects under prefix, stopping early when fn returns false.
func (s *MinioStore) Walk(ctx context.Context, prefix string, fn func(ObjectInfo) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if !fn(ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		}) {
			return nil
		}
	}
	return nil
}

// Exists reports whether an object is present at key.
func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return true, nil
}

// GetText downloads an object and returns its contents as text.
func (s *MinioStore) GetText(ctx context.Context, key string) (string, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return string(data), nil
}

// PutText uploads text to key, overwriting any existing object.
func (s *MinioStore) PutText(ctx context.Context, key string, text string) error {
	return s.PutBytes(ctx, key, []byte(text), "text/plain; charset=utf-8")
}

// PutBytes uploads raw bytes to key, overwriting any existing object.
func (s *MinioStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

// Copy performs a server-side copy of src to dst. MinIO copies
// synchronously, so a nil error means the copy already landed.
func (s *MinioStore) Copy(ctx context.Context, src, dst string) (CopyStatus, error) {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: src},
	)
	if err != nil {
		return CopyFailed, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return CopySuccess, nil
}

// CopyState reports the status of a copy targeting dst by checking whether
// the destination object exists.
func (s *MinioStore) CopyState(ctx context.Context, dst string) (CopyStatus, error) {
	exists, err := s.Exists(ctx, dst)
	if err != nil {
		return CopyFailed, err
	}
	if exists {
		return CopySuccess, nil
	}
	return CopyPending, nil
}

// Delete removes the object at key.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PresignedGetURL returns a time-bounded read URL for key. This is the
// SAS-equivalent access token used for handing audio locations to the
// transcription service.
func (s *MinioStore) PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL for %s: %w", key, err)
	}
	return presigned.String(), nil
}

// BaseURL returns the direct (unsigned) URL prefix for objects in the bucket.
func (s *MinioStore) BaseURL() string {
	endpoint := s.client.EndpointURL().String()
	return fmt.Sprintf("%s/%s", strings.TrimRight(endpoint, "/"), s.bucket)
}
