package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

const defaultSignedURLTTL = 15 * time.Minute

// PhotoStorage hands out short-lived read URLs for profile photos referenced by like annotations.
type PhotoStorage struct {
	client *minio.Client
	bucket string
}

func NewPhotoStorage(client *minio.Client, bucket string) *PhotoStorage {
	return &PhotoStorage{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (s *PhotoStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key is required")
	}
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}

	return presigned.String(), nil
}
