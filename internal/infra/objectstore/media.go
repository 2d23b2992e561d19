package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"trivia-live/internal/domain"
)

// MediaStore resolves and stores quiz media under media/ in the bucket.
// Resolved references are presigned GET URLs valid for expiry.
type MediaStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *slog.Logger
}

func NewMediaStore(client *minio.Client, bucket string, expiry time.Duration, logger *slog.Logger) *MediaStore {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaStore{client: client, bucket: bucket, expiry: expiry, logger: logger}
}

// Resolve implements app.MediaResolver.
func (m *MediaStore) Resolve(ctx context.Context, name string) (string, bool, error) {
	key, err := mediaKey(name)
	if err != nil {
		return "", false, nil
	}
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("stat %s: %w", key, err)
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, nil)
	if err != nil {
		return "", false, fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), true, nil
}

// Upload stores one media file; size may be -1 for unknown length.
func (m *MediaStore) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	key, err := mediaKey(name)
	if err != nil {
		return err
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	m.logger.Info("media uploaded", "key", key, "size", info.Size)
	return nil
}

// Missing returns the names that have no object yet, in input order.
func (m *MediaStore) Missing(ctx context.Context, names []string) ([]string, error) {
	present := make(map[string]bool)
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: mediaPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list media: %w", obj.Err)
		}
		present[strings.ToLower(strings.TrimPrefix(obj.Key, mediaPrefix))] = true
	}
	var missing []string
	for _, name := range names {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func mediaKey(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid media name %q", domain.ErrMediaNotFound, name)
	}
	return mediaPrefix + name, nil
}
