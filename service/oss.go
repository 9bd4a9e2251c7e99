package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"make-comics-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const presignExpiry = 72 * time.Hour

// Storage stores character references and archived pages in a MinIO bucket.
type Storage struct {
	client *minio.Client
	bucket string
	domain string
	logger *zap.Logger
}

func NewStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool, domain string, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Storage{
		client: client,
		bucket: bucket,
		domain: strings.TrimRight(domain, "/"),
		logger: logger.Named("Storage"),
	}, nil
}

// InitMinIO builds the storage from config.AppConfig and makes sure the bucket exists.
func InitMinIO(ctx context.Context) *Storage {
	cfg := config.AppConfig.MinIO
	s, err := NewStorage(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.UseSSL, cfg.Domain, zap.L())
	if err != nil {
		zap.L().Fatal("MinIO init failed", zap.Error(err))
	}
	if err := s.EnsureBucket(ctx); err != nil {
		zap.L().Fatal("MinIO bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	zap.L().Info("MinIO connected", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return s
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Put writes r to objectName. size may be -1 when unknown. An empty contentType is derived
// from the extension. Callers keep the object key; URLs are issued with ObjectURL when needed.
func (s *Storage) Put(ctx context.Context, r io.Reader, size int64, objectName, contentType string) error {
	if contentType == "" {
		contentType = contentTypeFor(objectName)
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"app-name": "make-comics",
		},
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectName, err)
	}
	s.logger.Debug("object uploaded", zap.String("object", objectName), zap.String("content_type", contentType))
	return nil
}

// ObjectURL uses the public domain when one is configured, otherwise a presigned GET.
func (s *Storage) ObjectURL(ctx context.Context, objectName string) (string, error) {
	if s.domain != "" {
		return fmt.Sprintf("%s/%s/%s", s.domain, s.bucket, objectName), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}
	return u.String(), nil
}

// IsObjectKey reports whether ref names an object in the bucket rather than an absolute URL.
func IsObjectKey(ref string) bool {
	return ref != "" && !strings.Contains(ref, "://")
}

// ResolveReference turns a stored image reference into a fetchable URL. Object keys get a
// fresh URL on every call; absolute URLs pass through.
func (s *Storage) ResolveReference(ctx context.Context, ref string) (string, error) {
	if !IsObjectKey(ref) {
		return ref, nil
	}
	return s.ObjectURL(ctx, ref)
}

func contentTypeFor(objectName string) string {
	switch strings.ToLower(filepath.Ext(objectName)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
