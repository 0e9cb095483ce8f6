package backup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrMirrorNotConfigured is returned when S3 mirroring is not configured.
var ErrMirrorNotConfigured = errors.New("backup mirror not configured")

// Mirror copies backup artifacts to off-site storage.
type Mirror interface {
	// Enabled reports whether uploads go anywhere.
	Enabled() bool

	// Upload copies the local file to key.
	Upload(ctx context.Context, key, filePath string) error

	// Remove deletes key.
	Remove(ctx context.Context, key string) error
}

// S3Options configures an S3-compatible mirror.
type S3Options struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string // object key prefix, e.g. "ledgersync/"
}

// s3Client defines the minimal minio.Client operations used by S3Mirror.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
	RemoveObject(ctx context.Context, bucket, objectName string) error
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	contentType := "application/octet-stream"
	if filepath.Ext(filePath) == ".csv" {
		contentType = "text/csv"
	}
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) RemoveObject(ctx context.Context, bucket, objectName string) error {
	return w.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
}

// S3Mirror uploads artifacts to S3-compatible storage.
type S3Mirror struct {
	client s3Client
	bucket string
	prefix string
}

// Enabled always reports true.
func (m *S3Mirror) Enabled() bool { return true }

// Upload uploads the artifact file.
func (m *S3Mirror) Upload(ctx context.Context, key, filePath string) error {
	if err := m.client.FPutObject(ctx, m.bucket, m.objectKey(key), filePath); err != nil {
		return fmt.Errorf("upload backup to S3: %w", err)
	}
	return nil
}

// Remove deletes a mirrored artifact.
func (m *S3Mirror) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, m.objectKey(key)); err != nil {
		return fmt.Errorf("remove backup from S3: %w", err)
	}
	return nil
}

// objectKey uses forward slashes regardless of the local OS.
func (m *S3Mirror) objectKey(key string) string {
	return path.Join(m.prefix, filepath.ToSlash(key))
}

// NoopMirror is used when S3 storage is not configured.
type NoopMirror struct{}

// Enabled reports false.
func (NoopMirror) Enabled() bool { return false }

// Upload is a no-op when S3 is not configured.
func (NoopMirror) Upload(context.Context, string, string) error { return nil }

// Remove returns ErrMirrorNotConfigured.
func (NoopMirror) Remove(context.Context, string) error { return ErrMirrorNotConfigured }

// NewMirror creates the appropriate Mirror for opts.
// Returns NoopMirror when the bucket is empty, S3Mirror otherwise.
func NewMirror(opts S3Options) (Mirror, error) {
	if opts.Bucket == "" {
		return NoopMirror{}, nil
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Mirror{
		client: &minioClientWrapper{client: client},
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}
