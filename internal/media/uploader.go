// Package media uploads photos and avatars to S3-compatible object storage
// and returns their public URLs.
package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrUnavailable is returned when no object storage is configured.
var ErrUnavailable = errors.New("media uploads are not configured")

// Uploader stores a local file under destination and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, destination string) (string, error)
	UploadReader(ctx context.Context, r io.Reader, size int64, fileName, destination string) (string, error)
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
}

type MinIOUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewMinIOUploader(opts Options) (*MinIOUploader, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" || strings.TrimSpace(opts.Bucket) == "" {
		return nil, ErrUnavailable
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicURL := strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/")
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}
	return &MinIOUploader{client: client, bucket: opts.Bucket, publicURL: publicURL, now: time.Now}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *MinIOUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

func (u *MinIOUploader) Upload(ctx context.Context, localPath, destination string) (string, error) {
	key := u.objectKey(destination, localPath)
	_, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filepath.Base(localPath), err)
	}
	return u.url(key), nil
}

func (u *MinIOUploader) UploadReader(ctx context.Context, r io.Reader, size int64, fileName, destination string) (string, error) {
	key := u.objectKey(destination, fileName)
	_, err := u.client.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType(fileName),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", fileName, err)
	}
	return u.url(key), nil
}

func (u *MinIOUploader) url(key string) string {
	return u.publicURL + "/" + u.bucket + "/" + key
}

func (u *MinIOUploader) objectKey(destination, fileName string) string {
	name := fmt.Sprintf("%d_%s_%s", u.now().Unix(), randomHex(4), sanitizeFileName(fileName))
	destination = strings.Trim(path.Clean("/"+strings.TrimSpace(destination)), "/")
	if destination == "" {
		return name
	}
	return destination + "/" + name
}

var fileNamePattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFileName(fileName string) string {
	base := strings.TrimSpace(filepath.Base(fileName))
	if base == "" || base == "." || base == "/" {
		base = "upload.jpg"
	}
	base = fileNamePattern.ReplaceAllString(base, "_")
	if base == "" {
		base = "upload.jpg"
	}
	return base
}

func contentType(fileName string) string {
	if kind := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); kind != "" {
		return kind
	}
	return "application/octet-stream"
}

func randomHex(bytesLen int) string {
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "r"
	}
	return hex.EncodeToString(buf)
}
