package s3util

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Uploader is satisfied by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// NewUploader wraps client in a multipart-capable uploader.
func NewUploader(client *s3.Client) *manager.Uploader {
	return manager.NewUploader(client)
}

// UploadFile stages the local file at path as s3://bucket/key and returns
// the object URI.
func UploadFile(ctx context.Context, uploader Uploader, bucket, key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	log.Debug().
		Str("path", path).
		Str("bucket", bucket).
		Str("key", key).
		Str("contentType", contentType).
		Msg("Uploading input object to S3")

	start := time.Now()
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, bucket, err)
	}

	uri := ObjectURI(bucket, key)
	log.Info().
		Str("uri", uri).
		Dur("elapsed", time.Since(start)).
		Msg("Input object uploaded to S3")
	return uri, nil
}
