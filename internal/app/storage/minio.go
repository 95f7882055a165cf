package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"whisperflow/internal/app/model"
)

// Archiver mirrors accepted uploads to remote storage. Archiving is best
// effort: failures are logged, never surfaced to the caller.
type Archiver interface {
	Archive(file *model.File)
}

// MinioArchiver uploads managed files to a MinIO bucket in the background.
type MinioArchiver struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinioArchiver connects to the given endpoint and ensures the bucket
// exists.
func NewMinioArchiver(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*MinioArchiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioArchiver{client: client, bucket: bucket, logger: logger}, nil
}

// Archive uploads the file asynchronously, keyed by content hash so
// re-archiving identical bytes overwrites in place.
func (a *MinioArchiver) Archive(file *model.File) {
	key := fmt.Sprintf("audio/%s/%s.%s", file.ContentHash[:2], file.ContentHash, file.Format)
	path := file.Path
	size := file.SizeBytes

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		_, err := a.client.FPutObject(ctx, a.bucket, key, path, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
			UserMetadata: map[string]string{
				"original-name": file.OriginalName,
			},
		})
		if err != nil {
			a.logger.Warn("archive upload failed",
				zap.String("key", key),
				zap.Error(err))
			return
		}
		a.logger.Info("archived to bucket",
			zap.String("key", key),
			zap.Int64("size_bytes", size))
	}()
}
