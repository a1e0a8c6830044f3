// Package s3 stores export artifacts in any S3-compatible object store.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Conn struct {
	client *minio.Client
}

// NewConn connects to an S3-compatible endpoint with static credentials.
func NewConn(endpoint, accessKey, secretKey string, secure bool) (*Conn, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to object store: %w", err)
	}

	return &Conn{client: client}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (conn *Conn) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := conn.client.BucketExists(ctx, bucket)

	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	if exists {
		return nil
	}

	if err := conn.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	return nil
}

// Put uploads one object.
func (conn *Conn) Put(
	ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string,
) error {
	_, err := conn.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})

	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}

	return nil
}

// Get retrieves one object. The caller owns the returned reader.
func (conn *Conn) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := conn.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})

	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", bucket, key, err)
	}

	return obj, nil
}
