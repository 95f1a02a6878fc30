package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "docqa"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client archives raw uploads in S3/MinIO. Objects live at
// documents/{document_id}/{filename} until the document is deleted.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func objectName(documentID, filename string) string {
	return path.Join("documents", documentID, path.Base(filename))
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// PutDocument archives an uploaded file.
func (c *Client) PutDocument(ctx context.Context, documentID, filename string, r io.Reader, size int64) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}
	if filename == "" {
		return fmt.Errorf("filename is required")
	}

	_, err := c.minioClient.PutObject(ctx, c.bucket, objectName(documentID, filename), r, size, minio.PutObjectOptions{
		ContentType: contentType(filename),
	})
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// GetDocument reads an archived upload back.
func (c *Client) GetDocument(ctx context.Context, documentID, filename string) ([]byte, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName(documentID, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// RemoveDocument deletes every archived object under the document's prefix.
// Removing a document that was never archived is a no-op.
func (c *Client) RemoveDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}

	prefix := path.Join("documents", documentID) + "/"
	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if err := c.minioClient.RemoveObject(ctx, c.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove object %s: %w", object.Key, err)
		}
	}

	return nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
