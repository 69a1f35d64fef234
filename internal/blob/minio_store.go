// Package blob persists serialized canvas states as JSON objects. The state
// blob is the source of truth for a canvas's snapshot and transaction log;
// the database only holds the pointer to the current blob.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"easel/api/internal/canvas"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("state blob not found")

// Store reads and writes canvas state blobs by key.
type Store interface {
	PutState(ctx context.Context, key string, state canvas.State) error
	GetState(ctx context.Context, key string) (canvas.State, error)
	DeleteState(ctx context.Context, key string) error
}

// StateKey builds the object key for a canvas state at a given revision.
// Keeping one object per revision leaves prior blobs in place for audit and
// recovery; lifecycle rules on the bucket can expire them.
func StateKey(canvasID string, revision int64) string {
	return fmt.Sprintf("canvases/%s/%d.json", canvasID, revision)
}

// MinioStore implements Store against an S3-compatible object store.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) PutState(ctx context.Context, key string, state canvas.State) error {
	payload, err := canvas.EncodeState(state)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put state %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) GetState(ctx context.Context, key string) (canvas.State, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return canvas.State{}, fmt.Errorf("get state %s: %w", key, err)
	}
	defer obj.Close()

	payload, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return canvas.State{}, ErrNotFound
		}
		return canvas.State{}, fmt.Errorf("read state %s: %w", key, err)
	}
	return canvas.DecodeState(payload)
}

func (s *MinioStore) DeleteState(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}
