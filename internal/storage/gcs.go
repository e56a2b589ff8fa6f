package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore deletes objects from Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore builds a client for bucket. With an empty credentialsFile the
// client falls back to application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not readable at %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Delete removes the object behind ref. References to other buckets or hosts
// are left alone.
func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	obj, err := ParseRef(ref, s.bucket)
	if err != nil {
		if errors.Is(err, ErrForeignAsset) {
			return nil
		}
		return err
	}
	if obj.Bucket != s.bucket {
		return nil
	}

	err = s.client.Bucket(obj.Bucket).Object(obj.Object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete gs://%s/%s: %w", obj.Bucket, obj.Object, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
