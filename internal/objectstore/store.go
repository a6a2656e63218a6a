// Package objectstore mirrors generated audio into a NATS JetStream object store.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrBucketEmpty indicates that no bucket name was configured.
var ErrBucketEmpty = errors.New("object store bucket cannot be empty")

// NatsObjectStore implements core.ObjectStore on a JetStream object store bucket.
type NatsObjectStore struct {
	bucket string
	store  jetstream.ObjectStore
}

// New binds to bucketName, creating the bucket first if it does not exist.
func New(ctx context.Context, js jetstream.JetStream, bucketName string) (*NatsObjectStore, error) {
	if bucketName == "" {
		return nil, ErrBucketEmpty
	}

	store, err := js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: "Generated narration audio.",
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = js.ObjectStore(ctx, bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves an object from the bucket.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := n.store.GetBytes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	return data, nil
}

// Upload stores data under key, replacing any previous version.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	_, err := n.store.PutBytes(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Exists reports whether key is present in the bucket.
func (n *NatsObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := n.store.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat object '%s' in bucket '%s': %w", key, n.bucket, err)
	}

	return true, nil
}
