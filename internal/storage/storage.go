package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store is the durable key-value persistence used for cart snapshots and
// pending payment records.
// Consumers define what they put under each key; the store only moves bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
