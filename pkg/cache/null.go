package cache

import (
	"context"
	"time"
)

// NullCache discards writes and misses every read, so lookups through
// it always go to the network. Used when no cache directory is
// available and by tests that need deterministic fetch counts.
type NullCache struct{}

// NewNullCache creates a cache that stores nothing.
func NewNullCache() Cache {
	return NullCache{}
}

func (NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

func (NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (NullCache) Close() error { return nil }
