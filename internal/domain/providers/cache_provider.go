package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider is an advisory key/value cache. Callers must produce the same
// result on a miss as on a hit, and must tolerate concurrent writers to one key.
type CacheProvider interface {
	// Get retrieves a value from cache, returning ErrCacheMiss when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// GetMany retrieves several keys at once; missing keys are absent from the result
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error
}
