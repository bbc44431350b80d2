package cache

import (
	"context"
	"strconv"
	"time"
)

// SnapshotCache stores serialized snapshot responses so repeated list
// loads inside the TTL skip the backend. Push-driven mutations
// invalidate affected keys; the cache never outlives a known-stale
// snapshot on purpose.
type SnapshotCache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes a value by key.
	Invalidate(ctx context.Context, key string) error

	// Close releases the backend connection.
	Close() error
}

// CacheError is a sentinel error type for cache operations.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss indicates the key was not found in cache.
const ErrCacheMiss CacheError = "cache miss"

// ListKey is the cache key for the full auction list snapshot.
const ListKey = "hothour:snapshot:auctions"

// AuctionKey returns the cache key for a single-auction snapshot.
func AuctionKey(id int64) string {
	return "hothour:snapshot:auction:" + strconv.FormatInt(id, 10)
}
