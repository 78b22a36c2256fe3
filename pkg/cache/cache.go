// Package cache provides a small byte-oriented cache abstraction used for
// conversion-service responses, computed layouts and rendered artifacts, and
// as the storage layer behind the schema history.
//
// # Backends
//
//   - [FileCache]: one JSON file per key under a directory (CLI default)
//   - [MemoryCache]: in-process map, for tests and the HTTP server
//   - [RedisCache]: shared cache for several server instances
//   - [NullCache]: stores nothing, used when caching is disabled
//
// # Keys
//
// Keys are built by a [Keyer] so every component derives them the same way:
//
//	k := cache.NewDefaultKeyer()
//	key := k.TransformKey(schemaID)
//
// [Hash] is the SHA-256 helper used for content hashes throughout sqltree.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
//
// Get reports a miss with ok=false and a nil error; an error means the
// backend itself failed. A ttl of zero stores the value without expiry.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default time-to-live values per kind of cached item.
const (
	TTLHTTP      = 24 * time.Hour
	TTLTransform = 7 * 24 * time.Hour
	TTLLayout    = 7 * 24 * time.Hour
	TTLArtifact  = 7 * 24 * time.Hour
)
