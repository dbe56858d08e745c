// Package cache provides byte caches for normalized sources, shared
// artifacts and staged downloads.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: JSON entries on disk, used by the CLI for re-encoded sources
//   - [MemoryCache]: process-local map, used by the server without Redis
//   - [RedisCache]: shared store, used when several processes serve links
//
// [NullCache] disables caching. Keys come from a [Keyer] so that callers
// never build key strings by hand; wrap a keyer in [NewScopedKeyer] to give
// a deployment its own namespace.
package cache

import (
	"context"
	"time"
)

// Default lifetimes for cached values.
const (
	// TTLSource is how long a re-encoded source is kept.
	TTLSource = 7 * 24 * time.Hour

	// TTLShare is how long a shared artifact stays reachable.
	TTLShare = 24 * time.Hour
)

// Cache stores opaque byte values with an optional TTL (0 = no expiry).
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// SourceKey identifies the normalized form of content (a [Hash] of the
	// original bytes) re-encoded to target media type.
	SourceKey(contentHash, target string) string

	// ShareKey identifies a shared artifact.
	ShareKey(id string) string

	// DownloadKey identifies a staged download.
	DownloadKey(id string) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SourceKey hashes the content hash together with the target encoding.
func (DefaultKeyer) SourceKey(contentHash, target string) string {
	return hashKey("source", contentHash, target)
}

// ShareKey returns "share:<id>".
func (DefaultKeyer) ShareKey(id string) string {
	return "share:" + id
}

// DownloadKey returns "download:<id>".
func (DefaultKeyer) DownloadKey(id string) string {
	return "download:" + id
}

var _ Keyer = DefaultKeyer{}
