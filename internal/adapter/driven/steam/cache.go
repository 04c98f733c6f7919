package steam

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gregjones/httpcache"
	lru "github.com/hashicorp/golang-lru/v2"
)

var _ httpcache.Cache = (*responseCache)(nil)

const (
	// DefaultCacheEntries bounds how many responses the client keeps.
	DefaultCacheEntries = 512

	// DefaultMaxCachedBytes is the largest response body kept in the cache.
	// Larger responses, typically whole owned-games libraries, are always
	// fetched fresh.
	DefaultMaxCachedBytes = 1 << 20
)

// responseCache is an httpcache.Cache bounded by entry count with
// least-recently-used eviction. Cache keys are request URLs, which carry the
// API key, so only their SHA-256 digests are held.
type responseCache struct {
	entries       *lru.Cache[string, []byte]
	maxEntryBytes int
}

func newResponseCache(size, maxEntryBytes int) (*responseCache, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &responseCache{entries: entries, maxEntryBytes: maxEntryBytes}, nil
}

// Get returns the cached response for key.
func (c *responseCache) Get(key string) ([]byte, bool) {
	return c.entries.Get(cacheDigest(key))
}

// Set stores resp under key. An oversized response evicts any older entry
// for key instead of being stored.
func (c *responseCache) Set(key string, resp []byte) {
	if len(resp) > c.maxEntryBytes {
		c.entries.Remove(cacheDigest(key))
		return
	}
	c.entries.Add(cacheDigest(key), resp)
}

// Delete removes the entry for key.
func (c *responseCache) Delete(key string) {
	c.entries.Remove(cacheDigest(key))
}

func cacheDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
