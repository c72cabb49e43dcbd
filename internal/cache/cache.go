// Package cache stores web search results so repeated narratives about the
// same organisation do not repeat external lookups.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/model"
	"github.com/ppiankov/dealdesk/internal/normalize"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// SearchKey builds the key for one searcher's results for a name. Names are
// normalized so "Acme, Inc." and "acme inc" share an entry.
func SearchKey(searcher string, entityType model.EntityType, name string) string {
	raw := searcher + "|" + string(entityType) + "|" + normalize.Key(name, entityType)
	hash := sha256.Sum256([]byte(raw))
	return "dealdesk:search:v1:" + hex.EncodeToString(hash[:])
}

// GetJSON decodes a cached value into v
func GetJSON(c Cache, key string, v any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "cache: marshal value")
	}
	return c.Set(key, data, ttl)
}

// New returns a memory cache, or a memory+disk cache when dir is set
func New(ttl time.Duration, dir string) Cache {
	if dir == "" {
		return NewMemoryCache(ttl, 10*time.Minute)
	}
	return NewLayeredCache(ttl, dir, ttl)
}
