package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache is an in-memory TTL map for computed analysis results. Expired
// entries are purged on the read that finds them; there is no sweeper
// and no size cap.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value, purging it first if expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if !e.expiresAt.After(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores the value unconditionally, overwriting any previous entry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Key builds a cache key from the operation kind, the requesting user
// and a fingerprint of each input text. Including the user id keeps one
// user's cached result from ever being served to another.
func Key(op string, userID int64, texts ...string) string {
	parts := make([]string, 0, len(texts)+2)
	parts = append(parts, op, fmt.Sprintf("%d", userID))
	for _, t := range texts {
		sum := sha256.Sum256([]byte(t))
		parts = append(parts, hex.EncodeToString(sum[:]))
	}
	return strings.Join(parts, ":")
}
