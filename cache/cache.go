package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/chronicle/models"
)

// entry holds a cached timeline with its creation timestamp.
type entry struct {
	timeline  *models.TimelineResponse
	createdAt time.Time
}

// Cache is a simple in-memory cache for collected timelines, so repeated
// collections of the same case within the caller's tolerance skip the
// browser entirely. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict entries older
// than 1 hour.
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// Key generates a cache key from the case URL and requested kinds.
func Key(caseURL string, kinds []string) string {
	h := sha256.New()
	h.Write([]byte(caseURL))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(kinds, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached timeline if it exists and is younger than maxAge.
// maxAge is in milliseconds. If maxAge <= 0, no cache lookup is performed.
// Returns the timeline and whether it was a cache hit.
func (c *Cache) Get(key string, maxAgeMs int) (*models.TimelineResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	return e.timeline, true
}

// Set stores a timeline in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, tl *models.TimelineResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		timeline:  tl,
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
