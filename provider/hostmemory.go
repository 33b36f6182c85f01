package provider

import (
	"sync"
	"time"
)

// Listing fetch paths a host can be remembered for.
const (
	pathHTTP    = "http"
	pathBrowser = "browser"
)

type hostEntry struct {
	path      string
	expiresAt time.Time
}

// hostMemory remembers which listing path worked for each host so repeat
// collections skip the path that failed last time. Entries expire after the
// TTL; expiry is checked lazily on read.
type hostMemory struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]hostEntry
}

func newHostMemory(ttl time.Duration) *hostMemory {
	return &hostMemory{ttl: ttl, m: make(map[string]hostEntry)}
}

// Get returns the remembered path for a host, or "" when unknown or expired.
func (hm *hostMemory) Get(host string) string {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	entry, ok := hm.m[host]
	if !ok {
		return ""
	}
	if time.Now().After(entry.expiresAt) {
		delete(hm.m, host)
		return ""
	}
	return entry.path
}

// Set records which path worked for a host.
func (hm *hostMemory) Set(host, path string) {
	hm.mu.Lock()
	hm.m[host] = hostEntry{path: path, expiresAt: time.Now().Add(hm.ttl)}
	hm.mu.Unlock()
}
