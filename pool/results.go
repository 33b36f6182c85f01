package pool

import (
	"sync"

	"github.com/use-agent/chronicle/models"
)

// ResultSet aggregates one Record per work item, keyed by the item's
// SourceURL. Each key is written by exactly one runner, but runners write
// concurrently, so access is serialized by the mutex.
type ResultSet struct {
	mu      sync.Mutex
	records map[string]models.Record
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{records: make(map[string]models.Record)}
}

// Put inserts the record for its source URL. Records are written once and
// never mutated afterwards.
func (rs *ResultSet) Put(rec models.Record) {
	rs.mu.Lock()
	rs.records[rec.SourceURL] = rec
	rs.mu.Unlock()
}

// Get returns the record for a source URL.
func (rs *ResultSet) Get(sourceURL string) (models.Record, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rec, ok := rs.records[sourceURL]
	return rec, ok
}

// Len returns the number of aggregated records.
func (rs *ResultSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.records)
}

// Records returns a copy of all aggregated records.
func (rs *ResultSet) Records() []models.Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]models.Record, 0, len(rs.records))
	for _, rec := range rs.records {
		out = append(out, rec)
	}
	return out
}
