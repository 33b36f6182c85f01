package models

// TimelineResponse is the response for POST /api/v1/collect and for
// GET /api/v1/jobs/:id once a job has finished.
type TimelineResponse struct {
	// Success indicates the collection ran to completion. Partial item
	// failures still count as success; only a pre-pool failure (list
	// discovery) makes this false.
	Success bool `json:"success"`

	// CaseURL echoes the collected primary record.
	CaseURL string `json:"case_url"`

	// Entries is the chronologically sorted timeline. Error placeholders
	// appear in Unparsed (they carry no timestamp).
	Entries []Record `json:"entries"`

	// Unparsed holds records without a parseable timestamp, including
	// per-item failure placeholders. Never silently dropped.
	Unparsed []Record `json:"unparsed,omitempty"`

	// Total is the number of work items discovered; Failed counts the error
	// placeholders among them. Total == len(Entries) + len(Unparsed).
	Total  int `json:"total"`
	Failed int `json:"failed"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// DiscoveryMs is the time spent enumerating work items.
	DiscoveryMs int64 `json:"discovery_ms"`

	// CollectMs is the time spent running the item pipelines.
	CollectMs int64 `json:"collect_ms"`
}

// ReportResponse is the response for POST /api/v1/report.
type ReportResponse struct {
	Success bool         `json:"success"`
	Format  string       `json:"format"`
	Content string       `json:"content"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SurfaceStats SurfaceStats `json:"surface_stats"`
	Version      string       `json:"version"`
}

// SurfaceStats reports the state of the worker surface manager.
type SurfaceStats struct {
	MaxSurfaces    int `json:"max_surfaces"`
	ActiveSurfaces int `json:"active_surfaces"`
}
