package models

// JobResponse is the immediate response for POST /api/v1/jobs.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobStatusResponse is the response for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Timeline *TimelineResponse `json:"timeline,omitempty"`
}

// Job tracks an in-progress or finished collection job.
type Job struct {
	ID        string
	Status    string // "processing", "completed", "failed", "partial"
	CaseURL   string
	Timeline  *TimelineResponse
	CreatedAt int64 // unix timestamp
}
