package models

// CollectRequest is the payload for POST /api/v1/collect and POST /api/v1/jobs.
type CollectRequest struct {
	// CaseURL is the primary record whose related records are collected. Required.
	CaseURL string `json:"case_url" binding:"required,url"`

	// Kinds restricts collection to the listed record kinds.
	// Default: both ("note", "email").
	Kinds []string `json:"kinds,omitempty" binding:"omitempty,dive,oneof=note email"`

	// Timeout is the maximum duration in seconds for the entire collection
	// (list discovery + all item pipelines). Default: 120. Max: 600.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=600"`

	// MaxAgeMs enables the timeline cache: a cached result younger than this
	// many milliseconds is returned without touching the browser. 0 disables.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`

	// WebhookURL, when set, receives a signed job.completed/job.failed event
	// once an async job finishes. Ignored on the synchronous endpoint.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *CollectRequest) Defaults() {
	if len(r.Kinds) == 0 {
		r.Kinds = []string{string(KindNote), string(KindEmail)}
	}
	if r.Timeout == 0 {
		r.Timeout = 120
	}
}

// WantsKind reports whether the request asked for the given kind.
func (r *CollectRequest) WantsKind(k ItemKind) bool {
	for _, kind := range r.Kinds {
		if kind == string(k) {
			return true
		}
	}
	return false
}

// ReportRequest is the payload for POST /api/v1/report.
type ReportRequest struct {
	// JobID references a finished collection job.
	JobID string `json:"job_id" binding:"required"`

	// Format selects the rendering. Default: "markdown".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=markdown html"`
}
