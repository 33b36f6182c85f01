// Package surface owns the lifecycle of ephemeral worker surfaces: the
// browser tabs that item pipelines run their extraction scripts in. Each
// surface is created for exactly one work item, used by exactly one
// pipeline, and destroyed before that pipeline returns, on every exit path.
package surface

import (
	"context"
	"time"
)

// Handle identifies one live worker surface. It is owned exclusively by the
// pipeline that acquired it and is never shared across items.
type Handle struct {
	ID        string
	CreatedAt time.Time
}

// Payload is the extraction script injected into a surface, paired with the
// message kind the script will report back with.
type Payload struct {
	// Script is a JavaScript function expression evaluated in the page.
	Script string

	// ResultKind is the completion-message kind the script emits
	// ("note-result", "email-result", "list-result").
	ResultKind string
}

// Manager creates, readies, injects into, and destroys worker surfaces.
//
// Release is best-effort: implementations log failures instead of returning
// them, because a leaked tab is a warning, not a fatal error; the browser
// reclaims it when it shuts down. Everything else returns typed errors so
// the pipeline can convert them into per-item error records.
type Manager interface {
	// Acquire opens a new surface already navigating to url.
	Acquire(ctx context.Context, url string) (*Handle, error)

	// AwaitReady blocks until the surface signals readiness or the timeout
	// elapses. On timeout it returns an error rather than panicking so the
	// caller can still release the handle.
	AwaitReady(ctx context.Context, h *Handle, timeout time.Duration) error

	// Inject delivers the extraction payload to the surface.
	Inject(ctx context.Context, h *Handle, p Payload) error

	// Release destroys the surface. Exactly one call per acquired handle;
	// callers defer it immediately after a successful Acquire.
	Release(h *Handle)
}
