package models

// Message kinds emitted by injected extraction scripts. The correlator
// matches inbound messages against these tags.
const (
	MsgNoteResult  = "note-result"
	MsgEmailResult = "email-result"
	MsgListResult  = "list-result"
	MsgReady       = "ready"
)

// Message is one inbound message from an injected script running inside a
// worker surface. All surfaces report through a single shared channel; the
// SurfaceID plus Kind pair is what routes a message back to the pipeline
// that is waiting for it.
type Message struct {
	// SurfaceID identifies the tab the message came from.
	SurfaceID string `json:"surface_id"`

	// Kind tags the message ("note-result", "email-result", "list-result").
	Kind string `json:"kind"`

	// Fields carries the raw, untyped values the script scraped. Well-known
	// keys: "title", "author", "body", "internal", "recipients",
	// "occurred_at", "html" (raw page fallback), "rows" (listing HTML),
	// "error" (in-page extraction failure).
	Fields map[string]string `json:"fields"`
}

// Field returns the named field or "" when absent.
func (m Message) Field(name string) string {
	return m.Fields[name]
}
