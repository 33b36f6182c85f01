package models

// ItemKind identifies the kind of related record a WorkItem points at.
type ItemKind string

const (
	KindNote  ItemKind = "note"
	KindEmail ItemKind = "email"
)

// Valid reports whether the kind is one chronicle knows how to collect.
func (k ItemKind) Valid() bool {
	return k == KindNote || k == KindEmail
}

// ResultKind is the completion-message kind the correlator matches for
// items of this kind ("note-result", "email-result").
func (k ItemKind) ResultKind() string {
	return string(k) + "-result"
}

// WorkItem describes one unit of collection work: a single related record
// (note or email) reachable at SourceURL. Items are immutable; the list
// provider creates them and the worker pool consumes each exactly once.
type WorkItem struct {
	// Kind tags which extraction payload the item needs.
	Kind ItemKind

	// SourceURL locates the record's detail view. It is also the key the
	// result aggregator stores the final Record under, so it must be unique
	// within a batch.
	SourceURL string

	// DateHint is the raw date string scraped off the listing row. It is a
	// fallback for records whose detail view carries no parseable timestamp.
	DateHint string
}
