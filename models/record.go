package models

import "time"

// Record is the normalized result for one WorkItem. Exactly one Record
// exists per item by the time its batch completes: either a populated
// success record or an error placeholder with ErrorMessage set.
//
// Records are created once and never mutated after insertion into a
// result set.
type Record struct {
	Kind ItemKind `json:"kind"`

	Title  string `json:"title"`
	Author string `json:"author"`

	// Body is the record's content as HTML extracted from the detail view.
	Body string `json:"body"`

	// Internal marks notes not visible to the customer. Nil when the
	// source view doesn't expose a visibility flag (emails never do).
	Internal *bool `json:"internal,omitempty"`

	// Recipients is the raw recipient line of an email record.
	Recipients string `json:"recipients,omitempty"`

	// OccurredAt is the record's timestamp. Nil when neither the detail
	// view nor the listing's date hint could be parsed; such records are
	// excluded from the sorted timeline but kept in the unparsed list.
	OccurredAt *time.Time `json:"occurred_at,omitempty"`

	// SourceURL is the originating item's locator (the aggregation key).
	SourceURL string `json:"source_url"`

	// ErrorMessage is set only on failure placeholders.
	ErrorMessage string `json:"error_message,omitempty"`
}

// IsError reports whether the record is a failure placeholder.
func (r Record) IsError() bool {
	return r.ErrorMessage != ""
}

// ErrorRecord builds the failure placeholder for an item. Failed items are
// never dropped from a batch; they surface as visibly-marked error entries.
func ErrorRecord(item WorkItem, err error) Record {
	return Record{
		Kind:         item.Kind,
		SourceURL:    item.SourceURL,
		ErrorMessage: err.Error(),
	}
}
