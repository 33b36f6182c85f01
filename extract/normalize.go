package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/use-agent/chronicle/models"
)

// Normalize converts a raw completion message into the item's Record.
//
// An "error" field means the injected script itself failed; that becomes an
// EXTRACTION_FAILED error record, not a propagated error. Per-item failures
// never leave the pipeline boundary.
func Normalize(item models.WorkItem, msg models.Message) models.Record {
	if errText := msg.Field("error"); errText != "" {
		return models.ErrorRecord(item, models.NewCollectError(
			models.ErrCodeExtraction, "in-page extraction failed: "+errText, nil))
	}

	rec := models.Record{
		Kind:       item.Kind,
		Title:      msg.Field("title"),
		Author:     msg.Field("author"),
		Body:       msg.Field("body"),
		Recipients: msg.Field("recipients"),
		SourceURL:  item.SourceURL,
	}

	if v := msg.Field("internal"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			rec.Internal = &b
		}
	}

	// Selector drift on the remote app leaves title/body empty but attaches
	// the raw document; recover the main content from it.
	if rec.Body == "" {
		if raw := msg.Field("html"); raw != "" {
			title, body := recoverFromRaw(raw, item.SourceURL)
			rec.Body = body
			if rec.Title == "" {
				rec.Title = title
			}
		}
	}

	rec.OccurredAt = parseWhen(msg.Field("occurred_at"), item.DateHint)
	return rec
}

// parseWhen parses the detail view's timestamp, falling back to the listing
// row's date hint. Nil when neither parses; such records stay collectable
// but land in the unparsed side list instead of the sorted timeline.
func parseWhen(detail, hint string) *time.Time {
	for _, candidate := range []string{detail, hint} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if t, err := dateparse.ParseAny(candidate); err == nil {
			return &t
		}
	}
	return nil
}
