package report

import (
	"strings"
	"testing"
	"time"

	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/models"
)

func sampleTimeline() *coordinate.Timeline {
	when := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	internal := true
	return &coordinate.Timeline{
		CaseURL: "https://app.example.com/cases/1001",
		Entries: []models.Record{
			{
				Kind:       models.KindEmail,
				Title:      "Re: invoice",
				Author:     "dana@example.com",
				Recipients: "billing@example.com",
				Body:       "<p>Attached is the <strong>revised</strong> quote.</p>",
				OccurredAt: &when,
				SourceURL:  "https://app.example.com/emails/9",
			},
		},
		Unparsed: []models.Record{
			{
				Kind:      models.KindNote,
				Title:     "Undated note",
				Body:      "<p>No timestamp on this one.</p>",
				Internal:  &internal,
				SourceURL: "https://app.example.com/notes/3",
			},
			{
				Kind:         models.KindNote,
				SourceURL:    "https://app.example.com/notes/4",
				ErrorMessage: "CORRELATION_TIMEOUT: no completion message from surface",
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md, err := NewRenderer().Markdown(sampleTimeline())
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}

	if !strings.Contains(md, "# Case history — https://app.example.com/cases/1001") {
		t.Error("missing document header")
	}
	if !strings.Contains(md, "3 records (1 failed)") {
		t.Errorf("missing count line:\n%s", md)
	}
	if !strings.Contains(md, "[EMAIL] 2026-03-02 14:30 — Re: invoice") {
		t.Errorf("missing dated headline:\n%s", md)
	}
	if !strings.Contains(md, "**revised**") {
		t.Error("body HTML was not converted to Markdown")
	}
	if !strings.Contains(md, "dana@example.com") || !strings.Contains(md, "→ billing@example.com") {
		t.Error("missing author/recipient line")
	}
	if !strings.Contains(md, "## Records without a timestamp") {
		t.Error("missing unparsed section")
	}
	if !strings.Contains(md, "`internal`") {
		t.Error("missing internal marker")
	}
	if !strings.Contains(md, "⚠ collection failed: CORRELATION_TIMEOUT") {
		t.Error("error placeholder not visibly marked")
	}
	if !strings.Contains(md, "[source](https://app.example.com/notes/4)") {
		t.Error("failed record lost its source link")
	}
}

func TestMarkdown_EmptyTimeline(t *testing.T) {
	md, err := NewRenderer().Markdown(&coordinate.Timeline{CaseURL: "https://x/case/1"})
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if !strings.Contains(md, "0 records (0 failed)") {
		t.Errorf("empty timeline rendered as:\n%s", md)
	}
}

func TestHeadline_Untitled(t *testing.T) {
	got := headline(models.Record{Kind: models.KindNote})
	if got != "[NOTE] (untitled)" {
		t.Errorf("headline = %q", got)
	}
}

func TestHTML(t *testing.T) {
	out, err := NewRenderer().HTML(sampleTimeline())
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}

	if !strings.Contains(out, "<title>Case history — https://app.example.com/cases/1001</title>") {
		t.Error("missing title")
	}
	if !strings.Contains(out, "<strong>revised</strong>") {
		t.Error("record body was escaped instead of rendered")
	}
	if !strings.Contains(out, `class="error"`) {
		t.Error("error record not marked")
	}
	if !strings.Contains(out, `href="https://app.example.com/emails/9"`) {
		t.Error("missing source link")
	}
}
