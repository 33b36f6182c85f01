// Package report renders a collected timeline into shareable documents.
package report

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/models"
)

// newBodyConverter creates a reusable, goroutine-safe Converter for record
// bodies. Email HTML tends to be full of layout noise:
//
//   - base plugin: strips script, style, head, meta and comments.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin: keeps the quoting tables email clients produce readable,
//     with minimal cell padding.
func newBodyConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// Renderer turns timelines into documents. Safe for concurrent use.
type Renderer struct {
	conv *converter.Converter
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{conv: newBodyConverter()}
}

// Markdown renders the timeline as a Markdown document: the sorted entries
// first, then the unparsed records, with error placeholders visibly marked.
func (r *Renderer) Markdown(tl *coordinate.Timeline) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Case history — %s\n\n", tl.CaseURL)
	fmt.Fprintf(&b, "%d records (%d failed)\n", tl.Total(), tl.Failed())

	for _, rec := range tl.Entries {
		if err := r.writeRecord(&b, rec); err != nil {
			return "", err
		}
	}

	if len(tl.Unparsed) > 0 {
		b.WriteString("\n---\n\n## Records without a timestamp\n")
		for _, rec := range tl.Unparsed {
			if err := r.writeRecord(&b, rec); err != nil {
				return "", err
			}
		}
	}

	return b.String(), nil
}

func (r *Renderer) writeRecord(b *strings.Builder, rec models.Record) error {
	b.WriteString("\n## ")
	b.WriteString(headline(rec))
	b.WriteString("\n\n")

	if rec.IsError() {
		fmt.Fprintf(b, "> ⚠ collection failed: %s\n\n[source](%s)\n", rec.ErrorMessage, rec.SourceURL)
		return nil
	}

	if rec.Author != "" {
		fmt.Fprintf(b, "*%s*", rec.Author)
		if rec.Recipients != "" {
			fmt.Fprintf(b, " → %s", rec.Recipients)
		}
		b.WriteString("\n\n")
	}
	if rec.Internal != nil && *rec.Internal {
		b.WriteString("`internal`\n\n")
	}

	if rec.Body != "" {
		md, err := r.conv.ConvertString(rec.Body)
		if err != nil {
			return fmt.Errorf("report: convert body of %s: %w", rec.SourceURL, err)
		}
		b.WriteString(strings.TrimSpace(md))
		b.WriteString("\n")
	}

	fmt.Fprintf(b, "\n[source](%s)\n", rec.SourceURL)
	return nil
}

// headline is the record's one-line header: kind, timestamp, title.
func headline(rec models.Record) string {
	kind := strings.ToUpper(string(rec.Kind))
	title := rec.Title
	if title == "" {
		title = "(untitled)"
	}
	if rec.OccurredAt != nil {
		return fmt.Sprintf("[%s] %s — %s", kind, rec.OccurredAt.Format("2006-01-02 15:04"), title)
	}
	return fmt.Sprintf("[%s] %s", kind, title)
}
