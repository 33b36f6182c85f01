package provider

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/chronicle/models"
	"golang.org/x/net/html"
)

// parseDocument extracts work items from a full server-rendered case page
// using the compiled row selectors.
func (p *Provider) parseDocument(body []byte, base *url.URL) ([]models.WorkItem, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse case page: %w", err)
	}

	var items []models.WorkItem
	for _, node := range cascadia.QueryAll(doc, p.noteRows) {
		if item, ok := itemFromRow(node, models.KindNote, base); ok {
			items = append(items, item)
		}
	}
	for _, node := range cascadia.QueryAll(doc, p.emailRows) {
		if item, ok := itemFromRow(node, models.KindEmail, base); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// parseRowFragment parses concatenated <tr> fragments reported by the
// enumeration payload. Bare rows get re-wrapped in a table so the HTML
// parser keeps them.
func parseRowFragment(rowsHTML string, kind models.ItemKind, base *url.URL) []models.WorkItem {
	rowsHTML = strings.TrimSpace(rowsHTML)
	if rowsHTML == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table>" + rowsHTML + "</table>"))
	if err != nil {
		return nil
	}

	var items []models.WorkItem
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if len(row.Nodes) == 0 {
			return
		}
		if item, ok := itemFromRow(row.Nodes[0], kind, base); ok {
			items = append(items, item)
		}
	})
	return items
}

// itemFromRow builds a WorkItem from one listing row: the first anchor's
// href becomes the source locator (resolved against the case URL), and the
// row's date cell becomes the date hint. Rows without a link are skipped;
// there is nothing to open for them.
func itemFromRow(row *html.Node, kind models.ItemKind, base *url.URL) (models.WorkItem, bool) {
	sel := goquery.NewDocumentFromNode(row).Selection

	href, ok := sel.Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return models.WorkItem{}, false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return models.WorkItem{}, false
	}

	hint := strings.TrimSpace(sel.Find(".record-date, time").First().Text())

	return models.WorkItem{
		Kind:      kind,
		SourceURL: base.ResolveReference(ref).String(),
		DateHint:  hint,
	}, true
}
