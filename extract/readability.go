package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Below this threshold we assume
// the algorithm failed to locate the record body and keep the raw HTML.
const minContentLength = 20

// recoverFromRaw runs the Mozilla Readability algorithm over a raw detail
// page to salvage a usable title and body when the injected selectors
// matched nothing. The record must never come back empty just because the
// remote app shifted its markup.
func recoverFromRaw(rawHTML, sourceURL string) (title, body string) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("extract: invalid source URL for recovery, keeping raw HTML",
			"url", sourceURL, "error", err)
		return "", rawHTML
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("extract: readability recovery failed, keeping raw HTML",
			"url", sourceURL, "error", err)
		return "", rawHTML
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Warn("extract: recovered content too short, keeping raw HTML",
			"url", sourceURL, "length", len(article.TextContent))
		return article.Title, rawHTML
	}

	return article.Title, article.Content
}
