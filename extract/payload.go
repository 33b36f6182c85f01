// Package extract owns the scraper capability: the JavaScript payloads
// injected into worker surfaces, and the normalization of the raw fields
// those payloads report back into Records.
package extract

import (
	"fmt"

	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/surface"
)

// The payload scripts are plain selector matching against the remote app's
// detail views. Each reports exactly one completion message through the
// chronicleReport binding; on any in-page failure it still reports, with an
// "error" field, so the orchestrator's contract stays simple. As a last
// resort the whole document is attached under "html" for server-side
// recovery.

const notePayload = `() => {
	const text = (sel) => {
		const el = document.querySelector(sel);
		return el ? el.textContent.trim() : "";
	};
	const html = (sel) => {
		const el = document.querySelector(sel);
		return el ? el.innerHTML : "";
	};
	try {
		const fields = {
			title: text(".note-detail .note-subject, h1.record-title"),
			author: text(".note-detail .note-author, .record-meta .author"),
			body: html(".note-detail .note-body, .record-body"),
			internal: document.querySelector(".note-detail .flag-internal") ? "true" : "false",
			occurred_at: text(".note-detail .note-date, .record-meta time"),
		};
		if (!fields.title && !fields.body) {
			fields.html = document.documentElement.outerHTML;
		}
		window.chronicleReport({ kind: "note-result", fields: fields });
	} catch (e) {
		window.chronicleReport({ kind: "note-result", fields: { error: String(e) } });
	}
}`

const emailPayload = `() => {
	const text = (sel) => {
		const el = document.querySelector(sel);
		return el ? el.textContent.trim() : "";
	};
	const html = (sel) => {
		const el = document.querySelector(sel);
		return el ? el.innerHTML : "";
	};
	try {
		const fields = {
			title: text(".email-detail .email-subject, h1.record-title"),
			author: text(".email-detail .email-from, .record-meta .sender"),
			recipients: text(".email-detail .email-to, .record-meta .recipients"),
			body: html(".email-detail .email-body, .record-body"),
			occurred_at: text(".email-detail .email-date, .record-meta time"),
		};
		if (!fields.title && !fields.body) {
			fields.html = document.documentElement.outerHTML;
		}
		window.chronicleReport({ kind: "email-result", fields: fields });
	} catch (e) {
		window.chronicleReport({ kind: "email-result", fields: { error: String(e) } });
	}
}`

// listPayload enumerates the related-record tables on a case page and
// reports the rows' outer HTML, grouped by kind, for server-side parsing.
const listPayload = `() => {
	const rowsOf = (sel) => {
		const out = [];
		document.querySelectorAll(sel).forEach((row) => out.push(row.outerHTML));
		return out.join("");
	};
	try {
		window.chronicleReport({ kind: "list-result", fields: {
			note_rows: rowsOf("table.notes-list tr.record-row"),
			email_rows: rowsOf("table.email-list tr.record-row"),
		}});
	} catch (e) {
		window.chronicleReport({ kind: "list-result", fields: { error: String(e) } });
	}
}`

// PayloadFor returns the injection payload for a work item's kind.
func PayloadFor(item models.WorkItem) (surface.Payload, error) {
	switch item.Kind {
	case models.KindNote:
		return surface.Payload{Script: notePayload, ResultKind: models.MsgNoteResult}, nil
	case models.KindEmail:
		return surface.Payload{Script: emailPayload, ResultKind: models.MsgEmailResult}, nil
	default:
		return surface.Payload{}, fmt.Errorf("extract: no payload for kind %q", item.Kind)
	}
}

// ListPayload returns the listing enumeration payload for a case page.
func ListPayload() surface.Payload {
	return surface.Payload{Script: listPayload, ResultKind: models.MsgListResult}
}
