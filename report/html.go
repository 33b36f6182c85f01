package report

import (
	"html/template"
	"strings"

	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/models"
)

var htmlTmpl = template.Must(template.New("timeline").Funcs(template.FuncMap{
	"rawBody": func(body string) template.HTML {
		// Bodies are HTML extracted from the authenticated source app and
		// rendered back to the same operator; they are not escaped.
		return template.HTML(body)
	},
	"when": func(rec models.Record) string {
		if rec.OccurredAt == nil {
			return ""
		}
		return rec.OccurredAt.Format("2006-01-02 15:04")
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Case history — {{.CaseURL}}</title>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; }
article { border: 1px solid #ddd; border-radius: 4px; padding: 1rem; margin: 1rem 0; }
article.error { border-color: #c00; background: #fff4f4; }
.meta { color: #555; font-size: 0.9rem; }
.kind { text-transform: uppercase; font-weight: bold; }
</style>
</head>
<body>
<h1>Case history</h1>
<p class="meta">{{.CaseURL}} — {{.Total}} records ({{.Failed}} failed)</p>
{{range .Entries}}{{template "record" .}}{{end}}
{{if .Unparsed}}<h2>Records without a timestamp</h2>{{end}}
{{range .Unparsed}}{{template "record" .}}{{end}}
</body>
</html>
{{define "record"}}
<article{{if .IsError}} class="error"{{end}}>
<p><span class="kind">{{.Kind}}</span> {{when .}} — <strong>{{.Title}}</strong></p>
{{if .IsError}}
<p>⚠ collection failed: {{.ErrorMessage}}</p>
{{else}}
<p class="meta">{{.Author}}{{if .Recipients}} → {{.Recipients}}{{end}}</p>
<div>{{rawBody .Body}}</div>
{{end}}
<p class="meta"><a href="{{.SourceURL}}">source</a></p>
</article>
{{end}}`))

type htmlView struct {
	CaseURL  string
	Total    int
	Failed   int
	Entries  []models.Record
	Unparsed []models.Record
}

// HTML renders the timeline as a standalone HTML document.
func (r *Renderer) HTML(tl *coordinate.Timeline) (string, error) {
	var b strings.Builder
	err := htmlTmpl.Execute(&b, htmlView{
		CaseURL:  tl.CaseURL,
		Total:    tl.Total(),
		Failed:   tl.Failed(),
		Entries:  tl.Entries,
		Unparsed: tl.Unparsed,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
