package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/correlate"
	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/surface"
)

const casePage = `<html><head><title>Case 1001</title></head><body>
<h1>Case 1001: renewal dispute</h1>
<p>Opened by the billing team after the customer disputed the renewal
invoice. The account has three years of history and an active support
contract covering the disputed period. Related records are listed below
for the collection pipeline to walk through one by one.</p>
<table class="notes-list">
  <tr class="record-row"><td><a href="/notes/1">Call summary</a></td><td class="record-date">Mar 1, 2026</td></tr>
  <tr class="record-row"><td><a href="/notes/2">Follow-up</a></td><td><time>Mar 2, 2026</time></td></tr>
  <tr class="record-row"><td>Draft without a link</td><td class="record-date">Mar 3, 2026</td></tr>
</table>
<table class="email-list">
  <tr class="record-row"><td><a href="/emails/9">Re: invoice</a></td><td class="record-date">Mar 4, 2026</td></tr>
</table>
</body></html>`

func testProviderCfg() config.ProviderConfig {
	return config.ProviderConfig{
		NoteRowSelector:  "table.notes-list tr.record-row",
		EmailRowSelector: "table.email-list tr.record-row",
		HTTPTimeout:      5 * time.Second,
		HostMemoryTTL:    time.Hour,
	}
}

func testSurfaceCfg() config.SurfaceConfig {
	return config.SurfaceConfig{
		ReadyTimeout:       time.Second,
		CorrelationTimeout: 200 * time.Millisecond,
		NavigationTimeout:  time.Second,
	}
}

// listSurfaces is a scripted surface manager for the enumeration path.
type listSurfaces struct {
	correlator *correlate.Correlator
	fields     map[string]string

	mu       sync.Mutex
	acquired int
	released int
}

func (f *listSurfaces) Acquire(ctx context.Context, url string) (*surface.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	return &surface.Handle{ID: fmt.Sprintf("tab-%d", f.acquired), CreatedAt: time.Now()}, nil
}

func (f *listSurfaces) AwaitReady(ctx context.Context, h *surface.Handle, timeout time.Duration) error {
	return nil
}

func (f *listSurfaces) Inject(ctx context.Context, h *surface.Handle, p surface.Payload) error {
	if f.fields == nil {
		return nil // silent surface, the wait times out
	}
	go f.correlator.Deliver(models.Message{SurfaceID: h.ID, Kind: p.ResultKind, Fields: f.fields})
	return nil
}

func (f *listSurfaces) Release(h *surface.Handle) {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
}

func newTestProvider(t *testing.T, surfaces surface.Manager, correlator *correlate.Correlator) *Provider {
	t.Helper()
	p, err := New(surfaces, correlator, testProviderCfg(), testSurfaceCfg(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_BadSelector(t *testing.T) {
	cfg := testProviderCfg()
	cfg.NoteRowSelector = "table..["
	if _, err := New(nil, nil, cfg, testSurfaceCfg(), ""); err == nil {
		t.Error("expected an error for an invalid selector")
	}
}

func TestListItems_ServerRenderedListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, casePage)
	}))
	defer srv.Close()

	p := newTestProvider(t, nil, nil)
	items, err := p.ListItems(context.Background(), srv.URL+"/cases/1001")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}

	// The draft row has no link and must be skipped.
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3: %+v", len(items), items)
	}
	if items[0].Kind != models.KindNote || items[0].SourceURL != srv.URL+"/notes/1" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].DateHint != "Mar 1, 2026" {
		t.Errorf("items[0].DateHint = %q", items[0].DateHint)
	}
	if items[1].DateHint != "Mar 2, 2026" {
		t.Errorf("time element not used as date hint: %q", items[1].DateHint)
	}
	if items[2].Kind != models.KindEmail || items[2].SourceURL != srv.URL+"/emails/9" {
		t.Errorf("items[2] = %+v", items[2])
	}

	// Success over HTTP is remembered for the host.
	base, _ := url.Parse(srv.URL)
	if got := p.memory.Get(base.Hostname()); got != pathHTTP {
		t.Errorf("host memory = %q, want %q", got, pathHTTP)
	}
}

func TestListItems_EscalatesToBrowser(t *testing.T) {
	// A SPA shell: the listing tables only exist after scripts run.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="root"></div></body></html>`)
	}))
	defer srv.Close()

	c := correlate.New()
	fs := &listSurfaces{correlator: c, fields: map[string]string{
		"note_rows":  `<tr class="record-row"><td><a href="/notes/5">n5</a></td><td class="record-date">Mar 5, 2026</td></tr>`,
		"email_rows": ``,
	}}
	p := newTestProvider(t, fs, c)

	items, err := p.ListItems(context.Background(), srv.URL+"/cases/1001")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].SourceURL != srv.URL+"/notes/5" || items[0].Kind != models.KindNote {
		t.Errorf("items[0] = %+v", items[0])
	}
	if fs.acquired != 1 || fs.released != 1 {
		t.Errorf("surface lifecycle: acquired=%d released=%d, want 1/1", fs.acquired, fs.released)
	}

	base, _ := url.Parse(srv.URL)
	if got := p.memory.Get(base.Hostname()); got != pathBrowser {
		t.Errorf("host memory = %q, want %q", got, pathBrowser)
	}
}

func TestListItems_RememberedBrowserHostSkipsHTTP(t *testing.T) {
	httpHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpHits++
		fmt.Fprint(w, casePage)
	}))
	defer srv.Close()

	c := correlate.New()
	fs := &listSurfaces{correlator: c, fields: map[string]string{"note_rows": "", "email_rows": ""}}
	p := newTestProvider(t, fs, c)

	base, _ := url.Parse(srv.URL)
	p.memory.Set(base.Hostname(), pathBrowser)

	if _, err := p.ListItems(context.Background(), srv.URL+"/cases/1001"); err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if httpHits != 0 {
		t.Errorf("HTTP path was tried %d times for a remembered browser host", httpHits)
	}
	if fs.acquired != 1 {
		t.Errorf("acquired = %d, want 1", fs.acquired)
	}
}

func TestListItems_SilentSurfaceIsHardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="root"></div></body></html>`)
	}))
	defer srv.Close()

	c := correlate.New()
	fs := &listSurfaces{correlator: c, fields: nil} // never reports
	p := newTestProvider(t, fs, c)

	_, err := p.ListItems(context.Background(), srv.URL+"/cases/1001")
	if err == nil {
		t.Fatal("expected a hard error when enumeration never reports")
	}
	var ce *models.CollectError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeListFailed {
		t.Errorf("error = %v, want code %s", err, models.ErrCodeListFailed)
	}
	if fs.released != fs.acquired {
		t.Errorf("listing surface leaked: acquired=%d released=%d", fs.acquired, fs.released)
	}
}

func TestListItems_InPageEnumerationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="root"></div></body></html>`)
	}))
	defer srv.Close()

	c := correlate.New()
	fs := &listSurfaces{correlator: c, fields: map[string]string{"error": "SecurityError: blocked"}}
	p := newTestProvider(t, fs, c)

	_, err := p.ListItems(context.Background(), srv.URL+"/cases/1001")
	var ce *models.CollectError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeListFailed {
		t.Fatalf("error = %v, want code %s", err, models.ErrCodeListFailed)
	}
	if !strings.Contains(ce.Message, "SecurityError") {
		t.Errorf("error message %q lost the in-page detail", ce.Message)
	}
}

func TestListItems_InvalidCaseURL(t *testing.T) {
	p := newTestProvider(t, nil, nil)
	if _, err := p.ListItems(context.Background(), "://not-a-url"); err == nil {
		t.Error("expected an error for an invalid case URL")
	}
}

func TestParseRowFragment(t *testing.T) {
	base, _ := url.Parse("https://app.example.com/cases/1001")

	rows := `<tr class="record-row"><td><a href="/notes/1">n1</a></td><td class="record-date">Mar 1, 2026</td></tr>` +
		`<tr class="record-row"><td>no link here</td></tr>` +
		`<tr class="record-row"><td><a href="notes/2">n2</a></td><td><time>Mar 2</time></td></tr>`

	items := parseRowFragment(rows, models.KindNote, base)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].SourceURL != "https://app.example.com/notes/1" {
		t.Errorf("absolute-path href resolved to %q", items[0].SourceURL)
	}
	if items[1].SourceURL != "https://app.example.com/cases/notes/2" {
		t.Errorf("relative href resolved to %q", items[1].SourceURL)
	}
	if items[1].DateHint != "Mar 2" {
		t.Errorf("DateHint = %q", items[1].DateHint)
	}
}

func TestParseRowFragment_Empty(t *testing.T) {
	base, _ := url.Parse("https://app.example.com/")
	if items := parseRowFragment("   ", models.KindEmail, base); items != nil {
		t.Errorf("blank fragment produced items: %+v", items)
	}
}

func TestNeedsBrowser(t *testing.T) {
	long := strings.Repeat("plenty of rendered words in the body here. ", 10)
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"spa root", `<html><body><div id="root"></div></body></html>`, true},
		{"next shell", `<html><body><div id="__next"></div><p>` + long + `</p></body></html>`, true},
		{"sparse page", `<html><body><p>hi</p></body></html>`, true},
		{"rendered page", `<html><body><p>` + long + `</p></body></html>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsBrowser([]byte(tt.body)); got != tt.want {
				t.Errorf("needsBrowser = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisibleText_SkipsScripts(t *testing.T) {
	body := `<html><head><script>var hidden = "secret";</script></head>
<body><style>p { color: red }</style><p>shown</p><script>more()</script></body></html>`

	text := visibleText([]byte(body))
	if !strings.Contains(text, "shown") {
		t.Errorf("visible text lost body content: %q", text)
	}
	if strings.Contains(text, "secret") || strings.Contains(text, "more()") {
		t.Errorf("visible text kept script content: %q", text)
	}
}

func TestHostMemory(t *testing.T) {
	hm := newHostMemory(20 * time.Millisecond)

	if got := hm.Get("app.example.com"); got != "" {
		t.Errorf("unknown host returned %q", got)
	}

	hm.Set("app.example.com", pathBrowser)
	if got := hm.Get("app.example.com"); got != pathBrowser {
		t.Errorf("Get = %q, want %q", got, pathBrowser)
	}

	time.Sleep(30 * time.Millisecond)
	if got := hm.Get("app.example.com"); got != "" {
		t.Errorf("expired entry returned %q", got)
	}
}
