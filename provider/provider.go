// Package provider enumerates the work items attached to a case: it reads
// the case page's related-record tables and turns each row into a WorkItem.
//
// Two paths exist. Server-rendered listings are fetched over plain HTTP
// (with a Chrome TLS fingerprint) and parsed directly; script-rendered ones
// go through a worker surface with an injected enumeration payload. Which
// path a host needs is remembered with a TTL so subsequent collections skip
// the dead end.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/correlate"
	"github.com/use-agent/chronicle/extract"
	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/surface"
)

// Lister is the list-provider capability consumed by the coordinator.
type Lister interface {
	ListItems(ctx context.Context, caseURL string) ([]models.WorkItem, error)
}

// Provider discovers work items from a case page.
type Provider struct {
	surfaces   surface.Manager
	correlator *correlate.Correlator
	cfg        config.ProviderConfig
	surfaceCfg config.SurfaceConfig

	fetcher *httpFetcher
	memory  *hostMemory

	noteRows  cascadia.Selector
	emailRows cascadia.Selector
}

// New creates a Provider. The configured row selectors are compiled up
// front so a bad selector fails at startup, not mid-collection.
func New(surfaces surface.Manager, correlator *correlate.Correlator,
	cfg config.ProviderConfig, surfaceCfg config.SurfaceConfig, proxy string) (*Provider, error) {

	noteRows, err := cascadia.Compile(cfg.NoteRowSelector)
	if err != nil {
		return nil, fmt.Errorf("provider: bad note row selector %q: %w", cfg.NoteRowSelector, err)
	}
	emailRows, err := cascadia.Compile(cfg.EmailRowSelector)
	if err != nil {
		return nil, fmt.Errorf("provider: bad email row selector %q: %w", cfg.EmailRowSelector, err)
	}

	return &Provider{
		surfaces:   surfaces,
		correlator: correlator,
		cfg:        cfg,
		surfaceCfg: surfaceCfg,
		fetcher:    newHTTPFetcher(proxy, cfg.HTTPTimeout),
		memory:     newHostMemory(cfg.HostMemoryTTL),
		noteRows:   noteRows,
		emailRows:  emailRows,
	}, nil
}

// ListItems enumerates the case's related records. A failure here is a hard
// error for the whole collection; there is nothing to partially aggregate
// before this point.
func (p *Provider) ListItems(ctx context.Context, caseURL string) ([]models.WorkItem, error) {
	base, err := url.Parse(caseURL)
	if err != nil {
		return nil, models.NewCollectError(models.ErrCodeListFailed, "invalid case URL", err)
	}

	if p.memory.Get(base.Hostname()) != pathBrowser {
		items, err := p.listOverHTTP(ctx, caseURL, base)
		if err == nil {
			p.memory.Set(base.Hostname(), pathHTTP)
			return items, nil
		}
		slog.Debug("provider: HTTP listing path failed, escalating to browser",
			"case", caseURL, "error", err)
	}

	items, err := p.listViaSurface(ctx, caseURL, base)
	if err != nil {
		return nil, err
	}
	p.memory.Set(base.Hostname(), pathBrowser)
	return items, nil
}

// listOverHTTP fetches the case page without a browser and parses the
// listing tables out of the server-rendered document.
func (p *Provider) listOverHTTP(ctx context.Context, caseURL string, base *url.URL) ([]models.WorkItem, error) {
	body, err := p.fetcher.fetch(ctx, caseURL)
	if err != nil {
		return nil, err
	}
	if needsBrowser(body) {
		return nil, fmt.Errorf("listing appears script-rendered")
	}

	items, err := p.parseDocument(body, base)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		// Zero rows over HTTP is ambiguous: the case may truly be empty, or
		// the tables render client-side. Let the browser path decide.
		return nil, fmt.Errorf("no listing rows in server-rendered document")
	}
	return items, nil
}

// listViaSurface opens the case page in a worker surface, injects the
// enumeration payload, and parses the reported rows. The surface lifecycle
// mirrors a pool pipeline: release is deferred on every path.
func (p *Provider) listViaSurface(ctx context.Context, caseURL string, base *url.URL) ([]models.WorkItem, error) {
	h, err := p.surfaces.Acquire(ctx, caseURL)
	if err != nil {
		return nil, models.NewCollectError(models.ErrCodeListFailed, "failed to open listing surface", err)
	}
	defer p.surfaces.Release(h)

	if err := p.surfaces.AwaitReady(ctx, h, p.surfaceCfg.ReadyTimeout); err != nil {
		return nil, models.NewCollectError(models.ErrCodeListFailed, "listing surface never became ready", err)
	}

	payload := extract.ListPayload()
	pending, err := p.correlator.Register(h.ID, payload.ResultKind, p.surfaceCfg.CorrelationTimeout)
	if err != nil {
		return nil, models.NewCollectError(models.ErrCodeListFailed, "correlation registration failed", err)
	}

	if err := p.surfaces.Inject(ctx, h, payload); err != nil {
		pending.Cancel()
		return nil, models.NewCollectError(models.ErrCodeListFailed, "failed to inject enumeration payload", err)
	}

	msg, err := pending.Wait(ctx)
	if err != nil {
		return nil, models.NewCollectError(models.ErrCodeListFailed, "no listing result from surface", err)
	}
	if errText := msg.Field("error"); errText != "" {
		return nil, models.NewCollectError(models.ErrCodeListFailed, "in-page enumeration failed: "+errText, nil)
	}

	var items []models.WorkItem
	items = append(items, parseRowFragment(msg.Field("note_rows"), models.KindNote, base)...)
	items = append(items, parseRowFragment(msg.Field("email_rows"), models.KindEmail, base)...)
	return items, nil
}
