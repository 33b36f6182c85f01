package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/models"
	"github.com/ysmood/gson"
)

// bindingName is the function injected scripts call to report back.
const bindingName = "chronicleReport"

// readyScript is installed on every new document. It reports readiness to
// the orchestrator once the DOM is usable, which gates injection timing.
// Readiness is deliberately decoupled from the completion message.
const readyScript = `() => {
	const report = () => {
		if (window.` + bindingName + `) {
			window.` + bindingName + `({ kind: "ready", fields: {} });
		}
	};
	if (document.readyState === "complete" || document.readyState === "interactive") {
		report();
	} else {
		document.addEventListener("DOMContentLoaded", report);
	}
}`

// tab is the per-handle bookkeeping the manager keeps for its own surfaces.
// Tracking orchestrator-owned tab IDs here (not globally) is what lets a
// shared browser also serve user-facing windows without interference.
type tab struct {
	page      *rod.Page
	router    *rod.HijackRouter
	ready     chan struct{}
	readyOnce sync.Once
}

// RodManager is the rod-backed Manager. It launches one headless browser and
// opens a short-lived tab per acquired surface. Safe for concurrent use.
type RodManager struct {
	browser    *rod.Browser
	browserCfg config.BrowserConfig
	surfaceCfg config.SurfaceConfig

	mu       sync.Mutex
	tabs     map[string]*tab
	reserved int // slots claimed by acquires that have not registered a tab yet

	inbound chan models.Message
}

// NewRodManager launches a headless browser and prepares the manager.
func NewRodManager(browserCfg config.BrowserConfig, surfaceCfg config.SurfaceConfig) (*RodManager, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCollectError(models.ErrCodeCreateFailed, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCollectError(models.ErrCodeCreateFailed, "failed to connect to browser", err)
	}

	return &RodManager{
		browser:    browser,
		browserCfg: browserCfg,
		surfaceCfg: surfaceCfg,
		tabs:       make(map[string]*tab),
		inbound:    make(chan models.Message, 64),
	}, nil
}

// Messages is the single shared stream of completion messages from all
// surfaces. The correlator's dispatcher loop is its only consumer.
func (m *RodManager) Messages() <-chan models.Message {
	return m.inbound
}

// Stats returns a snapshot of surface usage.
func (m *RodManager) Stats() models.SurfaceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.SurfaceStats{
		MaxSurfaces:    m.browserCfg.MaxSurfaces,
		ActiveSurfaces: len(m.tabs),
	}
}

// reserveSlot claims one surface slot against the ceiling. Open tabs and
// outstanding reservations count together, so concurrent acquires cannot
// overshoot MaxSurfaces between the check and tab registration.
func (m *RodManager) reserveSlot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tabs)+m.reserved >= m.browserCfg.MaxSurfaces {
		return models.NewCollectError(models.ErrCodeCreateFailed,
			fmt.Sprintf("surface ceiling reached (%d)", m.browserCfg.MaxSurfaces), nil)
	}
	m.reserved++
	return nil
}

// unreserve returns a claimed slot after a failed acquire.
func (m *RodManager) unreserve() {
	m.mu.Lock()
	m.reserved--
	m.mu.Unlock()
}

// commitSlot converts a reservation into a registered tab.
func (m *RodManager) commitSlot(id string, t *tab) {
	m.mu.Lock()
	m.tabs[id] = t
	m.reserved--
	m.mu.Unlock()
}

// Acquire opens a fresh tab, wires the report binding and readiness probe
// before navigation, and starts navigating to url.
//
// Order matters: the binding, the readiness probe, stealth JS, and the
// resource hijack must all be installed before Navigate, or they miss the
// document they are meant to observe.
func (m *RodManager) Acquire(ctx context.Context, url string) (*Handle, error) {
	// Claim a slot before opening anything: concurrent acquires each hold a
	// reservation, so open tabs plus reservations never exceed the ceiling.
	if err := m.reserveSlot(); err != nil {
		return nil, err
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		m.unreserve()
		return nil, models.NewCollectError(models.ErrCodeCreateFailed, "failed to open tab", err)
	}

	id := string(page.TargetID)
	t := &tab{page: page, ready: make(chan struct{})}

	// Report binding: everything injected scripts send funnels through here.
	_, err = page.Expose(bindingName, func(g gson.JSON) (interface{}, error) {
		msg := decodeMessage(id, g)
		if msg.Kind == models.MsgReady {
			t.readyOnce.Do(func() { close(t.ready) })
			return nil, nil
		}
		select {
		case m.inbound <- msg:
		default:
			slog.Warn("surface: inbound message buffer full, dropping",
				"surface", id, "kind", msg.Kind)
		}
		return nil, nil
	})
	if err != nil {
		_ = page.Close()
		m.unreserve()
		return nil, models.NewCollectError(models.ErrCodeCreateFailed, "failed to expose report binding", err)
	}

	if _, err := page.EvalOnNewDocument(readyScript); err != nil {
		_ = page.Close()
		m.unreserve()
		return nil, models.NewCollectError(models.ErrCodeCreateFailed, "failed to install readiness probe", err)
	}

	if m.browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// Worker tabs never need images, fonts or media; block them for speed.
	t.router = blockHeavyResources(page)

	m.commitSlot(id, t)

	navCtx, cancel := context.WithTimeout(ctx, m.surfaceCfg.NavigationTimeout)
	defer cancel()
	if err := t.page.Context(navCtx).Navigate(url); err != nil {
		m.Release(&Handle{ID: id})
		return nil, models.NewCollectError(models.ErrCodeCreateFailed, "navigation failed", err)
	}

	return &Handle{ID: id, CreatedAt: time.Now()}, nil
}

// AwaitReady blocks until the surface's readiness probe fires or timeout
// elapses. The caller keeps ownership of the handle either way, so cleanup
// still happens on the timeout path.
func (m *RodManager) AwaitReady(ctx context.Context, h *Handle, timeout time.Duration) error {
	m.mu.Lock()
	t, ok := m.tabs[h.ID]
	m.mu.Unlock()
	if !ok {
		return models.NewCollectError(models.ErrCodeLoadTimeout, "unknown surface", nil)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.ready:
		return nil
	case <-timer.C:
		return models.NewCollectError(models.ErrCodeLoadTimeout,
			fmt.Sprintf("surface not ready after %s", timeout), nil)
	case <-ctx.Done():
		return models.NewCollectError(models.ErrCodeLoadTimeout, "wait canceled", ctx.Err())
	}
}

// Inject evaluates the extraction payload in the surface. The script reports
// its result through the binding, not through the eval return value, so a
// nil error here only means delivery succeeded.
func (m *RodManager) Inject(ctx context.Context, h *Handle, p Payload) error {
	m.mu.Lock()
	t, ok := m.tabs[h.ID]
	m.mu.Unlock()
	if !ok {
		return models.NewCollectError(models.ErrCodeInjectFailed, "unknown surface", nil)
	}

	if _, err := t.page.Context(ctx).Eval(p.Script); err != nil {
		return models.NewCollectError(models.ErrCodeInjectFailed, "payload evaluation failed", err)
	}
	return nil
}

// Release destroys the surface. Best-effort by contract: failures are
// logged, never propagated, since the browser reclaims stray tabs on close.
func (m *RodManager) Release(h *Handle) {
	m.mu.Lock()
	t, ok := m.tabs[h.ID]
	delete(m.tabs, h.ID)
	m.mu.Unlock()
	if !ok {
		return
	}

	if t.router != nil {
		_ = t.router.Stop()
	}
	// about:blank first releases the document's memory even if Close fails.
	if err := t.page.Navigate("about:blank"); err != nil {
		slog.Warn("surface: cleanup navigation failed", "surface", h.ID, "error", err)
	}
	if err := t.page.Close(); err != nil {
		slog.Warn("surface: tab close failed, browser will reclaim it",
			"surface", h.ID, "error", err)
	}
}

// Close destroys all remaining tabs and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (m *RodManager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tabs))
	for id := range m.tabs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Release(&Handle{ID: id})
	}
	slog.Info("surface manager shutting down: closing browser")
	m.browser.MustClose()
}

// decodeMessage converts a binding call's JSON argument into a Message.
func decodeMessage(surfaceID string, g gson.JSON) models.Message {
	fields := make(map[string]string)
	for k, v := range g.Get("fields").Map() {
		fields[k] = v.Str()
	}
	return models.Message{
		SurfaceID: surfaceID,
		Kind:      g.Get("kind").Str(),
		Fields:    fields,
	}
}
