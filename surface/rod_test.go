package surface

import (
	"strings"
	"sync"
	"testing"

	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/models"
	"github.com/ysmood/gson"
)

func TestDecodeMessage(t *testing.T) {
	g := gson.NewFrom(`{"kind": "note-result", "fields": {"title": "Call summary", "internal": "true"}}`)

	msg := decodeMessage("tab-7", g)
	if msg.SurfaceID != "tab-7" {
		t.Errorf("SurfaceID = %q", msg.SurfaceID)
	}
	if msg.Kind != models.MsgNoteResult {
		t.Errorf("Kind = %q", msg.Kind)
	}
	if msg.Field("title") != "Call summary" || msg.Field("internal") != "true" {
		t.Errorf("Fields = %v", msg.Fields)
	}
}

func TestDecodeMessage_MissingFields(t *testing.T) {
	g := gson.NewFrom(`{"kind": "ready"}`)

	msg := decodeMessage("tab-1", g)
	if msg.Kind != models.MsgReady {
		t.Errorf("Kind = %q", msg.Kind)
	}
	if len(msg.Fields) != 0 {
		t.Errorf("Fields = %v, want empty", msg.Fields)
	}
	if msg.Field("anything") != "" {
		t.Error("missing field should read as empty")
	}
}

func TestReserveSlot_CeilingHoldsUnderConcurrency(t *testing.T) {
	m := &RodManager{
		browserCfg: config.BrowserConfig{MaxSurfaces: 3},
		tabs:       make(map[string]*tab),
	}

	// Reservations count against the ceiling before any tab exists, so a
	// burst of concurrent acquires cannot all pass the check.
	var wg sync.WaitGroup
	granted := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.reserveSlot(); err == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	n := 0
	for range granted {
		n++
	}
	if n != 3 {
		t.Fatalf("%d reservations granted, ceiling is 3", n)
	}

	// A committed tab keeps its slot; a failed acquire frees one.
	m.commitSlot("tab-1", &tab{ready: make(chan struct{})})
	m.unreserve()
	m.unreserve()
	if err := m.reserveSlot(); err != nil {
		t.Fatalf("slot not freed after unreserve: %v", err)
	}
	if err := m.reserveSlot(); err != nil {
		t.Fatalf("second freed slot not reusable: %v", err)
	}
	if err := m.reserveSlot(); err == nil {
		t.Fatal("reservation granted past the ceiling")
	}
}

func TestReadyScript_UsesBinding(t *testing.T) {
	// The probe must call the same binding the payloads use, or readiness
	// never reaches the manager.
	if want := "window." + bindingName; !strings.Contains(readyScript, want) {
		t.Errorf("ready script does not call %s", want)
	}
}
