// Package coordinate drives one whole collection: discover the case's work
// items, run the note and email batches through the pool, and merge the two
// result sets into a single chronological timeline.
package coordinate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/pool"
	"github.com/use-agent/chronicle/provider"
)

// BatchRunner runs one batch of work items to completion. Implemented by
// *pool.Pool; tests instrument it to observe scheduling.
type BatchRunner interface {
	Run(ctx context.Context, items []models.WorkItem) *pool.ResultSet
}

// Coordinator owns the admission policy above individual batches: small
// collections run their note and email batches concurrently, large ones
// sequentially so peak tab usage stays bounded.
type Coordinator struct {
	lister provider.Lister
	runner BatchRunner
	cfg    config.CoordinatorConfig
}

// New creates a Coordinator.
func New(lister provider.Lister, runner BatchRunner, cfg config.CoordinatorConfig) *Coordinator {
	return &Coordinator{lister: lister, runner: runner, cfg: cfg}
}

// Collect gathers every related record of the given kinds for a case.
//
// List discovery happens before any pool starts; its failure is the one
// hard error, since there is nothing to partially aggregate yet. After that,
// per-item failures only ever become error entries in the timeline.
func (c *Coordinator) Collect(ctx context.Context, caseURL string, kinds []models.ItemKind) (*Timeline, error) {
	discoveryStart := time.Now()
	items, err := c.lister.ListItems(ctx, caseURL)
	if err != nil {
		return nil, err
	}
	discoveredIn := time.Since(discoveryStart)

	wanted := make(map[models.ItemKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	var notes, emails []models.WorkItem
	for _, item := range items {
		if !wanted[item.Kind] {
			continue
		}
		switch item.Kind {
		case models.KindNote:
			notes = append(notes, item)
		case models.KindEmail:
			emails = append(emails, item)
		}
	}

	total := len(notes) + len(emails)
	if total == 0 {
		return &Timeline{CaseURL: caseURL, DiscoveredIn: discoveredIn}, nil
	}

	// Small collections can afford both batches at once; their combined tab
	// usage stays under the browser's ceiling. Past the threshold we
	// serialize instead. The threshold is a policy knob, not a measured
	// limit; see config.CoordinatorConfig.
	parallel := total <= c.cfg.ParallelThreshold

	slog.Info("starting collection",
		"case", caseURL, "notes", len(notes), "emails", len(emails), "parallel", parallel)

	collectStart := time.Now()
	var noteResults, emailResults *pool.ResultSet
	if parallel {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			noteResults = c.runner.Run(ctx, notes)
		}()
		go func() {
			defer wg.Done()
			emailResults = c.runner.Run(ctx, emails)
		}()
		wg.Wait()
	} else {
		noteResults = c.runner.Run(ctx, notes)
		emailResults = c.runner.Run(ctx, emails)
	}

	tl := buildTimeline(caseURL, noteResults, emailResults)
	tl.DiscoveredIn = discoveredIn
	tl.CollectedIn = time.Since(collectStart)
	return tl, nil
}
