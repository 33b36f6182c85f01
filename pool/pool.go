// Package pool runs item pipelines under a concurrency cap. Given a batch
// of work items it guarantees exactly one Record per item (success or
// failure placeholder), and no item can abort its siblings.
package pool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/correlate"
	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/surface"
)

// Extractor supplies the injection payload for an item and turns its raw
// completion message into a Record. The production implementation lives in
// the extract package; tests script their own.
type Extractor interface {
	Payload(item models.WorkItem) (surface.Payload, error)
	Normalize(item models.WorkItem, msg models.Message) models.Record
}

// Pool drains a batch of work items with at most Concurrency single-item
// pipelines in flight.
type Pool struct {
	surfaces   surface.Manager
	correlator *correlate.Correlator
	extractor  Extractor
	surfaceCfg config.SurfaceConfig
	cfg        config.PoolConfig
}

// New creates a Pool.
func New(surfaces surface.Manager, correlator *correlate.Correlator, extractor Extractor,
	surfaceCfg config.SurfaceConfig, cfg config.PoolConfig) *Pool {
	return &Pool{
		surfaces:   surfaces,
		correlator: correlator,
		extractor:  extractor,
		surfaceCfg: surfaceCfg,
		cfg:        cfg,
	}
}

// Run processes all items and returns the aggregated result set. It always
// returns a set with exactly len(items) entries; per-item failures become
// error records. An empty batch returns an empty set without touching the
// surface manager. Items complete in no particular order.
func (p *Pool) Run(ctx context.Context, items []models.WorkItem) *ResultSet {
	results := NewResultSet()
	if len(items) == 0 {
		return results
	}

	limit := p.cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	// The shared queue. A buffered channel gives runners their atomic pop;
	// the close is what ends a runner once the queue drains.
	queue := make(chan models.WorkItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				if err := ctx.Err(); err != nil {
					// Caller canceled: items not yet started still get a
					// record, so the batch invariant holds.
					results.Put(models.ErrorRecord(item, models.NewCollectError(
						models.ErrCodeInternal, "batch canceled before item started", err)))
					continue
				}
				results.Put(p.runOne(ctx, item))
			}
		}()
	}
	wg.Wait()

	return results
}

// runOne is the single-item pipeline: acquire → awaitReady → register
// correlation → inject → await → normalize. Every error short-circuits into
// an error record, and the deferred Release runs on every path.
func (p *Pool) runOne(ctx context.Context, item models.WorkItem) models.Record {
	payload, err := p.extractor.Payload(item)
	if err != nil {
		return models.ErrorRecord(item, models.NewCollectError(
			models.ErrCodeInjectFailed, "no payload for item", err))
	}

	h, err := p.surfaces.Acquire(ctx, item.SourceURL)
	if err != nil {
		return models.ErrorRecord(item, err)
	}
	defer p.surfaces.Release(h)

	if err := p.surfaces.AwaitReady(ctx, h, p.surfaceCfg.ReadyTimeout); err != nil {
		return models.ErrorRecord(item, err)
	}

	// Register before injecting: a fast script must not complete before
	// anyone is listening for it.
	pending, err := p.correlator.Register(h.ID, payload.ResultKind, p.surfaceCfg.CorrelationTimeout)
	if err != nil {
		return models.ErrorRecord(item, models.NewCollectError(
			models.ErrCodeInternal, "correlation registration failed", err))
	}

	if err := p.surfaces.Inject(ctx, h, payload); err != nil {
		pending.Cancel()
		return models.ErrorRecord(item, err)
	}

	msg, err := pending.Wait(ctx)
	if err != nil {
		slog.Debug("pool: item timed out waiting for completion",
			"kind", item.Kind, "source", item.SourceURL, "error", err)
		return models.ErrorRecord(item, models.NewCollectError(
			models.ErrCodeCorrelationTimeout, "no completion message from surface", err))
	}

	return p.extractor.Normalize(item, msg)
}
