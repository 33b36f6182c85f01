// Package correlate matches asynchronous completion messages from worker
// surfaces back to the pipeline that is waiting for them.
//
// There is exactly one inbound message stream for the whole system, not one
// per surface. A registration is keyed by (surface ID, message kind) and is
// fulfilled exactly once: either by a matching inbound message or by its
// deadline, whichever wins the race. The loser's effect is a no-op.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/chronicle/models"
)

// ErrTimeout is returned by Pending.Wait when the deadline fired before a
// matching message arrived.
var ErrTimeout = errors.New("correlate: no completion message before deadline")

// ErrDuplicate is returned by Register when a waiter for the same
// (surface, kind) pair is already pending. At most one correlation may be
// outstanding per pair at a time.
var ErrDuplicate = errors.New("correlate: correlation already pending for this surface and kind")

type key struct {
	surfaceID string
	kind      string
}

// outcome is the single value a waiter ever receives.
type outcome struct {
	msg models.Message
	err error
}

type waiter struct {
	ch    chan outcome // buffered 1; written exactly once
	timer *time.Timer
}

// Correlator is the registry of pending correlations. It is safe for
// concurrent use; the register/deliver/timeout race is serialized by the
// mutex, and whichever path removes a waiter from the map is the one that
// resolves it.
type Correlator struct {
	mu      sync.Mutex
	waiters map[key]*waiter
}

// New creates an empty Correlator.
func New() *Correlator {
	return &Correlator{waiters: make(map[key]*waiter)}
}

// Register creates a pending correlation for the (surfaceID, kind) pair with
// the given deadline. The returned Pending must be consumed with Wait or
// discarded with Cancel; otherwise the registration lives until its timer fires.
func (c *Correlator) Register(surfaceID, kind string, timeout time.Duration) (*Pending, error) {
	k := key{surfaceID: surfaceID, kind: kind}
	w := &waiter{ch: make(chan outcome, 1)}

	c.mu.Lock()
	if _, exists := c.waiters[k]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: surface=%s kind=%s", ErrDuplicate, surfaceID, kind)
	}
	// The timer is armed inside the critical section that publishes the
	// waiter, so any Deliver that finds w in the map also sees w.timer.
	// If it fires right away its resolve call parks on the mutex.
	w.timer = time.AfterFunc(timeout, func() {
		c.resolve(k, w, outcome{err: fmt.Errorf("%w: surface=%s kind=%s after %s",
			ErrTimeout, surfaceID, kind, timeout)})
	})
	c.waiters[k] = w
	c.mu.Unlock()

	return &Pending{c: c, k: k, w: w}, nil
}

// Deliver routes an inbound message to its pending waiter. It returns whether
// some waiter consumed the message. Unmatched messages (late arrivals after a
// timeout already fired, or messages from surfaces nobody waits on) are the
// caller's to drop.
func (c *Correlator) Deliver(msg models.Message) bool {
	k := key{surfaceID: msg.SurfaceID, kind: msg.Kind}

	c.mu.Lock()
	w, ok := c.waiters[k]
	if ok {
		delete(c.waiters, k)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.ch <- outcome{msg: msg}
	return true
}

// PendingCount returns the number of outstanding correlations.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// resolve completes a waiter with the given outcome if, and only if, it is
// still the registered waiter for k. Removal from the map under the lock is
// what makes resolution exactly-once: the timer and Deliver both funnel
// through this check, and only the first remover sends.
func (c *Correlator) resolve(k key, w *waiter, o outcome) {
	c.mu.Lock()
	current, ok := c.waiters[k]
	if !ok || current != w {
		c.mu.Unlock()
		return
	}
	delete(c.waiters, k)
	c.mu.Unlock()

	w.ch <- o
}

// Pending is a single-fulfilment future for one registered correlation.
type Pending struct {
	c *Correlator
	k key
	w *waiter
}

// Wait blocks until the correlation resolves (message or deadline). It also
// honors caller cancellation: on ctx expiry the registration is withdrawn
// and the context error returned.
func (p *Pending) Wait(ctx context.Context) (models.Message, error) {
	select {
	case o := <-p.w.ch:
		return o.msg, o.err
	case <-ctx.Done():
		p.Cancel()
		// A message may have squeaked in between cancellation and the
		// select; prefer it over the cancellation.
		select {
		case o := <-p.w.ch:
			return o.msg, o.err
		default:
			return models.Message{}, ctx.Err()
		}
	}
}

// Cancel withdraws the registration if it is still pending. Safe to call
// after resolution; it is then a no-op.
func (p *Pending) Cancel() {
	p.c.mu.Lock()
	current, ok := p.c.waiters[p.k]
	if ok && current == p.w {
		delete(p.c.waiters, p.k)
	}
	p.c.mu.Unlock()
	if p.w.timer != nil {
		p.w.timer.Stop()
	}
}

// Run consumes the shared inbound stream until ctx is canceled or the
// channel is closed, delivering each message to its waiter. This is the
// single dispatcher loop; nothing else reads the inbound channel.
func (c *Correlator) Run(ctx context.Context, inbound <-chan models.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			if !c.Deliver(msg) {
				slog.Debug("correlate: dropping unmatched message",
					"surface", msg.SurfaceID, "kind", msg.Kind)
			}
		}
	}
}
