package correlate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/chronicle/models"
)

func msg(surfaceID, kind string, fields map[string]string) models.Message {
	return models.Message{SurfaceID: surfaceID, Kind: kind, Fields: fields}
}

func TestDeliver_ResolvesWaiter(t *testing.T) {
	c := New()

	pending, err := c.Register("s1", "note-result", time.Second)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !c.Deliver(msg("s1", "note-result", map[string]string{"title": "hi"})) {
		t.Fatal("Deliver returned false for a registered waiter")
	}

	got, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got.Field("title") != "hi" {
		t.Errorf("got title %q, want %q", got.Field("title"), "hi")
	}
	if n := c.PendingCount(); n != 0 {
		t.Errorf("PendingCount = %d after resolution, want 0", n)
	}
}

func TestDeliver_UnmatchedMessage(t *testing.T) {
	c := New()

	if c.Deliver(msg("nobody", "note-result", nil)) {
		t.Error("Deliver returned true with no waiters registered")
	}

	// A waiter for a different kind on the same surface must not match.
	pending, err := c.Register("s1", "email-result", time.Second)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer pending.Cancel()

	if c.Deliver(msg("s1", "note-result", nil)) {
		t.Error("Deliver matched a waiter registered for a different kind")
	}
}

func TestRegister_DuplicatePair(t *testing.T) {
	c := New()

	pending, err := c.Register("s1", "note-result", time.Second)
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}
	defer pending.Cancel()

	if _, err := c.Register("s1", "note-result", time.Second); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Register error = %v, want ErrDuplicate", err)
	}

	// The same surface may still wait on a different kind.
	other, err := c.Register("s1", "email-result", time.Second)
	if err != nil {
		t.Errorf("Register for a different kind: %v", err)
	} else {
		other.Cancel()
	}
}

func TestWait_Timeout(t *testing.T) {
	c := New()

	pending, err := c.Register("s1", "note-result", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = pending.Wait(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait error = %v, want ErrTimeout", err)
	}
	if n := c.PendingCount(); n != 0 {
		t.Errorf("PendingCount = %d after timeout, want 0", n)
	}

	// A late delivery after the timeout is a no-op.
	if c.Deliver(msg("s1", "note-result", nil)) {
		t.Error("Deliver matched a waiter that already timed out")
	}
}

func TestDeliver_StopsTimer(t *testing.T) {
	c := New()

	pending, err := c.Register("s1", "note-result", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !c.Deliver(msg("s1", "note-result", nil)) {
		t.Fatal("Deliver returned false")
	}

	got, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait after delivery: %v", err)
	}
	if got.SurfaceID != "s1" {
		t.Errorf("got surface %q, want s1", got.SurfaceID)
	}

	// If the stale timer fires anyway, it must not corrupt a new
	// registration for the same pair.
	time.Sleep(40 * time.Millisecond)
	again, err := c.Register("s1", "note-result", time.Second)
	if err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	defer again.Cancel()
	if n := c.PendingCount(); n != 1 {
		t.Errorf("PendingCount = %d, want 1", n)
	}
}

func TestWait_ContextCancel(t *testing.T) {
	c := New()

	pending, err := c.Register("s1", "note-result", time.Minute)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := pending.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait error = %v, want context.Canceled", err)
	}
	if n := c.PendingCount(); n != 0 {
		t.Errorf("PendingCount = %d after cancel, want 0", n)
	}
}

func TestCancel_AfterResolutionIsNoop(t *testing.T) {
	c := New()

	pending, err := c.Register("s1", "note-result", time.Second)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	c.Deliver(msg("s1", "note-result", nil))

	// Cancel after the fact must not disturb a fresh registration.
	pending.Cancel()

	fresh, err := c.Register("s1", "note-result", time.Second)
	if err != nil {
		t.Fatalf("re-Register after cancel: %v", err)
	}
	defer fresh.Cancel()

	pending.Cancel()
	if n := c.PendingCount(); n != 1 {
		t.Errorf("stale Cancel removed the fresh waiter, PendingCount = %d, want 1", n)
	}
}

func TestResolve_ExactlyOnceUnderRace(t *testing.T) {
	c := New()

	// Hammer the timer-vs-deliver race: with a deadline this tight either
	// side can win, and each waiter must still resolve exactly once.
	const rounds = 200
	for i := 0; i < rounds; i++ {
		pending, err := c.Register("s1", "note-result", time.Millisecond)
		if err != nil {
			t.Fatalf("round %d Register: %v", i, err)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Deliver(msg("s1", "note-result", nil))
		}()

		if _, err := pending.Wait(context.Background()); err != nil && !errors.Is(err, ErrTimeout) {
			t.Fatalf("round %d Wait: %v", i, err)
		}
		wg.Wait()

		if n := c.PendingCount(); n != 0 {
			t.Fatalf("round %d left %d pending waiters", i, n)
		}
	}
}

func TestRegister_TimerVisibleToDeliver(t *testing.T) {
	c := New()

	// Deliver racing with Register itself: the timer must be armed before
	// the waiter is visible in the registry, so the delivering side never
	// observes a half-built waiter.
	const rounds = 200
	for i := 0; i < rounds; i++ {
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !c.Deliver(msg("s1", "note-result", nil)) {
				select {
				case <-stop:
					return
				default:
				}
			}
		}()

		pending, err := c.Register("s1", "note-result", 50*time.Millisecond)
		if err != nil {
			close(stop)
			t.Fatalf("round %d Register: %v", i, err)
		}
		_, err = pending.Wait(context.Background())
		close(stop)
		wg.Wait()
		if err != nil && !errors.Is(err, ErrTimeout) {
			t.Fatalf("round %d Wait: %v", i, err)
		}
	}
	if n := c.PendingCount(); n != 0 {
		t.Fatalf("%d pending waiters left", n)
	}
}

func TestRun_DispatchesInboundStream(t *testing.T) {
	c := New()

	inbound := make(chan models.Message, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, inbound)
	}()

	p1, err := c.Register("s1", "note-result", time.Second)
	if err != nil {
		t.Fatalf("Register s1: %v", err)
	}
	p2, err := c.Register("s2", "email-result", time.Second)
	if err != nil {
		t.Fatalf("Register s2: %v", err)
	}

	inbound <- msg("s9", "note-result", nil) // unmatched, dropped
	inbound <- msg("s2", "email-result", map[string]string{"body": "b2"})
	inbound <- msg("s1", "note-result", map[string]string{"body": "b1"})

	m1, err := p1.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait s1: %v", err)
	}
	m2, err := p2.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait s2: %v", err)
	}
	if m1.Field("body") != "b1" || m2.Field("body") != "b2" {
		t.Errorf("messages crossed: s1 got %q, s2 got %q", m1.Field("body"), m2.Field("body"))
	}

	close(inbound)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after inbound channel closed")
	}
}
