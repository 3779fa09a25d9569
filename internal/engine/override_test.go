package engine

import (
	"sync"
	"testing"
	"time"
)

func TestOverrideLifecycle(t *testing.T) {
	clock := newFakeClock()
	o := NewOverrideWithClock(clock.Now)

	if o.Active() || o.Remaining() != 0 {
		t.Fatal("new override must be inactive")
	}

	o.Activate(10 * time.Minute)
	if !o.Active() {
		t.Fatal("expected active override")
	}
	if got := o.Remaining(); got != 10*time.Minute {
		t.Fatalf("remaining = %v, want 10m", got)
	}

	clock.Advance(4 * time.Minute)
	if got := o.Remaining(); got != 6*time.Minute {
		t.Fatalf("remaining = %v, want 6m", got)
	}

	clock.Advance(7 * time.Minute)
	if o.Active() || o.Remaining() != 0 {
		t.Fatal("expired override must report inactive and zero")
	}
}

func TestOverrideLastWriteWins(t *testing.T) {
	clock := newFakeClock()
	o := NewOverrideWithClock(clock.Now)

	// A shorter reactivation fully replaces a longer prior grant.
	o.Activate(30 * time.Minute)
	o.Activate(time.Minute)
	if got := o.Remaining(); got != time.Minute {
		t.Fatalf("remaining = %v, want 1m", got)
	}
}

func TestOverrideDeactivate(t *testing.T) {
	clock := newFakeClock()
	o := NewOverrideWithClock(clock.Now)

	o.Activate(time.Hour)
	o.Deactivate()
	if o.Active() {
		t.Fatal("deactivated override must be inactive")
	}
}

func TestOverrideNonPositiveDuration(t *testing.T) {
	clock := newFakeClock()
	o := NewOverrideWithClock(clock.Now)

	o.Activate(time.Hour)
	o.Activate(0)
	if o.Active() {
		t.Fatal("zero-duration activation must deactivate")
	}
}

func TestOverrideConcurrentActivate(t *testing.T) {
	o := NewOverride()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				o.Activate(time.Minute)
				o.Remaining()
			}
		}()
	}
	wg.Wait()

	if !o.Active() {
		t.Fatal("expected active override after concurrent activations")
	}
}
