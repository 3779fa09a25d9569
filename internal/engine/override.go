package engine

import (
	"sync"
	"time"
)

// Clock supplies the current time. Injectable for tests.
type Clock func() time.Time

// Override is the session-wide approval override: while active, tool calls
// are allowed without asking, except privilege escalation when
// autoDenyPrivilegeEscalation is set. There is one override per engine, not
// per tool; activating a new grant always fully replaces the prior one,
// even when the prior one had more time left.
type Override struct {
	mu     sync.Mutex
	expiry time.Time
	now    Clock
}

// NewOverride creates an inactive override on the wall clock.
func NewOverride() *Override {
	return NewOverrideWithClock(time.Now)
}

// NewOverrideWithClock creates an inactive override on the given clock.
func NewOverrideWithClock(now Clock) *Override {
	if now == nil {
		now = time.Now
	}
	return &Override{now: now}
}

// Activate grants the override for d from now, replacing any prior grant.
// A non-positive duration deactivates.
func (o *Override) Activate(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if d <= 0 {
		o.expiry = time.Time{}
		return
	}
	o.expiry = o.now().Add(d)
}

// Remaining returns the time left on the grant. Zero means inactive.
func (o *Override) Remaining() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.expiry.IsZero() {
		return 0
	}
	r := o.expiry.Sub(o.now())
	if r < 0 {
		return 0
	}
	return r
}

// Active reports whether the override currently grants approval.
func (o *Override) Active() bool {
	return o.Remaining() > 0
}

// Deactivate revokes the grant immediately.
func (o *Override) Deactivate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expiry = time.Time{}
}
