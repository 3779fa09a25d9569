package engine

import (
	"sync"
	"time"

	"github.com/haasonsaas/warden/pkg/models"
)

// pendingApproval tracks one tool call suspended at the approval step.
type pendingApproval struct {
	decision  *Decision
	req       Request
	command   string
	riskLevel models.Severity
	expiresAt time.Time
}

// pendingTable holds suspended decisions keyed by tool-call id. Entries are
// removed exactly once, by resolution or by the expiry sweeper, so a late
// duplicate resolution finds nothing and no-ops.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingApproval
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingApproval)}
}

func (t *pendingTable) put(id string, p *pendingApproval) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = p
}

// take removes and returns the entry for id, if present.
func (t *pendingTable) take(id string) (*pendingApproval, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return p, ok
}

// takeExpired removes and returns every entry whose deadline has passed.
func (t *pendingTable) takeExpired(now time.Time) []*pendingApproval {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []*pendingApproval
	for id, p := range t.entries {
		if !p.expiresAt.After(now) {
			expired = append(expired, p)
			delete(t.entries, id)
		}
	}
	return expired
}

func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
