// Package audit provides the append-only audit trail for the decision
// engine. Every terminal pipeline branch, human approval verdict, network
// audit, and injection detection produces exactly one Record.
package audit

import (
	"sync"
	"time"

	"github.com/haasonsaas/warden/pkg/models"
)

// EventType categorizes audit events.
type EventType string

const (
	// Decision events, exactly one per terminal pipeline branch.
	EventDecisionAllow    EventType = "decision.allow"
	EventDecisionDeny     EventType = "decision.deny"
	EventDecisionEscalate EventType = "decision.escalate"

	// Approval events for human-in-the-loop resolutions.
	EventApprovalResolved EventType = "approval.resolved"
	EventApprovalTimeout  EventType = "approval.timeout"

	// Informational events never decide anything on their own.
	EventNetworkAudit       EventType = "network.audit"
	EventInjectionDetected  EventType = "injection.detected"
	EventSettingsLoadFailed EventType = "settings.load_failed"
)

// Record is a single audit trail entry. Records are append-only and never
// mutated after creation.
type Record struct {
	// ID uniquely identifies this record.
	ID string `json:"id"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// RiskLevel is the classified risk, if any.
	RiskLevel models.Severity `json:"risk_level,omitempty"`

	// ToolName identifies the tool for tool-related events.
	ToolName string `json:"tool_name,omitempty"`

	// ToolCallID links to a specific tool call.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Command is the extracted command string, if the tool executes one.
	Command string `json:"command,omitempty"`

	// Detail describes what happened in human-readable form.
	Detail string `json:"detail"`

	// SessionKey identifies the originating session.
	SessionKey string `json:"session_key,omitempty"`

	// AgentID identifies the agent whose policy applied.
	AgentID string `json:"agent_id,omitempty"`

	// Rule names the pipeline rule that produced a decision event.
	Rule string `json:"rule,omitempty"`

	// WasAllowed reflects the outcome: true for allow (automatic or human),
	// false for deny and escalation.
	WasAllowed bool `json:"was_allowed"`

	// MatchedPattern is the risk or command-list pattern that fired, if any.
	MatchedPattern string `json:"matched_pattern,omitempty"`
}

// Sink receives audit records. Implementations must be append-only and must
// never fail the caller: a logging outage cannot be allowed to change or
// block a verdict, so Append has no error return.
type Sink interface {
	Append(rec Record)
}

// MultiSink fans a record out to several sinks.
type MultiSink []Sink

// Append delivers rec to every member sink.
func (m MultiSink) Append(rec Record) {
	for _, s := range m {
		s.Append(rec)
	}
}

// MemorySink collects records in memory. Intended for tests and the CLI's
// one-shot commands. Safe for concurrent use; the pending-approval sweeper
// appends from its own goroutine.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores the record.
func (m *MemorySink) Append(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of everything appended so far.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
