// Package models contains the shared vocabulary used across the warden
// decision engine: severity levels, verdicts, and the inbound tool-call event.
package models

// Severity grades how dangerous a matched signature is. The injection scanner
// and the risk classifier share this scale so their outputs can be compared
// and audited uniformly.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for max-comparison. Unknown values rank
// below low so they never win an aggregation.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric ordering of the severity (low=1 .. critical=4).
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is equal to or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Verdict is the terminal outcome of the decision pipeline for one tool call.
type Verdict string

const (
	// VerdictAllow lets the tool call proceed without human involvement.
	VerdictAllow Verdict = "allow"

	// VerdictDeny blocks the tool call outright.
	VerdictDeny Verdict = "deny"

	// VerdictRequireApproval suspends the tool call until a human decides.
	VerdictRequireApproval Verdict = "require_approval"
)

// ToolCallEvent is the inbound event delivered by the agent runtime for every
// tool invocation attempt.
type ToolCallEvent struct {
	// ToolCallID correlates the decision with a later approval resolution.
	ToolCallID string `json:"tool_call_id"`

	// ToolName is the capability the agent wants to invoke.
	ToolName string `json:"tool_name"`

	// ArgumentsJSON is the raw JSON-encoded tool arguments. Malformed input
	// is tolerated; classification proceeds with reduced signal.
	ArgumentsJSON string `json:"arguments_json"`

	// SessionKey identifies the originating session for auditing.
	SessionKey string `json:"session_key"`

	// AgentID selects the per-agent tool policy.
	AgentID string `json:"agent_id"`
}
