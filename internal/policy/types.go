// Package policy provides per-agent tool authorization. It defines the
// ToolPolicy document, the pure evaluator that turns a tool name and a
// policy into an allow/deny/require-approval decision, and the policy
// stores that persist documents per agent.
package policy

import (
	"strings"
)

// Mode governs default tool admissibility for an agent.
type Mode string

const (
	// ModeUnrestricted allows every tool (the default for new agents).
	ModeUnrestricted Mode = "unrestricted"

	// ModeAllowlist allows only tools in the Allowed set.
	ModeAllowlist Mode = "allowlist"

	// ModeDenylist allows everything except tools in the Denied set.
	ModeDenylist Mode = "denylist"
)

// ToolPolicy defines tool access rules for one agent.
//
// AlwaysRequireApproval is evaluated before Mode: membership there dominates
// any allow/deny outcome for approval purposes. The call may still be
// allowed, but it is always surfaced to a human.
type ToolPolicy struct {
	// Mode is the admissibility regime.
	Mode Mode `json:"mode" yaml:"mode"`

	// Allowed lists tools admissible under ModeAllowlist.
	Allowed []string `json:"allowed,omitempty" yaml:"allowed"`

	// Denied lists tools blocked under ModeDenylist.
	Denied []string `json:"denied,omitempty" yaml:"denied"`

	// RequireApprovalForUnlisted, under ModeAllowlist, surfaces unlisted
	// tools to a human instead of denying them outright.
	RequireApprovalForUnlisted bool `json:"require_approval_for_unlisted,omitempty" yaml:"require_approval_for_unlisted"`

	// MaxToolCallsPerTurn caps tool calls per agent turn. Zero means
	// unlimited.
	MaxToolCallsPerTurn int `json:"max_tool_calls_per_turn,omitempty" yaml:"max_tool_calls_per_turn"`

	// AlwaysRequireApproval lists tools that are surfaced to a human
	// regardless of Mode.
	AlwaysRequireApproval []string `json:"always_require_approval,omitempty" yaml:"always_require_approval"`
}

// Default returns the policy applied the first time an agent is referenced.
func Default() *ToolPolicy {
	return &ToolPolicy{Mode: ModeUnrestricted}
}

// Clone returns a deep copy so stored documents are never aliased by callers.
func (p *ToolPolicy) Clone() *ToolPolicy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Allowed = append([]string(nil), p.Allowed...)
	clone.Denied = append([]string(nil), p.Denied...)
	clone.AlwaysRequireApproval = append([]string(nil), p.AlwaysRequireApproval...)
	return &clone
}

// Normalize canonicalizes the policy in place: mode lowercased and
// defaulted, tool lists normalized and group references expanded.
func (p *ToolPolicy) Normalize() {
	p.Mode = Mode(strings.ToLower(strings.TrimSpace(string(p.Mode))))
	switch p.Mode {
	case ModeUnrestricted, ModeAllowlist, ModeDenylist:
	default:
		p.Mode = ModeUnrestricted
	}
	p.Allowed = ExpandGroups(p.Allowed)
	p.Denied = ExpandGroups(p.Denied)
	p.AlwaysRequireApproval = ExpandGroups(p.AlwaysRequireApproval)
}

// DefaultGroups are the built-in tool groups usable in policy documents.
var DefaultGroups = map[string][]string{
	// Filesystem tools
	"group:fs": {"read_file", "write_file", "edit_file", "delete_file", "list_dir"},

	// Command execution
	"group:exec": {"exec"},

	// Web tools
	"group:web": {"web_search", "web_fetch", "http_request"},

	// Messaging
	"group:messaging": {"send_message"},

	// Irreversible financial operations
	"group:finance": {"transfer_funds", "send_payment", "execute_trade", "wallet_transfer"},
}

// ToolAliases maps alternative names to canonical tool names.
var ToolAliases = map[string]string{
	"bash":        "exec",
	"shell":       "exec",
	"run_command": "exec",
	"apply-patch": "edit_file",
	"apply_patch": "edit_file",
	"websearch":   "web_search",
	"webfetch":    "web_fetch",
}

// NormalizeTool normalizes a tool name to its canonical form by converting
// to lowercase and resolving known aliases.
func NormalizeTool(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := ToolAliases[normalized]; ok {
		return alias
	}
	return normalized
}

// ExpandGroups expands group references and normalizes tool names,
// de-duplicating while preserving first-seen order.
func ExpandGroups(items []string) []string {
	if len(items) == 0 {
		return nil
	}

	var result []string
	seen := make(map[string]bool)

	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}

	for _, item := range items {
		normalized := NormalizeTool(item)
		if tools, ok := DefaultGroups[normalized]; ok {
			for _, tool := range tools {
				add(tool)
			}
			continue
		}
		add(normalized)
	}

	return result
}

// contains reports membership of a normalized tool name in a normalized list.
func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
