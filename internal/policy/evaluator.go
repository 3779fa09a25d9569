package policy

import "fmt"

// Decision is the evaluator's pure output for one tool name against one
// policy, consumed by the decision pipeline.
type Decision struct {
	// Allowed reports whether the tool may run at all.
	Allowed bool `json:"allowed"`

	// RequiresApproval reports whether a human must confirm first.
	RequiresApproval bool `json:"requires_approval"`

	// Reason explains the decision in human-readable form.
	Reason string `json:"reason"`
}

// Evaluate decides admissibility of toolName under p. Precedence:
//
//  1. AlwaysRequireApproval membership dominates everything: allowed, but
//     surfaced to a human.
//  2. ModeUnrestricted: allow without approval.
//  3. ModeAllowlist: allow listed tools; unlisted tools are surfaced to a
//     human when RequireApprovalForUnlisted is set, denied otherwise.
//  4. ModeDenylist: deny listed tools, allow the rest.
//
// A nil policy evaluates as the default (unrestricted).
func Evaluate(toolName string, p *ToolPolicy) Decision {
	if p == nil {
		p = Default()
	}
	name := NormalizeTool(toolName)

	if contains(p.AlwaysRequireApproval, name) {
		return Decision{
			Allowed:          true,
			RequiresApproval: true,
			Reason:           fmt.Sprintf("tool %q always requires approval", name),
		}
	}

	switch p.Mode {
	case ModeAllowlist:
		if contains(p.Allowed, name) {
			return Decision{Allowed: true, Reason: fmt.Sprintf("tool %q is allowlisted", name)}
		}
		if p.RequireApprovalForUnlisted {
			return Decision{
				Allowed:          true,
				RequiresApproval: true,
				Reason:           fmt.Sprintf("tool %q is not allowlisted, requires approval", name),
			}
		}
		return Decision{Reason: fmt.Sprintf("tool %q is not allowlisted", name)}

	case ModeDenylist:
		if contains(p.Denied, name) {
			return Decision{Reason: fmt.Sprintf("tool %q is denylisted", name)}
		}
		return Decision{Allowed: true, Reason: fmt.Sprintf("tool %q is not denylisted", name)}

	default:
		return Decision{Allowed: true, Reason: "policy is unrestricted"}
	}
}

// FilterByPolicy returns only the tool names the evaluator allows. Used to
// restrict which tools are even offered to the model.
func FilterByPolicy(toolNames []string, p *ToolPolicy) []string {
	var out []string
	for _, name := range toolNames {
		if Evaluate(name, p).Allowed {
			out = append(out, name)
		}
	}
	return out
}

// IsOverCallLimit reports whether count exceeds the policy's per-turn cap.
// A zero cap means unlimited.
func IsOverCallLimit(count int, p *ToolPolicy) bool {
	if p == nil || p.MaxToolCallsPerTurn <= 0 {
		return false
	}
	return count > p.MaxToolCallsPerTurn
}
