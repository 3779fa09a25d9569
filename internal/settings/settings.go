// Package settings holds the security settings document consulted by the
// decision pipeline. Settings are read fresh for every decision; nothing in
// this package caches a loaded document.
package settings

import "strings"

// Settings is the operator-controlled security configuration.
type Settings struct {
	// AutoDenyCritical denies any call classified Critical without asking.
	AutoDenyCritical bool `yaml:"autoDenyCritical" json:"autoDenyCritical"`

	// AutoDenyPrivilegeEscalation denies privilege escalation attempts and
	// makes them immune to an active session override.
	AutoDenyPrivilegeEscalation bool `yaml:"autoDenyPrivilegeEscalation" json:"autoDenyPrivilegeEscalation"`

	// ReadOnlyProjects denies filesystem writes.
	ReadOnlyProjects bool `yaml:"readOnlyProjects" json:"readOnlyProjects"`

	// RequireTypeToCritical asks the approver to type a confirmation word
	// before a Critical call can be approved.
	RequireTypeToCritical bool `yaml:"requireTypeToCritical" json:"requireTypeToCritical"`

	// CommandAllowlist auto-approves matching commands that carry no risk
	// classification. Ordered; first match wins.
	CommandAllowlist []string `yaml:"commandAllowlist" json:"commandAllowlist"`

	// CommandDenylist denies matching commands outright. Checked before the
	// allowlist.
	CommandDenylist []string `yaml:"commandDenylist" json:"commandDenylist"`

	// AllowedDomains are outbound destinations the network auditor treats as
	// trusted. Wildcard patterns like *.example.com are accepted.
	AllowedDomains []string `yaml:"allowedDomains" json:"allowedDomains"`
}

// Conservative returns the fail-closed settings used when the store cannot
// be read: every auto-deny rule armed, no allowlisted commands.
func Conservative() Settings {
	return Settings{
		AutoDenyCritical:            true,
		AutoDenyPrivilegeEscalation: true,
		ReadOnlyProjects:            true,
		RequireTypeToCritical:       true,
	}
}

// MatchCommand reports whether command matches a single allow/deny pattern.
// A trailing * makes the pattern a raw prefix; otherwise the pattern must
// equal the command or be a whole-token prefix of it, so "git status"
// matches "git status --short" but "git" does not match "gitk".
func MatchCommand(command, pattern string) bool {
	command = strings.TrimSpace(command)
	pattern = strings.TrimSpace(pattern)
	if command == "" || pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(command, strings.TrimSuffix(pattern, "*"))
	}
	if command == pattern {
		return true
	}
	return strings.HasPrefix(command, pattern+" ")
}

// MatchCommandList reports whether command matches any pattern and returns
// the first matching pattern.
func MatchCommandList(command string, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if MatchCommand(command, pattern) {
			return pattern, true
		}
	}
	return "", false
}
