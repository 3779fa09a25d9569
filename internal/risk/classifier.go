package risk

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/warden/internal/policy"
	"github.com/haasonsaas/warden/pkg/models"
)

// Risk labels produced by the classifier.
const (
	LabelPrivilegeEscalation = "privilege_escalation"
	LabelDestructive         = "destructive_filesystem"
	LabelFinancialTransfer   = "financial_transfer"
	LabelRemoteCodeExec      = "remote_code_execution"
	LabelCredentialAccess    = "credential_access"
	LabelHistoryTampering    = "history_tampering"
)

// Classification describes the risk of one tool invocation. A nil
// classification means no signature matched, which is not the same as
// safe; the tool policy still applies independently.
type Classification struct {
	// Level grades the risk on the shared severity scale.
	Level models.Severity `json:"level"`

	// Label names the risk family.
	Label string `json:"label"`

	// Reason explains the match in human-readable form.
	Reason string `json:"reason"`

	// MatchedPattern is the signature source text that fired.
	MatchedPattern string `json:"matched_pattern,omitempty"`
}

// signature is one command risk pattern. The table is ordered most severe
// first; the first match wins.
type signature struct {
	pattern *regexp.Regexp
	level   models.Severity
	label   string
	reason  string
}

var commandSignatures = []signature{
	// Critical: privilege escalation
	{
		pattern: regexp.MustCompile(`(?i)(?:^|\s)(?:sudo|doas|pkexec)\s`),
		level:   models.SeverityCritical,
		label:   LabelPrivilegeEscalation,
		reason:  "command elevates execution rights",
	},
	{
		pattern: regexp.MustCompile(`(?i)(?:^|\s)su\s+(?:-|root\b|\w+\s*$)`),
		level:   models.SeverityCritical,
		label:   LabelPrivilegeEscalation,
		reason:  "command switches to another user",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bchmod\s+(?:[ugoa]*\+s|[0-7]?[4567][0-7]{3})\b`),
		level:   models.SeverityCritical,
		label:   LabelPrivilegeEscalation,
		reason:  "command sets a setuid/setgid bit",
	},

	// Critical: destructive filesystem operations
	{
		pattern: regexp.MustCompile(`(?i)\brm\s+(?:-[a-z]*\s+)*-[a-z]*[rf][a-z]*\s`),
		level:   models.SeverityCritical,
		label:   LabelDestructive,
		reason:  "recursive or forced file deletion",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bmkfs(?:\.\w+)?\b`),
		level:   models.SeverityCritical,
		label:   LabelDestructive,
		reason:  "filesystem format destroys all data on the target",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bdd\b[^|;]*\bof=/dev/`),
		level:   models.SeverityCritical,
		label:   LabelDestructive,
		reason:  "raw write to a block device",
	},
	{
		pattern: regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;`),
		level:   models.SeverityCritical,
		label:   LabelDestructive,
		reason:  "fork bomb",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bshred\b`),
		level:   models.SeverityCritical,
		label:   LabelDestructive,
		reason:  "irrecoverable file destruction",
	},

	// High: remote code execution
	{
		pattern: regexp.MustCompile(`(?i)\b(?:curl|wget)\b[^|;]*\|\s*(?:ba|z|da)?sh\b`),
		level:   models.SeverityHigh,
		label:   LabelRemoteCodeExec,
		reason:  "pipes a downloaded script into a shell",
	},

	// High: credential access
	{
		pattern: regexp.MustCompile(`(?i)(?:\.ssh/|id_rsa|id_ed25519|\.aws/credentials|\.gnupg/|/etc/shadow|\.netrc)`),
		level:   models.SeverityHigh,
		label:   LabelCredentialAccess,
		reason:  "touches credential or key material",
	},

	// Medium: shell history tampering
	{
		pattern: regexp.MustCompile(`(?i)(?:history\s+-c|unset\s+HISTFILE|HISTSIZE=0)`),
		level:   models.SeverityMedium,
		label:   LabelHistoryTampering,
		reason:  "hides command history",
	},
}

// commandTools execute a shell command taken from their arguments.
var commandTools = map[string]bool{
	"exec":         true,
	"execute_code": true,
	"sandbox":      true,
}

// financialTools perform irreversible transfers regardless of arguments.
var financialTools = map[string]bool{
	"transfer_funds":  true,
	"send_payment":    true,
	"execute_trade":   true,
	"wallet_transfer": true,
}

// Classify inspects the tool name and, for command-executing tools, the
// extracted command string. Returns nil when no signature matches.
func Classify(toolName, argsJSON string) *Classification {
	name := policy.NormalizeTool(toolName)

	if financialTools[name] {
		return &Classification{
			Level:  models.SeverityCritical,
			Label:  LabelFinancialTransfer,
			Reason: "irreversible financial transfer",
		}
	}

	cmd := CommandFromArgs(argsJSON)
	if cmd == "" {
		return nil
	}

	// Chained commands are split so a risky segment behind a benign prefix
	// is still seen; the whole command is checked too for patterns that
	// span operators (pipes into shells).
	candidates := append([]string{cmd}, SplitCommandChain(cmd)...)

	for _, sig := range commandSignatures {
		for _, candidate := range candidates {
			if sig.pattern.MatchString(candidate) {
				return &Classification{
					Level:          sig.level,
					Label:          sig.label,
					Reason:         sig.reason,
					MatchedPattern: sig.pattern.String(),
				}
			}
		}
	}

	return nil
}

// IsPrivilegeEscalation reports whether the invocation classifies as a
// privilege-escalation attempt.
func IsPrivilegeEscalation(toolName, argsJSON string) bool {
	c := Classify(toolName, argsJSON)
	return c != nil && c.Label == LabelPrivilegeEscalation
}

// writeTools mutate the filesystem by name alone.
var writeTools = map[string]bool{
	"write_file":  true,
	"edit_file":   true,
	"delete_file": true,
	"create_file": true,
	"move_file":   true,
	"copy_file":   true,
}

// writeCommand matches shell commands that mutate the filesystem.
var writeCommand = regexp.MustCompile(`(?i)(?:^|\s)(?:rm|mv|cp|touch|mkdir|rmdir|tee|truncate|ln)\s|(?:^|[^>])>{1,2}[^>]|\bsed\s+(?:-[a-z]*\s+)*-i\b|\bchmod\s|\bchown\s`)

// IsFilesystemWrite reports whether the invocation writes to the filesystem,
// either by tool name or by the command it would run.
func IsFilesystemWrite(toolName, argsJSON string) bool {
	name := policy.NormalizeTool(toolName)
	if writeTools[name] {
		return true
	}
	if !commandTools[name] {
		return false
	}

	cmd := CommandFromArgs(argsJSON)
	if cmd == "" {
		return false
	}
	for _, segment := range SplitCommandChain(cmd) {
		if writeCommand.MatchString(segment) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
