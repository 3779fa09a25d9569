// Package injection scans free-form text (chat messages, channel messages)
// for prompt-injection attempts before it reaches the agent loop. Patterns
// detect system prompt overrides, role confusion, jailbreaks, markup
// injection, and social-engineering phrasing.
//
// The scanner is stateless and deterministic: identical input always
// produces an identical result against the registered pattern table.
package injection

import (
	"regexp"

	"github.com/haasonsaas/warden/pkg/models"
)

// Pattern is one statically registered injection signature.
type Pattern struct {
	// Regexp matches offending text. Registered patterns are compiled once
	// at package init.
	Regexp *regexp.Regexp

	// Severity grades how dangerous a match is.
	Severity models.Severity

	// Category groups related signatures (override, jailbreak, leaking...).
	Category string

	// Description explains what the signature detects.
	Description string
}

// severityWeight is the score contribution of one match.
var severityWeight = map[models.Severity]int{
	models.SeverityCritical: 40,
	models.SeverityHigh:     25,
	models.SeverityMedium:   12,
	models.SeverityLow:      5,
}

// patterns is the ordered registry. Registration order only affects match
// ordering in results, never correctness.
var patterns = []Pattern{
	// Critical: system prompt override
	{
		Regexp:      regexp.MustCompile(`(?i)\b(?:ignore|disregard|forget|override)\s+(?:all\s+|any\s+)?(?:(?:previous|prior|above|earlier|your)\s+(?:instructions|prompts?|rules)|all\s+instructions|(?:the\s+|your\s+)?system\s+prompt)`),
		Severity:    models.SeverityCritical,
		Category:    "override",
		Description: "Attempts to override system prompt",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)\byou are now (?:a|an|the)\b`),
		Severity:    models.SeverityCritical,
		Category:    "identity",
		Description: "Attempts to redefine agent identity",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)new instructions\s*:`),
		Severity:    models.SeverityCritical,
		Category:    "override",
		Description: "Injects new instructions",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)\b(?:system|admin|root)\s+(?:override|command|directive)\b`),
		Severity:    models.SeverityCritical,
		Category:    "override",
		Description: "Fake system/admin override",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)(?:\bdan\s+(?:mode|prompt|jailbreak)\b|\bdo anything now\b)`),
		Severity:    models.SeverityCritical,
		Category:    "jailbreak",
		Description: "Known DAN jailbreak pattern",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)developer mode (?:enabled|activated)`),
		Severity:    models.SeverityCritical,
		Category:    "jailbreak",
		Description: "Fake developer mode activation",
	},

	// High: prompt leaking
	{
		Regexp:      regexp.MustCompile(`(?i)\b(?:show|reveal|tell|display|print|output|repeat|echo)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+prompt|instructions|rules|configuration|guidelines|prompt)`),
		Severity:    models.SeverityHigh,
		Category:    "leaking",
		Description: "Attempts to extract system prompt",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)what (?:are|is) your (?:instructions|rules|system prompt|prompt)`),
		Severity:    models.SeverityHigh,
		Category:    "leaking",
		Description: "Asks for system prompt content",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)repeat the text above`),
		Severity:    models.SeverityHigh,
		Category:    "leaking",
		Description: "Repeat text above (prompt leak)",
	},

	// High: tool injection
	{
		Regexp:      regexp.MustCompile(`tool_call\(`),
		Severity:    models.SeverityHigh,
		Category:    "tool_injection",
		Description: "Direct tool_call injection",
	},

	// Medium: markup injection
	{
		Regexp:      regexp.MustCompile(`\[/?INST\]`),
		Severity:    models.SeverityMedium,
		Category:    "markup",
		Description: "Llama-style instruction markers",
	},
	{
		Regexp:      regexp.MustCompile(`<\|im_(?:start|end)\|>`),
		Severity:    models.SeverityMedium,
		Category:    "markup",
		Description: "ChatML-style markers",
	},
	{
		Regexp:      regexp.MustCompile(`(?m)^[ \t]*(?:System|Human|Assistant):`),
		Severity:    models.SeverityMedium,
		Category:    "markup",
		Description: "Role prefix injection",
	},
	{
		Regexp:      regexp.MustCompile(`(?i)</?(?:system|user|assistant)>`),
		Severity:    models.SeverityMedium,
		Category:    "markup",
		Description: "XML role tag injection",
	},

	// Medium: social engineering
	{
		Regexp:      regexp.MustCompile(`(?i)without (?:any )?(?:restrictions|limitations|safety|guardrails|filters|censorship)`),
		Severity:    models.SeverityMedium,
		Category:    "social",
		Description: "Requesting removal of safety restrictions",
	},

	// Low: bypass mentions
	{
		Regexp:      regexp.MustCompile(`(?i)\b(?:bypass|circumvent|evade|disable)\s+(?:the\s+)?(?:safety|security|content filter|moderation|filter)`),
		Severity:    models.SeverityLow,
		Category:    "bypass",
		Description: "Bypass safety mention",
	},
}

// Patterns returns the registered pattern table. The returned slice must be
// treated as read-only.
func Patterns() []Pattern {
	return patterns
}
