package injection

import (
	"context"

	"github.com/haasonsaas/warden/internal/observability"
	"github.com/haasonsaas/warden/pkg/models"
)

// DefaultThreshold is the score at or above which IsLikelyInjection reports
// true. A single low (5) or medium (12) match stays below it; one high (25)
// or critical (40) match crosses it on its own.
const DefaultThreshold = 20

// Match is one pattern hit inside scanned text.
type Match struct {
	Severity    models.Severity `json:"severity"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	MatchedText string          `json:"matched_text"`
}

// ScanResult is the outcome of scanning one piece of text.
type ScanResult struct {
	// IsInjection is true when at least one pattern matched.
	IsInjection bool `json:"is_injection"`

	// Severity is the maximum severity among all matches; empty when clean.
	Severity models.Severity `json:"severity,omitempty"`

	// Matches lists every pattern hit in registration order.
	Matches []Match `json:"matches,omitempty"`

	// Score is the saturating composite score in [0,100]:
	// critical=40, high=25, medium=12, low=5 per match.
	Score int `json:"score"`

	// SanitizedText is the input with structural injection markers stripped.
	// Best-effort only; callers must not treat it as a security boundary.
	SanitizedText string `json:"sanitized_text"`
}

// Scan evaluates every registered pattern against text and returns a
// detailed result with all matches, max severity, and composite score.
func Scan(text string) ScanResult {
	var (
		matches     []Match
		maxSeverity models.Severity
		score       int
	)

	for _, pat := range patterns {
		loc := pat.Regexp.FindStringIndex(text)
		if loc == nil {
			continue
		}

		matches = append(matches, Match{
			Severity:    pat.Severity,
			Category:    pat.Category,
			Description: pat.Description,
			MatchedText: text[loc[0]:loc[1]],
		})

		score += severityWeight[pat.Severity]
		maxSeverity = models.MaxSeverity(maxSeverity, pat.Severity)
	}

	if score > 100 {
		score = 100
	}

	return ScanResult{
		IsInjection:   len(matches) > 0,
		Severity:      maxSeverity,
		Matches:       matches,
		Score:         score,
		SanitizedText: Sanitize(text),
	}
}

// IsLikelyInjection reports whether text scores at or above threshold.
// Pass DefaultThreshold unless a caller has a reason to be stricter.
func IsLikelyInjection(text string, threshold int) bool {
	return Scan(text).Score >= threshold
}

// LogDetection writes a structured warning for a positive scan result so
// channel bridges can audit what was flagged. No-op for clean results.
func LogDetection(ctx context.Context, logger *observability.Logger, channel, userID string, result ScanResult) {
	if logger == nil || !result.IsInjection {
		return
	}

	logger.Warn(ctx, "injection detected",
		"channel", channel,
		"user_id", userID,
		"severity", string(result.Severity),
		"score", result.Score,
		"matches", len(result.Matches),
	)
	for _, m := range result.Matches {
		logger.Info(ctx, "injection match",
			"severity", string(m.Severity),
			"category", m.Category,
			"description", m.Description,
			"matched_text", m.MatchedText,
		)
	}
}
