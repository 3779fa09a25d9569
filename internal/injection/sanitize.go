package injection

import (
	"regexp"
	"strings"
)

// Structural markers stripped by Sanitize. These remove the scaffolding an
// injected chat turn rides on without otherwise altering content.
var (
	chatMLMarker  = regexp.MustCompile(`<\|im_(?:start|end)\|>`)
	instMarker    = regexp.MustCompile(`\[/?INST\]`)
	xmlRoleTag    = regexp.MustCompile(`(?i)</?(?:system|user|assistant)>`)
	rolePrefix    = regexp.MustCompile(`(?m)^[ \t]*(?:System|Human|Assistant):[ \t]*`)
	fakeBrackets  = regexp.MustCompile(`(?i)\[(?:system|admin)\s+(?:message|instruction|note)\]`)
	collapseBlank = regexp.MustCompile(`\n{3,}`)
)

// Sanitize strips known structural injection markers: role-tag wrappers,
// chat-turn delimiters, and fake instruction brackets. Content between
// markers is preserved. Best-effort; callers must not rely on this as a
// security boundary.
func Sanitize(text string) string {
	out := chatMLMarker.ReplaceAllString(text, "")
	out = instMarker.ReplaceAllString(out, "")
	out = xmlRoleTag.ReplaceAllString(out, "")
	out = rolePrefix.ReplaceAllString(out, "")
	out = fakeBrackets.ReplaceAllString(out, "")
	out = collapseBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
