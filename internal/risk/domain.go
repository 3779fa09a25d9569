package risk

import "strings"

// MatchDomain reports whether domain matches pattern. Patterns use
// wildcard-prefix semantics: "*.example.com" matches "example.com" and any
// subdomain of it; any other pattern must match exactly. Comparison is
// case-insensitive.
func MatchDomain(domain, pattern string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if domain == "" || pattern == "" {
		return false
	}

	if base, ok := strings.CutPrefix(pattern, "*."); ok {
		return domain == base || strings.HasSuffix(domain, "."+base)
	}
	return domain == pattern
}

// MatchDomainList reports whether domain matches any pattern in the list.
func MatchDomainList(domain string, patterns []string) bool {
	for _, pattern := range patterns {
		if MatchDomain(domain, pattern) {
			return true
		}
	}
	return false
}
