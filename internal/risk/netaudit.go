package risk

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/haasonsaas/warden/internal/policy"
)

// NetworkAudit describes the outbound network behavior of one tool
// invocation. It is informational: the decision pipeline records it but it
// never decides a verdict on its own.
type NetworkAudit struct {
	// IsNetworkRequest is true when the tool is network-capable or the
	// arguments reference outbound destinations.
	IsNetworkRequest bool `json:"is_network_request"`

	// Targets lists destination hosts in first-seen order.
	Targets []string `json:"targets,omitempty"`

	// AllTargetsLocal is true when at least one target exists and every
	// target resolves to local/private space.
	AllTargetsLocal bool `json:"all_targets_local"`

	// IsExfiltration is true when the call both reads sensitive local
	// state and sends to a non-allowlisted external destination.
	IsExfiltration bool `json:"is_exfiltration"`

	// ExfiltrationReason explains a positive exfiltration flag.
	ExfiltrationReason string `json:"exfiltration_reason,omitempty"`
}

// networkTools reach the network by design.
var networkTools = map[string]bool{
	"web_fetch":    true,
	"web_search":   true,
	"http_request": true,
	"browser":      true,
}

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s"'<>\\]+`)
	hostArgKeys = []string{"url", "uri", "endpoint", "host", "domain"}

	// netClient marks shell commands that take network destinations.
	netClient = regexp.MustCompile(`(?i)(?:^|\s)(?:curl|wget|nc|ncat|ssh|scp|rsync)\s`)

	// sensitiveState matches reads of locally-held secrets inside the same
	// invocation: key material, env files, cloud credentials.
	sensitiveState = regexp.MustCompile(`(?i)(?:\.ssh/|id_rsa|id_ed25519|\.aws/|\.gnupg/|\.env\b|/etc/passwd|/etc/shadow|\.netrc|credentials|private[_-]?key|\$\(\s*cat\b)`)
)

// localSuffixes mark hostnames that stay inside the machine or LAN.
var localSuffixes = []string{".localhost", ".local", ".internal", ".lan", ".home.arpa"}

// IsLocalTarget reports whether host refers to local or private address
// space: loopback names and IPs, RFC1918/ULA ranges, link-local, and
// internal-only DNS suffixes. No DNS resolution is performed; the audit
// must stay pure.
func IsLocalTarget(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if host == "localhost" || host == "0.0.0.0" {
		return true
	}
	if hasAnySuffix(host, localSuffixes) {
		return true
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
	}

	// Bare single-label names (no dots) are treated as LAN hosts.
	return !strings.Contains(host, ".")
}

// AuditNetwork extracts outbound destinations from the invocation and flags
// exfiltration: a non-allowlisted external target combined with a read of
// sensitive local state in the same call. allowedDomains use the wildcard
// semantics of MatchDomain.
func AuditNetwork(toolName, argsJSON string, allowedDomains ...string) NetworkAudit {
	name := policy.NormalizeTool(toolName)

	targets := extractTargets(name, argsJSON)

	audit := NetworkAudit{
		IsNetworkRequest: networkTools[name] || len(targets) > 0,
		Targets:          targets,
	}
	if !audit.IsNetworkRequest {
		return audit
	}

	allLocal := len(targets) > 0
	var external []string
	for _, target := range targets {
		if IsLocalTarget(target) {
			continue
		}
		allLocal = false
		if !MatchDomainList(target, allowedDomains) {
			external = append(external, target)
		}
	}
	audit.AllTargetsLocal = allLocal

	if len(external) > 0 && sensitiveState.MatchString(argsJSON) {
		audit.IsExfiltration = true
		audit.ExfiltrationReason = "reads sensitive local state and targets non-allowlisted destination " + external[0]
	}

	return audit
}

// extractTargets collects destination hosts from URLs in the raw arguments,
// well-known argument fields, and shell network clients.
func extractTargets(toolName, argsJSON string) []string {
	var targets []string
	seen := make(map[string]bool)

	add := func(raw string) {
		host := hostOf(raw)
		if host != "" && !seen[host] {
			seen[host] = true
			targets = append(targets, host)
		}
	}

	for _, raw := range urlPattern.FindAllString(argsJSON, -1) {
		add(raw)
	}

	for _, key := range hostArgKeys {
		if v := stringArg(argsJSON, key); v != "" {
			add(v)
		}
	}

	if commandTools[toolName] {
		cmd := CommandFromArgs(argsJSON)
		for _, segment := range SplitCommandChain(cmd) {
			if !netClient.MatchString(segment) {
				continue
			}
			for _, field := range strings.Fields(segment) {
				// Flags, curl's @file upload arguments, and local paths
				// are never hosts.
				if strings.HasPrefix(field, "-") || strings.HasPrefix(field, "@") ||
					strings.HasPrefix(field, "/") || strings.HasPrefix(field, "~") ||
					strings.HasPrefix(field, ".") {
					continue
				}
				if strings.Contains(field, ".") || strings.Contains(field, "://") ||
					strings.Contains(field, "@") || field == "localhost" {
					add(field)
				}
			}
		}
	}

	return targets
}

// hostOf reduces a URL or bare host string to its hostname.
func hostOf(raw string) string {
	raw = strings.TrimSpace(strings.Trim(raw, `"'`))
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
		return ""
	}

	// user@host from ssh/scp style destinations
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		raw = raw[i+1:]
	}
	// host:port and scp host:path both reduce to the part before the colon
	if i := strings.Index(raw, ":"); i >= 0 && !strings.Contains(raw[:i], "/") {
		raw = raw[:i]
	}
	if strings.Contains(raw, "/") {
		raw = strings.SplitN(raw, "/", 2)[0]
	}

	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" || strings.HasPrefix(host, "-") {
		return ""
	}
	return host
}
