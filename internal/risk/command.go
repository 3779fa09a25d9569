// Package risk classifies tool invocations for destructive and
// privilege-escalation risk, and audits them for outbound network targets
// and exfiltration signals. Classification is pure: identical inputs always
// yield identical results against the signature tables built at init.
package risk

import (
	"encoding/json"
	"strings"
)

// commandKeys are the argument fields command-executing tools use for their
// command string, checked in order.
var commandKeys = []string{"command", "cmd", "script", "shell_command"}

// CommandFromArgs extracts the command string from JSON-encoded tool
// arguments. Malformed or non-object input yields the empty string: the
// classifier then proceeds on the tool name alone with reduced signal.
func CommandFromArgs(argsJSON string) string {
	if strings.TrimSpace(argsJSON) == "" {
		return ""
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return ""
	}

	for _, key := range commandKeys {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// stringArg extracts a named string field from JSON-encoded arguments,
// tolerating malformed input.
func stringArg(argsJSON, key string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return ""
	}
	v, _ := args[key].(string)
	return v
}

// SplitCommandChain splits a shell command on unquoted chain operators
// (;, &&, ||, |, &, newline) so a destructive segment hidden behind a
// benign prefix is still classified. Quoted operators are left intact.
func SplitCommandChain(cmd string) []string {
	var (
		segments []string
		current  strings.Builder
		inSingle bool
		inDouble bool
	)

	flush := func() {
		seg := strings.TrimSpace(current.String())
		if seg != "" {
			segments = append(segments, seg)
		}
		current.Reset()
	}

	runes := []rune(cmd)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			current.WriteRune(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			current.WriteRune(c)
		case inSingle || inDouble:
			current.WriteRune(c)
		case c == ';' || c == '\n':
			flush()
		case c == '&' || c == '|':
			// Collapse && and || into a single separator.
			if i+1 < len(runes) && runes[i+1] == c {
				i++
			}
			flush()
		default:
			current.WriteRune(c)
		}
	}
	flush()

	return segments
}
