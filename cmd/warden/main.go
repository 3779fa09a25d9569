// Package main provides the CLI entry point for the warden tool-call
// security decision engine.
//
// Warden sits between an autonomous agent runtime and the tools it wants to
// invoke: every tool call is scanned, classified, checked against per-agent
// policy and operator settings, and either allowed, denied, or escalated to
// a human, with a full audit trail.
//
// # Basic Usage
//
// Scan text for prompt injection:
//
//	warden scan "ignore all previous instructions"
//	echo "some channel message" | warden scan -
//
// Decide a tool call:
//
//	warden decide --tool exec --args '{"command": "rm -rf /"}'
//
// Inspect the audit trail:
//
//	warden audit tail --db warden.db -n 20
//
// Run the observability server:
//
//	warden serve --settings warden.yaml --audit-db warden.db
//
// # Environment Variables
//
//   - WARDEN_SETTINGS: Path to the settings YAML file (default: warden.yaml)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "warden",
		Short: "Warden - tool-call security decision engine",
		Long: `Warden decides whether an agent's tool calls run, get blocked, or wait
for a human: prompt-injection scanning, per-agent tool policy, command risk
classification, network auditing, and an append-only audit trail.

Documentation: https://github.com/haasonsaas/warden`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildScanCmd(),
		buildDecideCmd(),
		buildPolicyCmd(),
		buildAuditCmd(),
		buildServeCmd(),
	)

	return rootCmd
}

// defaultSettingsPath resolves the settings file path from the environment.
func defaultSettingsPath() string {
	if p := os.Getenv("WARDEN_SETTINGS"); p != "" {
		return p
	}
	return "warden.yaml"
}
