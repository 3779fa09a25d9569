// handlers.go contains the implementations behind the cobra commands in
// commands.go.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/warden/internal/audit"
	"github.com/haasonsaas/warden/internal/engine"
	"github.com/haasonsaas/warden/internal/injection"
	"github.com/haasonsaas/warden/internal/observability"
	"github.com/haasonsaas/warden/internal/policy"
	"github.com/haasonsaas/warden/internal/settings"
	"github.com/haasonsaas/warden/pkg/models"
)

// =============================================================================
// Scan
// =============================================================================

func runScan(cmd *cobra.Command, args []string, threshold int, asJSON, sanitize bool) error {
	text, err := scanInput(cmd, args)
	if err != nil {
		return err
	}

	result := injection.Scan(text)

	if sanitize {
		fmt.Fprintln(cmd.OutOrStdout(), result.SanitizedText)
		return nil
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := cmd.OutOrStdout()
	if !result.IsInjection {
		fmt.Fprintln(out, "clean: no injection patterns matched")
		return nil
	}

	fmt.Fprintf(out, "severity: %s  score: %d/100  likely injection: %v\n",
		result.Severity, result.Score, result.Score >= threshold)
	for _, m := range result.Matches {
		fmt.Fprintf(out, "  [%s] %s: %q\n", m.Severity, m.Description, m.MatchedText)
	}
	return nil
}

// scanInput resolves the text to scan from the argument or stdin.
func scanInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("nothing to scan: pass text or pipe it on stdin")
	}
	return text, nil
}

// =============================================================================
// Decide
// =============================================================================

type decideOptions struct {
	toolName     string
	argsJSON     string
	sessionKey   string
	agentID      string
	settingsPath string
	policyDB     string
	auditDB      string
}

func runDecide(cmd *cobra.Command, opts decideOptions) error {
	var store settings.Store = settings.NewFileStore(opts.settingsPath)
	if _, err := store.Load(); err != nil {
		// A missing settings file means zero settings for one-shot runs.
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		store = settings.StaticStore{}
	}

	var policies policy.Store = policy.NewMemoryStore()
	if opts.policyDB != "" {
		sqlStore, err := policy.NewSQLiteStore(opts.policyDB)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		policies = sqlStore
	}

	var sink audit.Sink
	var mem *audit.MemorySink
	if opts.auditDB != "" {
		sqlSink, err := audit.NewSQLiteSink(opts.auditDB, nil)
		if err != nil {
			return err
		}
		defer sqlSink.Close()
		sink = sqlSink
	} else {
		mem = audit.NewMemorySink()
		sink = mem
	}

	e := engine.New(engine.Config{
		Policies: policies,
		Settings: store,
		Audit:    sink,
	})
	defer e.Close()

	d, err := e.Decide(cmd.Context(), engine.Request{
		ToolName:      opts.toolName,
		ArgumentsJSON: opts.argsJSON,
		SessionKey:    opts.sessionKey,
		AgentID:       opts.agentID,
	})
	if err != nil {
		return err
	}

	if mem != nil {
		for _, rec := range mem.Records() {
			fmt.Fprintf(cmd.ErrOrStderr(), "audit: [%s] %s\n", rec.Type, rec.Detail)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return err
	}
	if d.Verdict == models.VerdictDeny {
		return fmt.Errorf("tool call denied: %s", d.Reason)
	}
	return nil
}

// =============================================================================
// Policy
// =============================================================================

func runPolicyGet(cmd *cobra.Command, db, agentID string) error {
	store, err := policy.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.Get(agentID)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runPolicySet(cmd *cobra.Command, db, agentID, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var p policy.ToolPolicy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}

	store, err := policy.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Set(agentID, &p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "policy for %s updated\n", agentID)
	return nil
}

func runPolicyRemove(cmd *cobra.Command, db, agentID string) error {
	store, err := policy.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Remove(agentID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "policy for %s removed\n", agentID)
	return nil
}

// =============================================================================
// Audit
// =============================================================================

func runAuditTail(cmd *cobra.Command, db string, n int) error {
	sink, err := audit.NewSQLiteSink(db, nil)
	if err != nil {
		return err
	}
	defer sink.Close()

	recs, err := sink.Tail(n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, rec := range recs {
		line := fmt.Sprintf("%s  %-20s", rec.Timestamp.Format(time.RFC3339), rec.Type)
		if rec.ToolName != "" {
			line += "  tool=" + rec.ToolName
		}
		if rec.RiskLevel != "" {
			line += "  risk=" + string(rec.RiskLevel)
		}
		if rec.Command != "" {
			line += fmt.Sprintf("  command=%q", rec.Command)
		}
		line += "  " + rec.Detail
		fmt.Fprintln(out, line)
	}
	return nil
}

// =============================================================================
// Serve
// =============================================================================

type serveOptions struct {
	settingsPath string
	policyDB     string
	auditDB      string
	listen       string
	otlpEndpoint string
	debug        bool
}

func runServe(ctx context.Context, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := "info"
	if opts.debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{Level: level})

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		Endpoint:       opts.otlpEndpoint,
		ServiceName:    "warden",
		ServiceVersion: version,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "tracer shutdown failed", "error", err)
		}
	}()

	policies, err := policy.NewSQLiteStore(opts.policyDB)
	if err != nil {
		return err
	}
	defer policies.Close()

	sink, err := audit.NewSQLiteSink(opts.auditDB, logger.Slog())
	if err != nil {
		return err
	}
	defer sink.Close()
	sink.Failures = metrics.AuditFailures

	e := engine.New(engine.Config{
		Policies: policies,
		Settings: settings.NewFileStore(opts.settingsPath),
		Audit:    sink,
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	})
	defer e.Close()

	watcher := settings.NewWatcher(opts.settingsPath, logger.Slog())
	if err := watcher.Start(ctx); err != nil {
		logger.Warn(ctx, "settings watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":            "ok",
			"version":           version,
			"pending_approvals": e.PendingCount(),
		})
	})

	server := &http.Server{
		Addr:    opts.listen,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "observability server listening", "addr", opts.listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
