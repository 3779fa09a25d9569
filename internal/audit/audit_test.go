package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/warden/pkg/models"
)

func TestMemorySinkConcurrentAppend(t *testing.T) {
	sink := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sink.Append(Record{Type: EventDecisionAllow})
			}
		}()
	}
	wg.Wait()

	if got := len(sink.Records()); got != 400 {
		t.Fatalf("records = %d, want 400", got)
	}
}

func TestMemorySinkRecordsIsCopy(t *testing.T) {
	sink := NewMemorySink()
	sink.Append(Record{Detail: "original"})

	recs := sink.Records()
	recs[0].Detail = "mutated"

	if sink.Records()[0].Detail != "original" {
		t.Fatal("Records must return a copy")
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := NewMemorySink()
	b := NewMemorySink()
	sink := MultiSink{a, b}

	sink.Append(Record{Type: EventDecisionDeny})

	if len(a.Records()) != 1 || len(b.Records()) != 1 {
		t.Fatal("record must reach every member sink")
	}
}

func TestLoggerWritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(Config{Output: "file:" + path, Format: "json"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	logger.Append(Record{
		Type:       EventDecisionDeny,
		RiskLevel:  models.SeverityCritical,
		ToolName:   "exec",
		ToolCallID: "tc-1",
		Command:    "rm -rf /",
		Detail:     "critical risk auto-denied",
	})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(raw))
	if line == "" {
		t.Fatal("expected one audit line")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	if entry["type"] != string(EventDecisionDeny) {
		t.Fatalf("type = %v", entry["type"])
	}
	if entry["tool_call_id"] != "tc-1" {
		t.Fatalf("tool_call_id = %v", entry["tool_call_id"])
	}
	if entry["id"] == "" {
		t.Fatal("missing generated id")
	}
}

func TestLoggerFullBufferDropsWithDiagnostic(t *testing.T) {
	var diagBuf bytes.Buffer
	diag := slog.New(slog.NewTextHandler(&diagBuf, nil))

	// A tiny buffer with a long flush interval forces drops.
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(Config{
		Output:        "file:" + path,
		BufferSize:    1,
		FlushInterval: time.Hour,
	}, diag)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 200; i++ {
		logger.Append(Record{Type: EventDecisionAllow})
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	// Append never blocks; whether a drop happened depends on the writer
	// goroutine winning races, so only assert the diagnostic shape.
	if diagBuf.Len() > 0 && !strings.Contains(diagBuf.String(), "audit buffer full") {
		t.Fatalf("unexpected diagnostic: %s", diagBuf.String())
	}
}

func TestLoggerRejectsUnknownOutput(t *testing.T) {
	if _, err := NewLogger(Config{Output: "syslog:local0"}, nil); err == nil {
		t.Fatal("expected error for unsupported output")
	}
}

func TestSQLiteSinkAppendAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []EventType{EventDecisionAllow, EventDecisionDeny, EventApprovalResolved} {
		sink.Append(Record{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Type:      typ,
			ToolName:  "exec",
			RiskLevel: models.SeverityHigh,
		})
	}

	recs, err := sink.Tail(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("tail = %d records, want 2", len(recs))
	}
	if recs[0].Type != EventApprovalResolved {
		t.Fatalf("newest first: got %s", recs[0].Type)
	}
	if recs[0].RiskLevel != models.SeverityHigh {
		t.Fatalf("risk level = %s", recs[0].RiskLevel)
	}
}

func TestSQLiteSinkSwallowsFailures(t *testing.T) {
	var diagBuf bytes.Buffer
	diag := slog.New(slog.NewTextHandler(&diagBuf, nil))

	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path, diag)
	if err != nil {
		t.Fatal(err)
	}
	sink.Failures = prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_failures"})
	sink.Close()

	// Appending to a closed sink must not panic or surface an error.
	sink.Append(Record{Type: EventDecisionAllow})
	if !strings.Contains(diagBuf.String(), "audit") {
		t.Fatalf("expected a diagnostic, got %q", diagBuf.String())
	}
	if got := testutil.ToFloat64(sink.Failures); got != 1 {
		t.Fatalf("failure counter = %v, want 1", got)
	}
}

func TestLoggerDropIncrementsFailureCounter(t *testing.T) {
	var diagBuf bytes.Buffer
	diag := slog.New(slog.NewTextHandler(&diagBuf, nil))

	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(Config{
		Output:        "file:" + path,
		BufferSize:    1,
		FlushInterval: time.Hour,
	}, diag)
	if err != nil {
		t.Fatal(err)
	}
	logger.Failures = prometheus.NewCounter(prometheus.CounterOpts{Name: "test_audit_drops"})

	for i := 0; i < 200; i++ {
		logger.Append(Record{Type: EventDecisionAllow})
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	// The counter and the diagnostic must agree: one increment per drop.
	drops := strings.Count(diagBuf.String(), "audit buffer full")
	if got := testutil.ToFloat64(logger.Failures); got != float64(drops) {
		t.Fatalf("failure counter = %v, diagnostics reported %d drops", got, drops)
	}
}
