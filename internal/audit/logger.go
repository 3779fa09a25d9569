package audit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the structured audit logger.
type Config struct {
	// Format selects the record encoding: "json" (default) or "text".
	Format string `json:"format" yaml:"format"`

	// Output specifies where to write records.
	// Supported: "stdout", "stderr", "file:/path/to/file.log"
	Output string `json:"output" yaml:"output"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`

	// FlushInterval is how often buffered records are flushed.
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// DefaultConfig returns a default audit logger configuration.
func DefaultConfig() Config {
	return Config{
		Format:        "json",
		Output:        "stdout",
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// Logger is a Sink that writes structured audit records through slog with
// async buffered writes. A full buffer drops the record rather than blocking
// the decision path; drops are reported through the diagnostic logger.
type Logger struct {
	config  Config
	output  io.WriteCloser
	slogger *slog.Logger
	diag    *slog.Logger
	buffer  chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	closed  sync.Once

	// Failures, when set, is incremented once per dropped record.
	Failures prometheus.Counter
}

// NewLogger creates a new audit logger with the given configuration.
// diag receives diagnostics about the logger itself (drops, write errors);
// pass nil for slog.Default().
func NewLogger(config Config, diag *slog.Logger) (*Logger, error) {
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if diag == nil {
		diag = slog.Default()
	}

	var output io.WriteCloser
	switch {
	case config.Output == "stdout" || config.Output == "":
		output = os.Stdout
	case config.Output == "stderr":
		output = os.Stderr
	case strings.HasPrefix(config.Output, "file:"):
		path := strings.TrimPrefix(config.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		output = f
	default:
		return nil, fmt.Errorf("unsupported audit output: %s", config.Output)
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(output, nil)
	} else {
		handler = slog.NewJSONHandler(output, nil)
	}

	l := &Logger{
		config:  config,
		output:  output,
		slogger: slog.New(handler),
		diag:    diag,
		buffer:  make(chan Record, config.BufferSize),
		done:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.processLoop()

	return l, nil
}

// Append queues the record for writing. Never blocks and never errors; if
// the buffer is full the record is dropped with a diagnostic.
func (l *Logger) Append(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	select {
	case l.buffer <- rec:
	default:
		l.diag.Warn("audit buffer full, dropping record",
			"type", string(rec.Type),
			"tool_call_id", rec.ToolCallID)
		if l.Failures != nil {
			l.Failures.Inc()
		}
	}
}

// Close flushes buffered records and releases the output.
func (l *Logger) Close() error {
	l.closed.Do(func() {
		close(l.done)
	})
	l.wg.Wait()

	if l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

// processLoop drains the buffer until Close.
func (l *Logger) processLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-l.buffer:
			l.write(rec)
		case <-ticker.C:
			l.drain()
		case <-l.done:
			l.drain()
			return
		}
	}
}

// drain writes everything currently buffered without blocking.
func (l *Logger) drain() {
	for {
		select {
		case rec := <-l.buffer:
			l.write(rec)
		default:
			return
		}
	}
}

// write emits one record through slog.
func (l *Logger) write(rec Record) {
	attrs := make([]any, 0, 22)
	attrs = append(attrs,
		"id", rec.ID,
		"type", string(rec.Type),
		"timestamp", rec.Timestamp.Format(time.RFC3339Nano),
		"detail", rec.Detail,
		"was_allowed", rec.WasAllowed,
	)
	if rec.RiskLevel != "" {
		attrs = append(attrs, "risk_level", string(rec.RiskLevel))
	}
	if rec.ToolName != "" {
		attrs = append(attrs, "tool_name", rec.ToolName)
	}
	if rec.ToolCallID != "" {
		attrs = append(attrs, "tool_call_id", rec.ToolCallID)
	}
	if rec.Command != "" {
		attrs = append(attrs, "command", rec.Command)
	}
	if rec.SessionKey != "" {
		attrs = append(attrs, "session_key", rec.SessionKey)
	}
	if rec.AgentID != "" {
		attrs = append(attrs, "agent_id", rec.AgentID)
	}
	if rec.Rule != "" {
		attrs = append(attrs, "rule", rec.Rule)
	}
	if rec.MatchedPattern != "" {
		attrs = append(attrs, "matched_pattern", rec.MatchedPattern)
	}

	l.slogger.Info("audit", attrs...)
}
