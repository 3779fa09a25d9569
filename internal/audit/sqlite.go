package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/haasonsaas/warden/pkg/models"
)

// SQLiteSink persists audit records to an append-only SQLite table. Write
// failures are logged and swallowed: the verdict has already been computed
// and must not depend on audit durability.
type SQLiteSink struct {
	db   *sql.DB
	diag *slog.Logger

	// Failures, when set, is incremented once per swallowed write failure.
	Failures prometheus.Counter
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id              TEXT PRIMARY KEY,
	timestamp       TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	risk_level      TEXT NOT NULL DEFAULT '',
	tool_name       TEXT NOT NULL DEFAULT '',
	tool_call_id    TEXT NOT NULL DEFAULT '',
	command         TEXT NOT NULL DEFAULT '',
	detail          TEXT NOT NULL DEFAULT '',
	session_key     TEXT NOT NULL DEFAULT '',
	agent_id        TEXT NOT NULL DEFAULT '',
	rule            TEXT NOT NULL DEFAULT '',
	was_allowed     INTEGER NOT NULL DEFAULT 0,
	matched_pattern TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_tool_call ON audit_log(tool_call_id);
`

// NewSQLiteSink opens (or creates) the audit table at path. diag receives
// write-failure diagnostics; pass nil for slog.Default().
func NewSQLiteSink(path string, diag *slog.Logger) (*SQLiteSink, error) {
	if diag == nil {
		diag = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	return &SQLiteSink{db: db, diag: diag}, nil
}

// Append inserts the record. Errors are logged, never returned.
func (s *SQLiteSink) Append(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	allowed := 0
	if rec.WasAllowed {
		allowed = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_log
			(id, timestamp, event_type, risk_level, tool_name, tool_call_id,
			 command, detail, session_key, agent_id, rule, was_allowed, matched_pattern)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.Format(time.RFC3339Nano),
		string(rec.Type),
		string(rec.RiskLevel),
		rec.ToolName,
		rec.ToolCallID,
		rec.Command,
		rec.Detail,
		rec.SessionKey,
		rec.AgentID,
		rec.Rule,
		allowed,
		rec.MatchedPattern,
	)
	if err != nil {
		s.diag.Warn("audit write failed", "error", err, "tool_call_id", rec.ToolCallID)
		if s.Failures != nil {
			s.Failures.Inc()
		}
	}
}

// Tail returns the most recent n records, newest first.
func (s *SQLiteSink) Tail(n int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, event_type, risk_level, tool_name, tool_call_id,
		       command, detail, session_key, agent_id, rule, was_allowed, matched_pattern
		FROM audit_log ORDER BY timestamp DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ts, eventType, riskLevel string
		var allowed int
		if err := rows.Scan(&rec.ID, &ts, &eventType, &riskLevel, &rec.ToolName,
			&rec.ToolCallID, &rec.Command, &rec.Detail, &rec.SessionKey,
			&rec.AgentID, &rec.Rule, &allowed, &rec.MatchedPattern); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		rec.Type = EventType(eventType)
		rec.RiskLevel = models.Severity(riskLevel)
		rec.WasAllowed = allowed != 0
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
