package policy

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore persists tool policies as JSON documents keyed by agent id.
type SQLiteStore struct {
	db *sql.DB
}

const policySchema = `
CREATE TABLE IF NOT EXISTS tool_policies (
	agent_id TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`

// NewSQLiteStore opens (or creates) the policy table at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy database: %w", err)
	}
	if _, err := db.Exec(policySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create policy schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the agent's policy, or the default on miss.
func (s *SQLiteStore) Get(agentID string) (*ToolPolicy, error) {
	var doc string
	err := s.db.QueryRow(
		`SELECT document FROM tool_policies WHERE agent_id = ?`, agentID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy for %q: %w", agentID, err)
	}

	var p ToolPolicy
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("corrupt policy document for %q: %w", agentID, err)
	}
	p.Normalize()
	return &p, nil
}

// Set upserts a normalized copy of p for the agent.
func (s *SQLiteStore) Set(agentID string, p *ToolPolicy) error {
	clone := p.Clone()
	if clone == nil {
		clone = Default()
	}
	clone.Normalize()

	doc, err := json.Marshal(clone)
	if err != nil {
		return fmt.Errorf("failed to encode policy for %q: %w", agentID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO tool_policies (agent_id, document) VALUES (?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			document = excluded.document,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		agentID, string(doc))
	if err != nil {
		return fmt.Errorf("failed to store policy for %q: %w", agentID, err)
	}
	return nil
}

// Remove drops the agent's stored policy.
func (s *SQLiteStore) Remove(agentID string) error {
	if _, err := s.db.Exec(`DELETE FROM tool_policies WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("failed to remove policy for %q: %w", agentID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
