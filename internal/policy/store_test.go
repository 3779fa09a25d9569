package policy

import (
	"path/filepath"
	"testing"
)

func TestMemoryStoreReadThroughDefault(t *testing.T) {
	s := NewMemoryStore()

	p, err := s.Get("new-agent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Mode != ModeUnrestricted {
		t.Fatalf("expected default unrestricted policy, got %q", p.Mode)
	}
}

func TestMemoryStoreSetGetRemove(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Set("agent-1", &ToolPolicy{Mode: ModeDenylist, Denied: []string{"exec"}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	p, err := s.Get("agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Mode != ModeDenylist || !contains(p.Denied, "exec") {
		t.Fatalf("unexpected policy %+v", p)
	}

	// Stored document must not alias the caller's slice.
	p.Denied[0] = "mutated"
	again, _ := s.Get("agent-1")
	if again.Denied[0] != "exec" {
		t.Fatal("store leaked internal state")
	}

	if err := s.Remove("agent-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	p, _ = s.Get("agent-1")
	if p.Mode != ModeUnrestricted {
		t.Fatal("removed agent should see the default policy again")
	}
}

func TestMemoryStoreNormalizesOnSet(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Set("agent-1", &ToolPolicy{Mode: "DENYLIST", Denied: []string{"Bash", "group:finance"}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	p, _ := s.Get("agent-1")
	if p.Mode != ModeDenylist {
		t.Fatalf("expected normalized mode, got %q", p.Mode)
	}
	if !contains(p.Denied, "exec") {
		t.Fatalf("expected alias resolution, got %v", p.Denied)
	}
	if !contains(p.Denied, "transfer_funds") {
		t.Fatalf("expected group expansion, got %v", p.Denied)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "policies.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	p, err := s.Get("missing")
	if err != nil {
		t.Fatalf("get miss: %v", err)
	}
	if p.Mode != ModeUnrestricted {
		t.Fatalf("expected default on miss, got %q", p.Mode)
	}

	want := &ToolPolicy{
		Mode:                  ModeAllowlist,
		Allowed:               []string{"read_file"},
		AlwaysRequireApproval: []string{"transfer_funds"},
		MaxToolCallsPerTurn:   10,
	}
	if err := s.Set("agent-1", want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get("agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Mode != ModeAllowlist || got.MaxToolCallsPerTurn != 10 {
		t.Fatalf("unexpected policy %+v", got)
	}
	if !contains(got.Allowed, "read_file") || !contains(got.AlwaysRequireApproval, "transfer_funds") {
		t.Fatalf("lists did not survive round trip: %+v", got)
	}

	// Upsert replaces the document.
	if err := s.Set("agent-1", &ToolPolicy{Mode: ModeDenylist, Denied: []string{"exec"}}); err != nil {
		t.Fatalf("set again: %v", err)
	}
	got, _ = s.Get("agent-1")
	if got.Mode != ModeDenylist {
		t.Fatalf("expected updated mode, got %q", got.Mode)
	}

	if err := s.Remove("agent-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ = s.Get("agent-1")
	if got.Mode != ModeUnrestricted {
		t.Fatal("expected default after remove")
	}
}
