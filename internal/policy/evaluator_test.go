package policy

import "testing"

func TestEvaluateUnrestricted(t *testing.T) {
	d := Evaluate("exec", Default())
	if !d.Allowed || d.RequiresApproval {
		t.Fatalf("unrestricted policy should allow without approval, got %+v", d)
	}
}

func TestEvaluateNilPolicy(t *testing.T) {
	d := Evaluate("exec", nil)
	if !d.Allowed || d.RequiresApproval {
		t.Fatalf("nil policy should behave as unrestricted, got %+v", d)
	}
}

func TestEvaluateAllowlist(t *testing.T) {
	p := &ToolPolicy{
		Mode:    ModeAllowlist,
		Allowed: []string{"read_file", "web_search"},
	}

	if d := Evaluate("read_file", p); !d.Allowed || d.RequiresApproval {
		t.Fatalf("listed tool should be allowed without approval, got %+v", d)
	}
	if d := Evaluate("exec", p); d.Allowed {
		t.Fatalf("unlisted tool should be denied, got %+v", d)
	}
}

func TestEvaluateAllowlistUnlistedApproval(t *testing.T) {
	p := &ToolPolicy{
		Mode:                       ModeAllowlist,
		Allowed:                    []string{"read_file"},
		RequireApprovalForUnlisted: true,
	}

	d := Evaluate("exec", p)
	if !d.Allowed || !d.RequiresApproval {
		t.Fatalf("unlisted tool should be allowed with approval, got %+v", d)
	}
}

func TestEvaluateDenylist(t *testing.T) {
	p := &ToolPolicy{
		Mode:   ModeDenylist,
		Denied: []string{"exec"},
	}

	if d := Evaluate("exec", p); d.Allowed {
		t.Fatalf("denylisted tool should be denied, got %+v", d)
	}
	if d := Evaluate("read_file", p); !d.Allowed || d.RequiresApproval {
		t.Fatalf("other tools should be allowed, got %+v", d)
	}
}

func TestEvaluateAlwaysRequireApprovalDominates(t *testing.T) {
	cases := []*ToolPolicy{
		{Mode: ModeUnrestricted, AlwaysRequireApproval: []string{"transfer_funds"}},
		{Mode: ModeAllowlist, Allowed: []string{"transfer_funds"}, AlwaysRequireApproval: []string{"transfer_funds"}},
		{Mode: ModeDenylist, Denied: []string{"transfer_funds"}, AlwaysRequireApproval: []string{"transfer_funds"}},
	}

	for i, p := range cases {
		d := Evaluate("transfer_funds", p)
		if !d.Allowed || !d.RequiresApproval {
			t.Errorf("case %d: always-require-approval must dominate, got %+v", i, d)
		}
	}
}

func TestEvaluateNormalizesAliases(t *testing.T) {
	p := &ToolPolicy{Mode: ModeDenylist, Denied: []string{"exec"}}
	if d := Evaluate("Bash", p); d.Allowed {
		t.Fatalf("alias should resolve to denied tool, got %+v", d)
	}
}

func TestFilterByPolicy(t *testing.T) {
	p := &ToolPolicy{Mode: ModeAllowlist, Allowed: []string{"read_file", "web_search"}}
	got := FilterByPolicy([]string{"read_file", "exec", "web_search", "send_message"}, p)
	want := []string{"read_file", "web_search"}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIsOverCallLimit(t *testing.T) {
	unlimited := &ToolPolicy{Mode: ModeUnrestricted}
	if IsOverCallLimit(1000, unlimited) {
		t.Fatal("zero cap means unlimited")
	}

	capped := &ToolPolicy{Mode: ModeUnrestricted, MaxToolCallsPerTurn: 5}
	if IsOverCallLimit(5, capped) {
		t.Fatal("at the cap is not over it")
	}
	if !IsOverCallLimit(6, capped) {
		t.Fatal("above the cap should report over limit")
	}
}

func TestExpandGroups(t *testing.T) {
	got := ExpandGroups([]string{"group:fs", "exec", "read_file"})

	// read_file comes from group:fs and must not repeat.
	seen := make(map[string]int)
	for _, name := range got {
		seen[name]++
	}
	if seen["read_file"] != 1 {
		t.Fatalf("expected read_file exactly once, got %v", got)
	}
	if seen["exec"] != 1 {
		t.Fatalf("expected exec, got %v", got)
	}
}
