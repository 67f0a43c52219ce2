package agentid

import "testing"

func TestIsClaudeProcess(t *testing.T) {
	cases := []struct {
		comm string
		want bool
	}{
		{"claude", true},
		{"claude-cli", true},
		{"bash", false},
		{"node", false},
	}
	for _, c := range cases {
		if got := IsClaudeProcess(c.comm); got != c.want {
			t.Errorf("IsClaudeProcess(%q) = %v, want %v", c.comm, got, c.want)
		}
	}
}

func TestDeriveFallsBackWithoutMatchingAncestor(t *testing.T) {
	id := Derive(func(comm string) bool { return false })
	if id == "" {
		t.Fatal("expected a non-empty fallback identity")
	}
	if id[:6] != "agent-" {
		t.Fatalf("expected agent-<pid> format, got %q", id)
	}
}
