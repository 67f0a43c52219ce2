package gitutil

import "testing"

func TestWorktreeDirREExtractsKey(t *testing.T) {
	cases := map[string]string{
		"/home/agent/decomp-worktrees/alice":       "alice",
		"/home/agent/decomp-worktrees/bob/src/main": "bob",
	}
	for path, want := range cases {
		m := worktreeDirRE.FindStringSubmatch(path)
		if m == nil {
			t.Fatalf("expected match for %q", path)
		}
		if m[1] != want {
			t.Errorf("path %q: got key %q, want %q", path, m[1], want)
		}
	}
}

func TestWorktreeDirRENoMatchOutsideWorktree(t *testing.T) {
	if m := worktreeDirRE.FindStringSubmatch("/home/agent/decomp"); m != nil {
		t.Fatalf("expected no match, got %v", m)
	}
}
