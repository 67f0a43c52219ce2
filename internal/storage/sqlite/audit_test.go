package sqlite

import (
	"context"
	"testing"

	"github.com/doldecomp/agentcoord/internal/types"
)

func TestLogAndGetHistory(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entries := []*types.AuditEntry{
		{EntityType: "function", EntityID: "func_a", Action: types.ActionCreated, AgentID: "agent-1"},
		{EntityType: "function", EntityID: "func_a", Action: types.ActionUpdated, AgentID: "agent-1"},
		{EntityType: "lock", EntityID: "src/game", Action: types.ActionLocked, AgentID: "agent-2"},
	}
	for _, e := range entries {
		if err := store.LogAudit(ctx, e); err != nil {
			t.Fatalf("log audit: %v", err)
		}
	}

	all, err := store.GetHistory(ctx, "", "", 0, 0)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	// Most recent first.
	if all[0].Action != types.ActionLocked {
		t.Fatalf("expected most recent entry first, got %+v", all[0])
	}

	scoped, err := store.GetHistory(ctx, "function", "func_a", 0, 0)
	if err != nil {
		t.Fatalf("get scoped history: %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("expected 2 entries for func_a, got %d", len(scoped))
	}
}

func TestGetHistoryPagination(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		if err := store.LogAudit(ctx, &types.AuditEntry{
			EntityType: "function", EntityID: "func_a", Action: types.ActionUpdated,
		}); err != nil {
			t.Fatalf("log audit %d: %v", i, err)
		}
	}

	page1, err := store.GetHistory(ctx, "", "", 2, 0)
	if err != nil {
		t.Fatalf("get page 1: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 entries in page 1, got %d", len(page1))
	}

	page2, err := store.GetHistory(ctx, "", "", 2, 2)
	if err != nil {
		t.Fatalf("get page 2: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected 2 entries in page 2, got %d", len(page2))
	}
	if page1[0].ID == page2[0].ID {
		t.Fatal("expected distinct entries across pages")
	}

	remainder, err := store.GetHistory(ctx, "", "", 0, 4)
	if err != nil {
		t.Fatalf("get remainder: %v", err)
	}
	if len(remainder) != 1 {
		t.Fatalf("expected 1 remaining entry past offset 4, got %d", len(remainder))
	}
}
