package sqlite

import (
	"context"
	"testing"

	"github.com/doldecomp/agentcoord/internal/types"
)

func TestUpsertAndGetAgent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	agent := &types.Agent{AgentID: "agent-1", WorktreePath: "wt1", BranchName: "main"}
	if err := store.UpsertAgent(ctx, agent); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if agent.LastSeenAt.IsZero() {
		t.Fatal("expected LastSeenAt to be stamped")
	}

	got, err := store.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.WorktreePath != "wt1" {
		t.Fatalf("unexpected agent: %+v", got)
	}
}

func TestUpsertAgentHeartbeatUpdatesWorktree(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertAgent(ctx, &types.Agent{AgentID: "agent-1", WorktreePath: "wt1"}); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}
	if err := store.UpsertAgent(ctx, &types.Agent{AgentID: "agent-1", WorktreePath: "wt2"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WorktreePath != "wt2" {
		t.Fatalf("expected worktree updated to wt2, got %+v", got)
	}
}

func TestGetAgentMissing(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.GetAgent(ctx, "ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestListAgentsOrderedByLastSeen(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertAgent(ctx, &types.Agent{AgentID: "agent-1"}); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := store.UpsertAgent(ctx, &types.Agent{AgentID: "agent-2"}); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	list, err := store.ListAgents(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(list))
	}
}
