package sqlite

import (
	"context"
	"testing"

	"github.com/doldecomp/agentcoord/internal/types"
)

func TestUpsertBranchProgressConflictUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	p := &types.BranchProgress{FunctionName: "func_a", Branch: "main", MatchPercent: 40, AgentID: "agent-1"}
	if err := store.UpsertBranchProgress(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	p.MatchPercent = 90
	if err := store.UpsertBranchProgress(ctx, p); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	all, err := store.GetAllBranchProgress(ctx, "func_a")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 || all[0].MatchPercent != 90 {
		t.Fatalf("expected a single updated row, got %+v", all)
	}
}

func TestGetBestBranchProgressPrefersCommittedOnTie(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entries := []*types.BranchProgress{
		{FunctionName: "func_a", Branch: "feature-1", MatchPercent: 90, IsCommitted: false},
		{FunctionName: "func_a", Branch: "feature-2", MatchPercent: 90, IsCommitted: true},
		{FunctionName: "func_a", Branch: "feature-3", MatchPercent: 60, IsCommitted: false},
	}
	for _, e := range entries {
		if err := store.UpsertBranchProgress(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.Branch, err)
		}
	}

	best, err := store.GetBestBranchProgress(ctx, "func_a")
	if err != nil {
		t.Fatalf("get best: %v", err)
	}
	if best == nil || best.Branch != "feature-2" {
		t.Fatalf("expected feature-2 (committed tie-break), got %+v", best)
	}
}

func TestGetBestBranchProgressNoEntries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	best, err := store.GetBestBranchProgress(ctx, "func_never_seen")
	if err != nil {
		t.Fatalf("get best: %v", err)
	}
	if best != nil {
		t.Fatalf("expected nil, got %+v", best)
	}
}

func TestGetAllBranchProgressOrderedByMatchPercent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entries := []*types.BranchProgress{
		{FunctionName: "func_a", Branch: "low", MatchPercent: 10},
		{FunctionName: "func_a", Branch: "high", MatchPercent: 95},
		{FunctionName: "func_a", Branch: "mid", MatchPercent: 50},
	}
	for _, e := range entries {
		if err := store.UpsertBranchProgress(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.Branch, err)
		}
	}

	all, err := store.GetAllBranchProgress(ctx, "func_a")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 3 || all[0].Branch != "high" || all[1].Branch != "mid" || all[2].Branch != "low" {
		t.Fatalf("expected descending match percent order, got %+v", all)
	}
}
