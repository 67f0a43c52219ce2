package sqlite

import (
	"context"
	"testing"

	"github.com/doldecomp/agentcoord/internal/types"
)

func TestUpsertAndGetFunction(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	fn := &types.Function{
		Name:         "func_80012345",
		SourceFile:   "src/game/actor.c",
		WorktreePath: "wt1",
		MatchPercent: 42.5,
		Status:       types.StatusInProgress,
		BuildStatus:  types.BuildUnknown,
	}
	if err := store.UpsertFunction(ctx, fn); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if fn.CreatedAt.IsZero() || fn.UpdatedAt.IsZero() {
		t.Fatal("expected CreatedAt/UpdatedAt to be stamped")
	}

	got, err := store.GetFunction(ctx, "func_80012345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected function, got nil")
	}
	if got.MatchPercent != 42.5 || got.Status != types.StatusInProgress {
		t.Fatalf("unexpected function: %+v", got)
	}

	// Re-upsert updates in place rather than duplicating.
	fn.MatchPercent = 100
	fn.Status = types.StatusMatched
	if err := store.UpsertFunction(ctx, fn); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err = store.GetFunction(ctx, "func_80012345")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.MatchPercent != 100 || got.Status != types.StatusMatched {
		t.Fatalf("expected updated function, got %+v", got)
	}
}

func TestGetFunctionMissing(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.GetFunction(ctx, "does_not_exist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing function, got %+v", got)
	}
}

func TestDeleteFunction(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	fn := &types.Function{Name: "func_a", Status: types.StatusUnclaimed, BuildStatus: types.BuildUnknown}
	if err := store.UpsertFunction(ctx, fn); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.DeleteFunction(ctx, "func_a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.GetFunction(ctx, "func_a")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil after delete")
	}
}

func TestGetFunctionsByStatusFilterAndSort(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	fns := []*types.Function{
		{Name: "func_c", WorktreePath: "wt1", MatchPercent: 10, Status: types.StatusInProgress, BuildStatus: types.BuildUnknown},
		{Name: "func_a", WorktreePath: "wt1", MatchPercent: 90, Status: types.StatusInProgress, BuildStatus: types.BuildUnknown},
		{Name: "func_b", WorktreePath: "wt2", MatchPercent: 50, Status: types.StatusInProgress, BuildStatus: types.BuildUnknown},
		{Name: "func_d", WorktreePath: "wt1", MatchPercent: 100, Status: types.StatusCommitted, BuildStatus: types.BuildPassing},
	}
	for _, fn := range fns {
		if err := store.UpsertFunction(ctx, fn); err != nil {
			t.Fatalf("upsert %s: %v", fn.Name, err)
		}
	}

	results, err := store.GetFunctionsByStatus(ctx, types.FunctionFilter{
		Status:       types.StatusInProgress,
		WorktreePath: "wt1",
		SortBy:       "match_percent",
		Descending:   true,
	})
	if err != nil {
		t.Fatalf("get by status: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].Name != "func_a" || results[1].Name != "func_c" {
		t.Fatalf("expected [func_a, func_c] descending by match_percent, got [%s, %s]", results[0].Name, results[1].Name)
	}
}

func TestGetFunctionsByStatusLimit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		fn := &types.Function{Name: "func_" + string(rune('a'+i)), Status: types.StatusUnclaimed, BuildStatus: types.BuildUnknown}
		if err := store.UpsertFunction(ctx, fn); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	results, err := store.GetFunctionsByStatus(ctx, types.FunctionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("get by status: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(results))
	}
}

func TestGetUncommittedMatches(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	fns := []*types.Function{
		{Name: "matched_uncommitted", WorktreePath: "wt1", MatchPercent: 100, IsCommitted: false, Status: types.StatusMatched, BuildStatus: types.BuildPassing},
		{Name: "matched_committed", WorktreePath: "wt1", MatchPercent: 100, IsCommitted: true, Status: types.StatusCommitted, BuildStatus: types.BuildPassing},
		{Name: "partial", WorktreePath: "wt1", MatchPercent: 60, IsCommitted: false, Status: types.StatusInProgress, BuildStatus: types.BuildUnknown},
		{Name: "other_worktree", WorktreePath: "wt2", MatchPercent: 100, IsCommitted: false, Status: types.StatusMatched, BuildStatus: types.BuildPassing},
	}
	for _, fn := range fns {
		if err := store.UpsertFunction(ctx, fn); err != nil {
			t.Fatalf("upsert %s: %v", fn.Name, err)
		}
	}

	all, err := store.GetUncommittedMatches(ctx, "")
	if err != nil {
		t.Fatalf("get uncommitted matches: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 uncommitted matches across worktrees, got %d: %+v", len(all), all)
	}

	scoped, err := store.GetUncommittedMatches(ctx, "wt1")
	if err != nil {
		t.Fatalf("get uncommitted matches scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Name != "matched_uncommitted" {
		t.Fatalf("expected [matched_uncommitted] for wt1, got %+v", scoped)
	}
}
