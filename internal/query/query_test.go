package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/doldecomp/agentcoord/internal/storage/sqlite"
	"github.com/doldecomp/agentcoord/internal/types"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "query-test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProgressSnapshot(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	eng := New(store)

	fns := []*types.Function{
		{Name: "fn_a", WorktreePath: "wt1", MatchPercent: 100, Status: types.StatusCommitted},
		{Name: "fn_b", WorktreePath: "wt1", MatchPercent: 100, Status: types.StatusMerged},
		{Name: "fn_c", WorktreePath: "wt1", MatchPercent: 40, Status: types.StatusInProgress},
	}
	for _, fn := range fns {
		if err := store.UpsertFunction(ctx, fn); err != nil {
			t.Fatalf("upsert function %s: %v", fn.Name, err)
		}
	}

	snap, err := eng.ProgressSnapshot(ctx, "wt1")
	if err != nil {
		t.Fatalf("progress snapshot: %v", err)
	}
	if snap.TotalFunctions != 3 {
		t.Errorf("total functions = %d, want 3", snap.TotalFunctions)
	}
	if snap.Matched != 2 {
		t.Errorf("matched = %d, want 2", snap.Matched)
	}
	if snap.Committed != 2 {
		t.Errorf("committed = %d, want 2", snap.Committed)
	}
	if snap.Merged != 1 {
		t.Errorf("merged = %d, want 1", snap.Merged)
	}
	wantAvg := (100.0 + 100.0 + 40.0) / 3.0
	if snap.AverageMatchPct != wantAvg {
		t.Errorf("average match pct = %v, want %v", snap.AverageMatchPct, wantAvg)
	}
}

func TestStaleScratches(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	eng := New(store)
	eng.StaleWindow = time.Hour

	fresh := time.Now().UTC().Add(-10 * time.Minute)
	old := time.Now().UTC().Add(-2 * time.Hour)

	if err := store.UpsertScratch(ctx, &types.Scratch{Slug: "fresh", VerifiedAt: &fresh}); err != nil {
		t.Fatalf("upsert fresh scratch: %v", err)
	}
	if err := store.UpsertScratch(ctx, &types.Scratch{Slug: "stale", VerifiedAt: &old}); err != nil {
		t.Fatalf("upsert stale scratch: %v", err)
	}
	if err := store.UpsertScratch(ctx, &types.Scratch{Slug: "never-verified", CreatedAt: old}); err != nil {
		t.Fatalf("upsert never-verified scratch: %v", err)
	}

	stale, err := eng.StaleScratches(ctx)
	if err != nil {
		t.Fatalf("stale scratches: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("got %d stale scratches, want 2", len(stale))
	}
	slugs := map[string]bool{}
	for _, s := range stale {
		slugs[s.Slug] = true
	}
	if !slugs["stale"] || !slugs["never-verified"] {
		t.Errorf("unexpected stale set: %+v", slugs)
	}
}

func TestBrokenBuildCounts(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	eng := New(store)

	funcs := []*types.Function{
		{Name: "a", WorktreePath: "wt1", BuildStatus: types.BuildBroken},
		{Name: "b", WorktreePath: "wt1", BuildStatus: types.BuildBroken},
		{Name: "c", WorktreePath: "wt1", BuildStatus: types.BuildPassing},
		{Name: "d", WorktreePath: "wt2", BuildStatus: types.BuildBroken},
	}
	for _, fn := range funcs {
		if err := store.UpsertFunction(ctx, fn); err != nil {
			t.Fatalf("upsert function %s: %v", fn.Name, err)
		}
	}

	counts, err := eng.BrokenBuildCounts(ctx)
	if err != nil {
		t.Fatalf("broken build counts: %v", err)
	}
	if counts["wt1"] != 2 {
		t.Errorf("wt1 broken count = %d, want 2", counts["wt1"])
	}
	if counts["wt2"] != 1 {
		t.Errorf("wt2 broken count = %d, want 1", counts["wt2"])
	}
}

func TestAgentSummaries(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	eng := New(store)

	if err := store.UpsertAgent(ctx, &types.Agent{AgentID: "agent1"}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}
	if _, err := store.AddClaim(ctx, "fn_a", "agent1", time.Hour); err != nil {
		t.Fatalf("add claim: %v", err)
	}
	now := time.Now()
	if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "sys", LockedByAgent: "agent1", LockedAt: now, LockExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("lock subdirectory: %v", err)
	}

	summaries, err := eng.AgentSummaries(ctx)
	if err != nil {
		t.Fatalf("agent summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	s := summaries[0]
	if s.ActiveClaims != 1 {
		t.Errorf("active claims = %d, want 1", s.ActiveClaims)
	}
	if len(s.SubdirectoriesHeld) != 1 || s.SubdirectoriesHeld[0] != "sys" {
		t.Errorf("subdirectories held = %+v, want [sys]", s.SubdirectoriesHeld)
	}
}

func TestAuditHistoryPagination(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	eng := New(store)

	for i := 0; i < 5; i++ {
		if err := store.LogAudit(ctx, &types.AuditEntry{
			EntityType: "function", EntityID: "fn_a", Action: types.ActionUpdated,
		}); err != nil {
			t.Fatalf("log audit: %v", err)
		}
	}

	page1, err := eng.AuditHistory(ctx, "function", "fn_a", 2, 0)
	if err != nil {
		t.Fatalf("audit history page 1: %v", err)
	}
	page2, err := eng.AuditHistory(ctx, "function", "fn_a", 2, 2)
	if err != nil {
		t.Fatalf("audit history page 2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("page lengths = %d, %d, want 2, 2", len(page1), len(page2))
	}
	if page1[0].ID == page2[0].ID {
		t.Errorf("pages overlap: %d == %d", page1[0].ID, page2[0].ID)
	}
}
