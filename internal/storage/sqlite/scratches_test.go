package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

func TestUpsertAndGetScratch(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sc := &types.Scratch{
		Slug:         "abc123",
		Instance:     types.InstanceLocal,
		BaseURL:      "http://localhost:8080",
		FunctionName: "func_a",
		Score:        500,
		MaxScore:     1000,
		MatchPercent: 50.0,
	}
	if err := store.UpsertScratch(ctx, sc); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetScratch(ctx, "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.MatchPercent != 50.0 || got.Instance != types.InstanceLocal {
		t.Fatalf("unexpected scratch: %+v", got)
	}

	sc.MatchPercent = 100
	sc.Score = 1000
	if err := store.UpsertScratch(ctx, sc); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err = store.GetScratch(ctx, "abc123")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.MatchPercent != 100 {
		t.Fatalf("expected updated match percent, got %+v", got)
	}
}

func TestGetScratchMissing(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	got, err := store.GetScratch(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestListScratchesOrderedNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Now().UTC()
	older := &types.Scratch{Slug: "old", FunctionName: "func_a", CreatedAt: base.Add(-time.Hour)}
	newer := &types.Scratch{Slug: "new", FunctionName: "func_a", CreatedAt: base}
	if err := store.UpsertScratch(ctx, older); err != nil {
		t.Fatalf("upsert older: %v", err)
	}
	if err := store.UpsertScratch(ctx, newer); err != nil {
		t.Fatalf("upsert newer: %v", err)
	}

	list, err := store.ListScratches(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Slug != "new" || list[1].Slug != "old" {
		t.Fatalf("expected [new, old], got %+v", list)
	}
}

func TestRecordMatchScoreDeduplicatesIdenticalObservations(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.UpsertScratch(ctx, &types.Scratch{Slug: "s1", FunctionName: "func_a"}); err != nil {
		t.Fatalf("upsert scratch: %v", err)
	}

	entry := &types.MatchHistoryEntry{ScratchSlug: "s1", Score: 500, MaxScore: 1000, MatchPercent: 50}
	inserted, err := store.RecordMatchScore(ctx, entry)
	if err != nil {
		t.Fatalf("record first: %v", err)
	}
	if !inserted {
		t.Fatal("expected first observation to be inserted")
	}

	dup := &types.MatchHistoryEntry{ScratchSlug: "s1", Score: 500, MaxScore: 1000, MatchPercent: 50}
	inserted, err = store.RecordMatchScore(ctx, dup)
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate observation to be suppressed")
	}

	changed := &types.MatchHistoryEntry{ScratchSlug: "s1", Score: 750, MaxScore: 1000, MatchPercent: 75}
	inserted, err = store.RecordMatchScore(ctx, changed)
	if err != nil {
		t.Fatalf("record changed: %v", err)
	}
	if !inserted {
		t.Fatal("expected changed observation to be inserted")
	}

	history, err := store.GetMatchHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows (duplicate suppressed), got %d: %+v", len(history), history)
	}
	if history[0].Score != 500 || history[1].Score != 750 {
		t.Fatalf("expected history ordered oldest first, got %+v", history)
	}
}
