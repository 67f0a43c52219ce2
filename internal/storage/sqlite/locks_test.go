package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/types"
)

func TestLockSubdirectory(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	lock := &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		WorktreePath:    "wt1",
		BranchName:      "agent-1-work",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   time.Now().UTC().Add(30 * time.Minute),
	}
	got, err := store.LockSubdirectory(ctx, lock)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got.LockedAt.IsZero() {
		t.Fatal("expected LockedAt to be stamped")
	}

	fetched, err := store.GetLock(ctx, "src/game")
	if err != nil {
		t.Fatalf("get lock: %v", err)
	}
	if fetched == nil || fetched.LockedByAgent != "agent-1" {
		t.Fatalf("unexpected lock: %+v", fetched)
	}
}

func TestLockSubdirectoryOwnReentryExtends(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Now().UTC()
	lock := &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   base.Add(10 * time.Minute),
	}
	if _, err := store.LockSubdirectory(ctx, lock); err != nil {
		t.Fatalf("initial lock: %v", err)
	}

	// Same agent re-locking extends the expiry instead of failing.
	extended := &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   base.Add(time.Hour),
	}
	if _, err := store.LockSubdirectory(ctx, extended); err != nil {
		t.Fatalf("expected re-lock by owner to succeed, got %v", err)
	}

	fetched, err := store.GetLock(ctx, "src/game")
	if err != nil {
		t.Fatalf("get lock: %v", err)
	}
	if !fetched.LockExpiresAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected extended expiry, got %v", fetched.LockExpiresAt)
	}
}

func TestLockSubdirectoryBlockedByOtherAgent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   time.Now().UTC().Add(time.Hour),
	}); err != nil {
		t.Fatalf("initial lock: %v", err)
	}

	_, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-2",
		LockExpiresAt:   time.Now().UTC().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected second agent's lock attempt to fail")
	}
	ce, ok := err.(*errs.CoordError)
	if !ok || ce.Kind != errs.KindPrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestLockSubdirectoryAvailableAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   time.Now().UTC().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("initial (pre-expired) lock: %v", err)
	}

	_, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-2",
		LockExpiresAt:   time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("expected second agent to acquire expired lock, got %v", err)
	}
}

func TestUnlockSubdirectory(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   time.Now().UTC().Add(time.Hour),
	}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if err := store.UnlockSubdirectory(ctx, "src/game", "agent-1"); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	fetched, err := store.GetLock(ctx, "src/game")
	if err != nil {
		t.Fatalf("get lock: %v", err)
	}
	if fetched != nil {
		t.Fatalf("expected no lock after unlock, got %+v", fetched)
	}
}

func TestUnlockSubdirectoryOwnershipError(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/game",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   time.Now().UTC().Add(time.Hour),
	}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	err := store.UnlockSubdirectory(ctx, "src/game", "agent-2")
	if err == nil {
		t.Fatal("expected ownership error")
	}
	ce, ok := err.(*errs.CoordError)
	if !ok || ce.Kind != errs.KindOwnership {
		t.Fatalf("expected ownership error, got %v", err)
	}
}

func TestUnlockSubdirectoryNoneActive(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.UnlockSubdirectory(ctx, "src/never_locked", "agent-1")
	if err == nil {
		t.Fatal("expected precondition error")
	}
	ce, ok := err.(*errs.CoordError)
	if !ok || ce.Kind != errs.KindPrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestListLocks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, key := range []string{"src/b", "src/a", "src/c"} {
		if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
			SubdirectoryKey: key,
			LockedByAgent:   "agent-1",
			LockExpiresAt:   time.Now().UTC().Add(time.Hour),
		}); err != nil {
			t.Fatalf("lock %s: %v", key, err)
		}
	}

	locks, err := store.ListLocks(ctx)
	if err != nil {
		t.Fatalf("list locks: %v", err)
	}
	if len(locks) != 3 {
		t.Fatalf("expected 3 locks, got %d", len(locks))
	}
	if locks[0].SubdirectoryKey != "src/a" || locks[1].SubdirectoryKey != "src/b" || locks[2].SubdirectoryKey != "src/c" {
		t.Fatalf("expected locks ordered by key, got %+v", locks)
	}
}

func TestExpireLocks(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/expired",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   time.Now().UTC().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("expired lock: %v", err)
	}
	if _, err := store.LockSubdirectory(ctx, &types.SubdirectoryLock{
		SubdirectoryKey: "src/live",
		LockedByAgent:   "agent-1",
		LockExpiresAt:   time.Now().UTC().Add(time.Hour),
	}); err != nil {
		t.Fatalf("live lock: %v", err)
	}

	n, err := store.ExpireLocks(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("expire locks: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 lock expired, got %d", n)
	}

	locks, err := store.ListLocks(ctx)
	if err != nil {
		t.Fatalf("list locks: %v", err)
	}
	if len(locks) != 1 || locks[0].SubdirectoryKey != "src/live" {
		t.Fatalf("expected only src/live to remain, got %+v", locks)
	}
}
