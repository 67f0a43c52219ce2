package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doldecomp/agentcoord/internal/storage"
	"github.com/doldecomp/agentcoord/internal/types"
)

func TestRunInTransactionCommits(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.UpsertFunction(ctx, &types.Function{Name: "func_a", Status: types.StatusUnclaimed, BuildStatus: types.BuildUnknown})
	})
	if err != nil {
		t.Fatalf("run in transaction: %v", err)
	}

	got, err := store.GetFunction(ctx, "func_a")
	if err != nil {
		t.Fatalf("get function: %v", err)
	}
	if got == nil {
		t.Fatal("expected committed function to be visible")
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sentinel := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		if upsertErr := tx.UpsertFunction(ctx, &types.Function{Name: "func_a", Status: types.StatusUnclaimed, BuildStatus: types.BuildUnknown}); upsertErr != nil {
			return upsertErr
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	got, err := store.GetFunction(ctx, "func_a")
	if err != nil {
		t.Fatalf("get function: %v", err)
	}
	if got != nil {
		t.Fatal("expected rolled-back write to not be visible")
	}
}

func TestRunInTransactionClaimArbitrationVisibleToOtherReaders(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		_, addErr := tx.AddClaim(ctx, "func_a", "agent-1", time.Hour)
		return addErr
	})
	if err != nil {
		t.Fatalf("run in transaction: %v", err)
	}

	active, err := store.GetActiveClaim(ctx, "func_a")
	if err != nil {
		t.Fatalf("get active claim: %v", err)
	}
	if active == nil || active.AgentID != "agent-1" {
		t.Fatalf("expected claim committed by transaction to be visible, got %+v", active)
	}
}
