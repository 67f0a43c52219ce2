package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
)

func TestAddClaimSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	claim, err := store.AddClaim(ctx, "func_a", "agent-1", time.Hour)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if claim.AgentID != "agent-1" {
		t.Fatalf("expected agent-1, got %s", claim.AgentID)
	}

	// A second agent is blocked.
	if _, err := store.AddClaim(ctx, "func_a", "agent-2", time.Hour); err == nil {
		t.Fatal("expected second agent's claim to fail")
	} else if ce, ok := err.(*errs.CoordError); !ok || ce.Kind != errs.KindPrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}

	// Re-claiming by the SAME agent is also blocked — not idempotent.
	if _, err := store.AddClaim(ctx, "func_a", "agent-1", time.Hour); err == nil {
		t.Fatal("expected re-claim by the same agent to fail")
	}
}

func TestAddClaimAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.AddClaim(ctx, "func_a", "agent-1", -time.Minute); err != nil {
		t.Fatalf("expired claim: %v", err)
	}

	// A claim that has already expired no longer blocks a new claimant.
	claim, err := store.AddClaim(ctx, "func_a", "agent-2", time.Hour)
	if err != nil {
		t.Fatalf("claim after expiry: %v", err)
	}
	if claim.AgentID != "agent-2" {
		t.Fatalf("expected agent-2, got %s", claim.AgentID)
	}
}

func TestReleaseClaim(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.AddClaim(ctx, "func_a", "agent-1", time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := store.ReleaseClaim(ctx, "func_a", "agent-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	active, err := store.GetActiveClaim(ctx, "func_a")
	if err != nil {
		t.Fatalf("get active claim: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active claim after release, got %+v", active)
	}
}

func TestReleaseClaimOwnershipError(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.AddClaim(ctx, "func_a", "agent-1", time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}

	err := store.ReleaseClaim(ctx, "func_a", "agent-2")
	if err == nil {
		t.Fatal("expected ownership error releasing someone else's claim")
	}
	ce, ok := err.(*errs.CoordError)
	if !ok || ce.Kind != errs.KindOwnership {
		t.Fatalf("expected ownership error, got %v", err)
	}
}

func TestReleaseClaimNoneActive(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.ReleaseClaim(ctx, "func_never_claimed", "agent-1")
	if err == nil {
		t.Fatal("expected precondition error releasing a never-claimed function")
	}
	ce, ok := err.(*errs.CoordError)
	if !ok || ce.Kind != errs.KindPrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestGetActiveClaims(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.AddClaim(ctx, "func_a", "agent-1", time.Hour); err != nil {
		t.Fatalf("claim a: %v", err)
	}
	if _, err := store.AddClaim(ctx, "func_b", "agent-1", time.Hour); err != nil {
		t.Fatalf("claim b: %v", err)
	}
	if _, err := store.AddClaim(ctx, "func_c", "agent-2", time.Hour); err != nil {
		t.Fatalf("claim c: %v", err)
	}

	claims, err := store.GetActiveClaims(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get active claims: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims for agent-1, got %d", len(claims))
	}
}

func TestExpireClaims(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.AddClaim(ctx, "func_a", "agent-1", -time.Minute); err != nil {
		t.Fatalf("expired claim: %v", err)
	}
	if _, err := store.AddClaim(ctx, "func_b", "agent-1", time.Hour); err != nil {
		t.Fatalf("live claim: %v", err)
	}

	n, err := store.ExpireClaims(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("expire claims: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired claim removed, got %d", n)
	}

	claims, err := store.GetActiveClaims(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get active claims: %v", err)
	}
	if len(claims) != 1 || claims[0].FunctionName != "func_b" {
		t.Fatalf("expected only func_b to remain, got %+v", claims)
	}
}
