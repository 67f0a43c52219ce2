package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/lifecycle"
	"github.com/doldecomp/agentcoord/internal/types"
)

// addClaim implements the single-winner claim protocol: an existing
// non-expired claim by ANY agent (including the caller) blocks the
// attempt — unlike subdirectory locks, re-claiming one's own function is
// not idempotent, since a second claim would silently extend a
// human-visible work assignment the agent may have already abandoned.
func addClaim(ctx context.Context, q querier, functionName, agentID string, ttl time.Duration) (*types.Claim, error) {
	now := time.Now().UTC()

	existing, err := activeClaimForFunction(ctx, q, functionName, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Precondition("function %s already claimed by %s until %s", functionName, existing.AgentID, existing.ExpiresAt.Format(time.RFC3339))
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM claims WHERE function_name = ?`, functionName); err != nil {
		return nil, fmt.Errorf("sqlite: clearing stale claims for %s: %w", functionName, err)
	}

	claim := &types.Claim{
		FunctionName: functionName,
		AgentID:      agentID,
		ClaimedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO claims (function_name, agent_id, claimed_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, claim.FunctionName, claim.AgentID, claim.ClaimedAt, claim.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: insert claim for %s: %w", functionName, err)
	}

	fn, err := getFunction(ctx, q, functionName)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading function %s for claim: %w", functionName, err)
	}
	if fn == nil {
		fn = &types.Function{Name: functionName, BuildStatus: types.BuildUnknown}
	}
	oldStatus := fn.Status
	claimedAt := claim.ClaimedAt
	fn.ClaimedByAgent = agentID
	fn.ClaimedAt = &claimedAt
	fn.Status = lifecycle.Derive(fn)
	if err := upsertFunction(ctx, q, fn); err != nil {
		return nil, fmt.Errorf("sqlite: updating function %s for claim: %w", functionName, err)
	}

	if err := logAudit(ctx, q, &types.AuditEntry{
		EntityType: "function",
		EntityID:   functionName,
		Action:     types.ActionCreated,
		OldValue:   string(oldStatus),
		NewValue:   string(fn.Status),
		AgentID:    agentID,
		Metadata:   "claim_add",
	}); err != nil {
		return nil, fmt.Errorf("sqlite: logging claim audit for %s: %w", functionName, err)
	}

	return claim, nil
}

// releaseClaim removes the caller's own claim. Releasing a claim held by a
// different agent is an ownership error, surfaced distinctly from "no
// claim exists" so the CLI can print the right hint.
func releaseClaim(ctx context.Context, q querier, functionName, agentID string) error {
	res, err := q.ExecContext(ctx, `
		DELETE FROM claims WHERE function_name = ? AND agent_id = ?
	`, functionName, agentID)
	if err != nil {
		return fmt.Errorf("sqlite: release claim for %s: %w", functionName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: release claim rows affected: %w", err)
	}
	if n == 0 {
		holder, err := activeClaimForFunction(ctx, q, functionName, time.Now().UTC())
		if err != nil {
			return err
		}
		if holder != nil {
			return errs.Ownership(nil, "function %s is claimed by %s, not %s", functionName, holder.AgentID, agentID)
		}
		return errs.Precondition("function %s has no active claim", functionName)
	}

	fn, err := getFunction(ctx, q, functionName)
	if err != nil {
		return fmt.Errorf("sqlite: loading function %s for release: %w", functionName, err)
	}
	if fn != nil {
		oldStatus := fn.Status
		fn.ClaimedByAgent = ""
		fn.ClaimedAt = nil
		fn.Status = lifecycle.Derive(fn)
		if err := upsertFunction(ctx, q, fn); err != nil {
			return fmt.Errorf("sqlite: updating function %s for release: %w", functionName, err)
		}
		if err := logAudit(ctx, q, &types.AuditEntry{
			EntityType: "function",
			EntityID:   functionName,
			Action:     types.ActionReleased,
			OldValue:   string(oldStatus),
			NewValue:   string(fn.Status),
			AgentID:    agentID,
			Metadata:   "claim_release",
		}); err != nil {
			return fmt.Errorf("sqlite: logging release audit for %s: %w", functionName, err)
		}
	}
	return nil
}

func activeClaimForFunction(ctx context.Context, q querier, functionName string, now time.Time) (*types.Claim, error) {
	row := q.QueryRowContext(ctx, `
		SELECT function_name, agent_id, claimed_at, expires_at
		FROM claims WHERE function_name = ? AND expires_at > ?
		ORDER BY claimed_at DESC LIMIT 1
	`, functionName, now)

	var c types.Claim
	err := row.Scan(&c.FunctionName, &c.AgentID, &c.ClaimedAt, &c.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: active claim lookup for %s: %w", functionName, err)
	}
	return &c, nil
}

func (s *Store) AddClaim(ctx context.Context, functionName, agentID string, ttl time.Duration) (*types.Claim, error) {
	return addClaim(ctx, s.db, functionName, agentID, ttl)
}

func (s *Store) ReleaseClaim(ctx context.Context, functionName, agentID string) error {
	return releaseClaim(ctx, s.db, functionName, agentID)
}

func (s *Store) GetActiveClaim(ctx context.Context, functionName string) (*types.Claim, error) {
	return activeClaimForFunction(ctx, s.db, functionName, time.Now().UTC())
}

func (t *txStore) AddClaim(ctx context.Context, functionName, agentID string, ttl time.Duration) (*types.Claim, error) {
	return addClaim(ctx, t.tx, functionName, agentID, ttl)
}

func (t *txStore) ReleaseClaim(ctx context.Context, functionName, agentID string) error {
	return releaseClaim(ctx, t.tx, functionName, agentID)
}

func (t *txStore) GetActiveClaim(ctx context.Context, functionName string) (*types.Claim, error) {
	return activeClaimForFunction(ctx, t.tx, functionName, time.Now().UTC())
}

// GetActiveClaims lists every non-expired claim held by agentID.
func (s *Store) GetActiveClaims(ctx context.Context, agentID string) ([]*types.Claim, error) {
	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, `
		SELECT function_name, agent_id, claimed_at, expires_at
		FROM claims WHERE agent_id = ? AND expires_at > ?
		ORDER BY claimed_at ASC
	`, agentID, now)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get active claims for %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []*types.Claim
	for rows.Next() {
		var c types.Claim
		if err := rows.Scan(&c.FunctionName, &c.AgentID, &c.ClaimedAt, &c.ExpiresAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan claim: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ExpireClaims deletes claims past expiry, returning the count removed.
// Nothing in this repository runs it on a schedule; expired rows are ignored
// by the active-claim queries and cleared by the next addClaim for the same
// function.
func (s *Store) ExpireClaims(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("sqlite: expire claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: expire claims rows affected: %w", err)
	}
	return int(n), nil
}
