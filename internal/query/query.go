// Package query implements the Audit & Query Layer: a set of read-only
// projections over the State Store for CLI introspection (`state status`,
// `state stale`, `state agents`, `worktree status`, `state history`) plus
// the ProgressSnapshot analytics view.
// None of these run inside Store.RunInTransaction — that helper opens a
// BEGIN IMMEDIATE write transaction, which would needlessly contend with
// concurrent writers for a query that never mutates anything; every method
// here issues plain reads instead, since queries must never mutate state
// and SQLite's default read path is already a snapshot with no BEGIN
// IMMEDIATE needed.
//
// ProgressSnapshot is grounded on the original analytics module's
// AggregateMetrics, re-expressed as one pass over the worktree's function
// rows (summed in Go) instead of that module's load-every-session-into-memory
// approach.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/storage"
	"github.com/doldecomp/agentcoord/internal/types"
)

// DefaultStaleWindow is how long a scratch can go unverified before
// StaleScratches reports it.
const DefaultStaleWindow = 24 * time.Hour

// Engine answers the Audit & Query Layer's read-only projections.
type Engine struct {
	Store       storage.Store
	StaleWindow time.Duration
}

// New constructs an Engine with DefaultStaleWindow.
func New(store storage.Store) *Engine {
	return &Engine{Store: store, StaleWindow: DefaultStaleWindow}
}

// FunctionsByStatus is a thin pass-through to the Store's sortable function
// listing.
func (e *Engine) FunctionsByStatus(ctx context.Context, filter types.FunctionFilter) ([]*types.Function, error) {
	fns, err := e.Store.GetFunctionsByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query: functions by status: %w", err)
	}
	return fns, nil
}

// UncommittedMatches lists functions at or above the matched threshold that
// have not yet been committed, optionally narrowed to one worktree.
func (e *Engine) UncommittedMatches(ctx context.Context, worktreePath string) ([]*types.Function, error) {
	fns, err := e.Store.GetUncommittedMatches(ctx, worktreePath)
	if err != nil {
		return nil, fmt.Errorf("query: uncommitted matches: %w", err)
	}
	return fns, nil
}

// AuditHistory is a thin pass-through to the Store's paginated audit log,
// filtered by entity type / entity id, newest first.
func (e *Engine) AuditHistory(ctx context.Context, entityType, entityID string, limit, offset int) ([]*types.AuditEntry, error) {
	entries, err := e.Store.GetHistory(ctx, entityType, entityID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query: audit history: %w", err)
	}
	return entries, nil
}

// ProgressSnapshot computes the aggregate progress view for one worktree (or
// every function, when worktreePath is empty).
func (e *Engine) ProgressSnapshot(ctx context.Context, worktreePath string) (*types.ProgressSnapshot, error) {
	fns, err := e.Store.GetFunctionsByStatus(ctx, types.FunctionFilter{WorktreePath: worktreePath})
	if err != nil {
		return nil, fmt.Errorf("query: progress snapshot: %w", err)
	}

	snap := &types.ProgressSnapshot{
		WorktreePath: worktreePath,
		GeneratedAt:  time.Now().UTC(),
	}
	var matchSum float64
	for _, fn := range fns {
		snap.TotalFunctions++
		matchSum += fn.MatchPercent
		if fn.MatchPercent >= 95 {
			snap.Matched++
		}
		switch fn.Status {
		case types.StatusCommitted, types.StatusCommittedNeedsFix, types.StatusInReview, types.StatusMerged:
			snap.Committed++
		}
		if fn.Status == types.StatusMerged {
			snap.Merged++
		}
	}
	if snap.TotalFunctions > 0 {
		snap.AverageMatchPct = matchSum / float64(snap.TotalFunctions)
	}
	return snap, nil
}
