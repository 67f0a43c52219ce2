// Package lifecycle derives a Function's canonical status from its
// underlying fields rather than trusting the stored status column, and
// repairs the column when it has drifted. The pattern is grounded on
// BeadsLog's doctor checks (cmd/bd/doctor), which likewise treat a stored
// column as a cache to be checked against a recomputed truth rather than
// as the truth itself.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/doldecomp/agentcoord/internal/storage"
	"github.com/doldecomp/agentcoord/internal/types"
)

// Derive computes the canonical FunctionStatus from
// (IsCommitted, PRState, BuildStatus, MatchPercent, ClaimedByAgent,
// ClaimedAt). The stored Status
// field is never consulted.
func Derive(fn *types.Function) types.FunctionStatus {
	switch {
	case fn.PRState == types.PRStateMerged:
		return types.StatusMerged
	case fn.PRState == types.PRStateOpen:
		return types.StatusInReview
	case fn.IsCommitted && fn.BuildStatus == types.BuildBroken:
		return types.StatusCommittedNeedsFix
	case fn.IsCommitted:
		return types.StatusCommitted
	case fn.MatchPercent >= 95:
		return types.StatusMatched
	case fn.ClaimedByAgent != "":
		return types.StatusInProgress
	case fn.ClaimedAt != nil:
		return types.StatusClaimed
	default:
		return types.StatusUnclaimed
	}
}

// Divergence is one detected mismatch between a Function's stored status
// and its derived status.
type Divergence struct {
	FunctionName   string
	StoredStatus   types.FunctionStatus
	DerivedStatus  types.FunctionStatus
}

// Validate scans every function and reports where the stored status
// diverges from Derive's recomputation.
func Validate(ctx context.Context, store storage.Store) ([]Divergence, error) {
	fns, err := store.GetFunctionsByStatus(ctx, types.FunctionFilter{})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: validate: listing functions: %w", err)
	}

	var divergences []Divergence
	for _, fn := range fns {
		derived := Derive(fn)
		if derived != fn.Status {
			divergences = append(divergences, Divergence{
				FunctionName:  fn.Name,
				StoredStatus:  fn.Status,
				DerivedStatus: derived,
			})
		}
	}
	return divergences, nil
}

// Report summarizes a Repair run.
type Report struct {
	Checked int
	Fixed   int
	Divergences []Divergence
}

// Repair runs Validate and, when fix is true, rewrites each divergent
// function's stored status to match its derived value, logging an audit
// entry per repair. When fix is false, Repair only reports.
func Repair(ctx context.Context, store storage.Store, actor string, fix bool) (*Report, error) {
	fns, err := store.GetFunctionsByStatus(ctx, types.FunctionFilter{})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: repair: listing functions: %w", err)
	}

	report := &Report{Checked: len(fns)}

	for _, fn := range fns {
		derived := Derive(fn)
		if derived == fn.Status {
			continue
		}

		div := Divergence{FunctionName: fn.Name, StoredStatus: fn.Status, DerivedStatus: derived}
		report.Divergences = append(report.Divergences, div)

		if !fix {
			continue
		}

		old := fn.Status
		fn.Status = derived
		if err := store.UpsertFunction(ctx, fn); err != nil {
			return report, fmt.Errorf("lifecycle: repair: updating %s: %w", fn.Name, err)
		}
		if err := store.LogAudit(ctx, &types.AuditEntry{
			EntityType: "function",
			EntityID:   fn.Name,
			Action:     types.ActionUpdated,
			OldValue:   string(old),
			NewValue:   string(derived),
			AgentID:    actor,
			Metadata:   "lifecycle_repair",
		}); err != nil {
			return report, fmt.Errorf("lifecycle: repair: logging audit for %s: %w", fn.Name, err)
		}
		report.Fixed++
	}

	return report, nil
}
