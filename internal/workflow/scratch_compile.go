package workflow

import (
	"context"
	"fmt"

	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/scratchclient"
	"github.com/doldecomp/agentcoord/internal/types"
)

// ScratchCompileResult is the response for OpScratchCompile.
type ScratchCompileResult struct {
	Slug         string  `json:"slug"`
	MatchPercent float64 `json:"match_percent"`
	Success      bool    `json:"success"`
}

// ScratchCompile is the `scratch compile` operation: optionally update the
// scratch's source, compile it, re-claim once on a lost-ownership 403,
// record the new match score, and emit an audit entry.
func (d *Driver) ScratchCompile(ctx context.Context, actor string, args rpc.ScratchCompileArgs) (interface{}, error) {
	if args.SourceCode != "" {
		if _, err := d.Scratch.Update(ctx, args.Slug, scratchclient.UpdateRequest{SourceCode: args.SourceCode}); err != nil {
			if !reclaimAndRetryUpdate(ctx, d, args) {
				return nil, fmt.Errorf("workflow: updating scratch %s source: %w", args.Slug, err)
			}
		}
	}

	result, err := d.Scratch.Compile(ctx, args.Slug, nil)
	if err != nil {
		if ce, ok := err.(*errs.CoordError); ok && ce.Kind == errs.KindOwnership {
			if reclaimErr := d.Scratch.ClaimWithRetry(ctx, args.Slug); reclaimErr != nil {
				return nil, fmt.Errorf("workflow: re-claiming %s after 403: %w", args.Slug, reclaimErr)
			}
			result, err = d.Scratch.Compile(ctx, args.Slug, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("workflow: compiling scratch %s: %w", args.Slug, err)
		}
	}

	matchPct := result.DiffOutput.MatchPercent()

	fn, err := d.functionByScratchSlug(ctx, args.Slug)
	if err != nil {
		return nil, err
	}

	isNew, err := d.Store.RecordMatchScore(ctx, &types.MatchHistoryEntry{
		ScratchSlug:  args.Slug,
		Score:        result.DiffOutput.CurrentScore,
		MaxScore:     result.DiffOutput.MaxScore,
		MatchPercent: matchPct,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: recording match history for %s: %w", args.Slug, err)
	}

	if fn != nil {
		wasUnscored := fn.MatchPercent == 0 && fn.Status == types.StatusClaimed
		fn.MatchPercent = matchPct
		if wasUnscored && isNew {
			fn.Status = types.StatusInProgress
		}
		if err := d.Store.UpsertFunction(ctx, fn); err != nil {
			return nil, fmt.Errorf("workflow: upserting function %s: %w", fn.Name, err)
		}
	}

	if isNew {
		if err := d.Store.LogAudit(ctx, &types.AuditEntry{
			EntityType: "scratch",
			EntityID:   args.Slug,
			Action:     types.ActionUpdated,
			NewValue:   fmt.Sprintf("%.2f%%", matchPct),
			AgentID:    actor,
			Metadata:   "scratch_compile",
		}); err != nil {
			return nil, fmt.Errorf("workflow: logging audit for %s: %w", args.Slug, err)
		}
	}

	return &ScratchCompileResult{Slug: args.Slug, MatchPercent: matchPct, Success: result.Success}, nil
}

// reclaimAndRetryUpdate handles a 403 on the source-code update path: it
// re-claims with the saved token and retries the update once. Returns true
// if the retry succeeded.
func reclaimAndRetryUpdate(ctx context.Context, d *Driver, args rpc.ScratchCompileArgs) bool {
	if err := d.Scratch.ClaimWithRetry(ctx, args.Slug); err != nil {
		return false
	}
	_, err := d.Scratch.Update(ctx, args.Slug, scratchclient.UpdateRequest{SourceCode: args.SourceCode})
	return err == nil
}

func (d *Driver) functionByScratchSlug(ctx context.Context, slug string) (*types.Function, error) {
	scratch, err := d.Store.GetScratch(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("workflow: looking up scratch %s: %w", slug, err)
	}
	if scratch == nil {
		return nil, nil
	}
	return d.Store.GetFunction(ctx, scratch.FunctionName)
}
