package workflow

import (
	"context"
	"fmt"

	"github.com/doldecomp/agentcoord/internal/commitapply"
	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/types"
)

// WorkflowFinishResult is the response for OpWorkflowFinish.
type WorkflowFinishResult struct {
	FunctionName string `json:"function_name"`
	CommitHash   string `json:"commit_hash"`
	MatchPercent float64 `json:"match_percent"`
	ForcedBroken bool    `json:"forced_broken"`
}

// WorkflowFinish is the `workflow finish <name>` commit path. Preconditions
// are checked in order: claimed-by-caller, match >= threshold, the
// function's worktree broken-build backlog under threshold. A verified (dry-run then real)
// Commit Applier run follows, then the function row and subdirectory
// counters are updated and the claim is released.
func (d *Driver) WorkflowFinish(ctx context.Context, actor string, args rpc.WorkflowFinishArgs) (interface{}, error) {
	if args.Force && args.Diagnosis == "" {
		return nil, errs.Precondition("workflow: --force requires --diagnosis")
	}

	fn, err := d.Store.GetFunction(ctx, args.FunctionName)
	if err != nil {
		return nil, fmt.Errorf("workflow: loading function %s: %w", args.FunctionName, err)
	}
	if fn == nil {
		return nil, errs.Precondition("workflow: %s is unknown", args.FunctionName)
	}
	if fn.ClaimedByAgent != actor {
		return nil, errs.PreconditionWithHint("claim it first with `claim add`",
			"workflow: %s is not claimed by %s", args.FunctionName, actor)
	}
	if fn.MatchPercent < d.Cfg.MatchThresholdToCommit {
		return nil, errs.Precondition("workflow: %s match %.2f%% is below the %.0f%% commit threshold",
			args.FunctionName, fn.MatchPercent, d.Cfg.MatchThresholdToCommit)
	}

	subdirKey := subdirectoryKeyFor(fn.SourceFile)
	brokenCount, err := d.brokenBuildCount(ctx, fn.WorktreePath)
	if err != nil {
		return nil, err
	}
	if brokenCount >= d.Cfg.BrokenBuildThreshold {
		return nil, errs.PreconditionWithHint("fix outstanding broken builds before committing more matches",
			"workflow: worktree %s has %d broken builds, at or above the threshold of %d", fn.WorktreePath, brokenCount, d.Cfg.BrokenBuildThreshold)
	}

	scratch, err := d.Store.GetScratch(ctx, fn.LocalScratchSlug)
	if err != nil {
		return nil, fmt.Errorf("workflow: loading scratch %s: %w", fn.LocalScratchSlug, err)
	}
	if scratch == nil {
		return nil, errs.Precondition("workflow: %s has no recorded scratch", args.FunctionName)
	}
	remote, err := d.Scratch.Get(ctx, scratch.Slug)
	if err != nil {
		return nil, fmt.Errorf("workflow: fetching scratch %s: %w", scratch.Slug, err)
	}
	if remote.SourceCode == "" {
		return nil, errs.Precondition("workflow: scratch %s has no source code to commit", scratch.Slug)
	}

	root := fn.WorktreePath
	if root == "" {
		root = d.Git.RepoPath()
	}

	objectPath, err := d.Objects.ObjectPathFor(ctx, fn.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolving object path for %s: %w", fn.SourceFile, err)
	}

	req := commitapply.Request{
		FunctionName: args.FunctionName,
		SourceFile:   fn.SourceFile,
		NewCode:      remote.SourceCode,
		ObjectPath:   objectPath,
		Force:        args.Force,
		Diagnosis:    args.Diagnosis,
	}

	if !args.Force {
		dryRun := req
		dryRun.DryRun = true
		if _, err := d.Applier.Apply(ctx, root, dryRun); err != nil {
			return nil, fmt.Errorf("workflow: dry-run verify failed for %s: %w", args.FunctionName, err)
		}
	}

	applyResult, err := d.Applier.Apply(ctx, root, req)
	if err != nil {
		return nil, fmt.Errorf("workflow: committing %s: %w", args.FunctionName, err)
	}

	branch, err := d.Git.CurrentBranch(ctx, root)
	if err != nil {
		branch = fn.Branch
	}

	commitHash, err := d.Applier.Commit(ctx, root, fn.SourceFile, args.FunctionName, fn.MatchPercent, d.Scratch.BaseURL()+"/scratch/"+scratch.Slug)
	if err != nil {
		return nil, fmt.Errorf("workflow: creating commit for %s: %w", args.FunctionName, err)
	}

	fn.IsCommitted = true
	fn.CommitHash = commitHash
	fn.Branch = branch
	if args.Force {
		fn.BuildStatus = types.BuildBroken
		fn.BuildDiagnosis = args.Diagnosis
		fn.Status = types.StatusCommittedNeedsFix
	} else {
		fn.BuildStatus = types.BuildPassing
		fn.Status = types.StatusCommitted
	}
	fn.ClaimedByAgent = ""
	fn.ClaimedAt = nil
	if err := d.Store.UpsertFunction(ctx, fn); err != nil {
		return nil, fmt.Errorf("workflow: upserting function %s: %w", args.FunctionName, err)
	}

	if err := d.Store.ReleaseClaim(ctx, args.FunctionName, actor); err != nil {
		return nil, fmt.Errorf("workflow: releasing claim on %s: %w", args.FunctionName, err)
	}

	if err := d.incrementPendingCommits(ctx, subdirKey); err != nil {
		return nil, err
	}

	if err := d.Store.LogAudit(ctx, &types.AuditEntry{
		EntityType: "function",
		EntityID:   args.FunctionName,
		Action:     types.ActionUpdated,
		OldValue:   string(types.StatusInProgress),
		NewValue:   string(fn.Status),
		AgentID:    actor,
		Metadata:   commitHash,
	}); err != nil {
		return nil, fmt.Errorf("workflow: logging audit for %s: %w", args.FunctionName, err)
	}

	_ = applyResult

	return &WorkflowFinishResult{
		FunctionName: args.FunctionName,
		CommitHash:   commitHash,
		MatchPercent: fn.MatchPercent,
		ForcedBroken: args.Force,
	}, nil
}

// subdirectoryKeyFor derives the subdirectory lock key from a source file
// path: the top-level directory component, matching the granularity
// subdirectory locks operate at.
func subdirectoryKeyFor(sourceFile string) string {
	for i := 0; i < len(sourceFile); i++ {
		if sourceFile[i] == '/' {
			return sourceFile[:i]
		}
	}
	return sourceFile
}

// brokenBuildCount counts functions under worktreePath whose last known
// build status is broken — the backlog that gates new commits.
func (d *Driver) brokenBuildCount(ctx context.Context, worktreePath string) (int, error) {
	fns, err := d.Store.GetFunctionsByStatus(ctx, types.FunctionFilter{WorktreePath: worktreePath})
	if err != nil {
		return 0, fmt.Errorf("workflow: counting broken builds in %s: %w", worktreePath, err)
	}
	count := 0
	for _, fn := range fns {
		if fn.BuildStatus == types.BuildBroken {
			count++
		}
	}
	return count, nil
}

func (d *Driver) incrementPendingCommits(ctx context.Context, subdirKey string) error {
	lock, err := d.Store.GetLock(ctx, subdirKey)
	if err != nil {
		return fmt.Errorf("workflow: loading lock for %s: %w", subdirKey, err)
	}
	if lock == nil {
		return nil
	}
	lock.PendingCommitsCount++
	if _, err := d.Store.LockSubdirectory(ctx, lock); err != nil {
		return fmt.Errorf("workflow: incrementing pending commits for %s: %w", subdirKey, err)
	}
	return nil
}
