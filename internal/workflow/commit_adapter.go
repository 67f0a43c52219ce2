package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/doldecomp/agentcoord/internal/commitapply"
	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/types"
)

// readSourceFile loads the new function code from the file named by
// `commit apply --source <file>`, the on-disk location an agent wrote its
// candidate implementation to.
func readSourceFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Precondition("workflow: reading --source file %s: %v", path, err)
	}
	return string(data), nil
}

// CommitApplyResult is the response for OpCommitApply.
type CommitApplyResult struct {
	Applied         bool   `json:"applied"`
	Reverted        bool   `json:"reverted"`
	Diagnostic      string `json:"diagnostic,omitempty"`
	MatchingFlipped bool   `json:"matching_flipped"`
}

// Apply implements daemon.CommitService for the standalone `commit apply`
// CLI subcommand, distinct from workflow-finish: it mutates and verifies a
// function's source without touching claim/commit state — useful for
// iterating locally before finishing the workflow.
func (d *Driver) Apply(ctx context.Context, actor string, args rpc.CommitApplyArgs) (interface{}, error) {
	fn, err := d.Store.GetFunction(ctx, args.FunctionName)
	if err != nil {
		return nil, fmt.Errorf("workflow: loading function %s: %w", args.FunctionName, err)
	}
	if fn == nil {
		return nil, errs.Precondition("workflow: %s is unknown", args.FunctionName)
	}

	newCode, err := readSourceFile(args.SourcePath)
	if err != nil {
		return nil, err
	}

	root := fn.WorktreePath
	if root == "" {
		root = d.Git.RepoPath()
	}

	objectPath, err := d.Objects.ObjectPathFor(ctx, fn.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolving object path for %s: %w", fn.SourceFile, err)
	}

	result, err := d.Applier.Apply(ctx, root, commitapply.Request{
		FunctionName: args.FunctionName,
		SourceFile:   fn.SourceFile,
		NewCode:      newCode,
		ObjectPath:   objectPath,
		DryRun:       args.DryRun,
		Force:        args.Force,
		Diagnosis:    args.Diagnosis,
	})
	if err != nil {
		return nil, err
	}

	if result.Applied && !args.DryRun {
		if err := d.Store.LogAudit(ctx, &types.AuditEntry{
			EntityType: "function",
			EntityID:   args.FunctionName,
			Action:     types.ActionUpdated,
			AgentID:    actor,
			Metadata:   "commit_apply",
		}); err != nil {
			return nil, fmt.Errorf("workflow: logging audit for %s: %w", args.FunctionName, err)
		}
	}

	return &CommitApplyResult{
		Applied:         result.Applied,
		Reverted:        result.Reverted,
		Diagnostic:      result.Diagnostic,
		MatchingFlipped: result.MatchingFlipped,
	}, nil
}
