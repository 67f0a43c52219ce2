package query

import (
	"context"
	"fmt"

	"github.com/doldecomp/agentcoord/internal/types"
)

// BrokenBuildCounts groups every function with BuildStatus == BuildBroken by
// worktree path — the same backlog figure internal/workflow.WorkflowFinish
// gates new commits on.
func (e *Engine) BrokenBuildCounts(ctx context.Context) (map[string]int, error) {
	fns, err := e.Store.GetFunctionsByStatus(ctx, types.FunctionFilter{})
	if err != nil {
		return nil, fmt.Errorf("query: broken build counts: %w", err)
	}

	counts := make(map[string]int)
	for _, fn := range fns {
		if fn.BuildStatus == types.BuildBroken {
			counts[fn.WorktreePath]++
		}
	}
	return counts, nil
}
