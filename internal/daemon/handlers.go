package daemon

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/doldecomp/agentcoord/internal/config"
	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/lifecycle"
	"github.com/doldecomp/agentcoord/internal/rpc"
	"github.com/doldecomp/agentcoord/internal/types"
)

// claimTTL and lockTTL read the configured arbitration lifetimes, falling
// back to a 1h/30m default if config wasn't initialized (e.g. tests that
// construct a Server directly against a temp store).
func claimTTL() time.Duration {
	if d := config.GetDuration("claim.ttl"); d > 0 {
		return d
	}
	return time.Hour
}

func lockTTL() time.Duration {
	if d := config.GetDuration("lock.ttl"); d > 0 {
		return d
	}
	return 30 * time.Minute
}

func (s *Server) buildHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		rpc.OpPing:     s.handlePing,
		rpc.OpHealth:   s.handleHealth,
		rpc.OpShutdown: s.handleShutdown,

		rpc.OpClaimAdd:     s.handleClaimAdd,
		rpc.OpClaimRelease: s.handleClaimRelease,
		rpc.OpClaimList:    s.handleClaimList,

		rpc.OpWorktreeLock:   s.handleWorktreeLock,
		rpc.OpWorktreeUnlock: s.handleWorktreeUnlock,
		rpc.OpWorktreeStatus: s.handleWorktreeStatus,

		rpc.OpStateStatus:   s.handleStateStatus,
		rpc.OpStateValidate: s.handleStateValidate,
		rpc.OpStateHistory:  s.handleStateHistory,
		rpc.OpStateAgents:   s.handleStateAgents,
		rpc.OpStateStale:    s.handleStateStale,
		rpc.OpStateProgress: s.handleStateProgress,

		rpc.OpExtractList:  s.handleExtractList,
		rpc.OpExtractFiles: s.handleExtractFiles,
		rpc.OpExtractGet:   s.handleExtractGet,

		rpc.OpScratchCreate:        s.handleScratchCreate,
		rpc.OpScratchCompile:       s.handleScratchCompile,
		rpc.OpScratchUpdate:        s.handleScratchUpdate,
		rpc.OpScratchGet:           s.handleScratchGet,
		rpc.OpScratchSearch:        s.handleScratchSearch,
		rpc.OpScratchSearchContext: s.handleScratchSearchContext,

		rpc.OpWorktreeList: s.handleWorktreeList,

		rpc.OpWorkflowFinish: s.handleWorkflowFinish,
		rpc.OpCommitApply:    s.handleCommitApply,
	}
}

func (s *Server) handlePing(ctx context.Context, req *rpc.Request) (interface{}, error) {
	return rpc.PingResponse{Message: "pong", Version: s.Version}, nil
}

func (s *Server) handleHealth(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	start := time.Now()
	_, dbErr := s.Store.GetMeta(ctx, "schema_version")
	dbMS := float64(time.Since(start).Microseconds()) / 1000.0

	status := "healthy"
	errMsg := ""
	if dbErr != nil {
		status = "unhealthy"
		errMsg = dbErr.Error()
	}

	return rpc.HealthResponse{
		Status:        status,
		Version:       s.Version,
		ClientVersion: req.ClientVersion,
		Compatible:    true,
		UptimeSeconds: s.uptime().Seconds(),
		DBResponseMS:  dbMS,
		MaxConns:      1,
		Error:         errMsg,
	}, nil
}

func (s *Server) handleShutdown(ctx context.Context, req *rpc.Request) (interface{}, error) {
	s.RequestShutdown()
	return nil, nil
}

func (s *Server) handleClaimAdd(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.ClaimAddArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad claim_add args: %v", err)
	}
	return s.Store.AddClaim(ctx, args.FunctionName, req.Actor, claimTTL())
}

func (s *Server) handleClaimRelease(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.ClaimAddArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad claim_release args: %v", err)
	}
	return nil, s.Store.ReleaseClaim(ctx, args.FunctionName, req.Actor)
}

func (s *Server) handleClaimList(ctx context.Context, req *rpc.Request) (interface{}, error) {
	return s.Store.GetActiveClaims(ctx, req.Actor)
}

func (s *Server) handleWorktreeLock(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.WorktreeLockArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad worktree_lock args: %v", err)
	}
	now := time.Now()
	lock := &types.SubdirectoryLock{
		SubdirectoryKey: args.SubdirectoryKey,
		LockedByAgent:   req.Actor,
		LockedAt:        now,
		LockExpiresAt:   now.Add(lockTTL()),
	}
	return s.Store.LockSubdirectory(ctx, lock)
}

func (s *Server) handleWorktreeUnlock(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.WorktreeLockArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad worktree_unlock args: %v", err)
	}
	return nil, s.Store.UnlockSubdirectory(ctx, args.SubdirectoryKey, req.Actor)
}

func (s *Server) handleWorktreeStatus(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.WorktreeLockArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad worktree_status args: %v", err)
	}
	if args.SubdirectoryKey == "" {
		return s.Query.SubdirectoryStatus(ctx)
	}
	return s.Store.GetLock(ctx, args.SubdirectoryKey)
}

func (s *Server) handleStateStatus(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.StateStatusArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad state_status args: %v", err)
	}
	filter := types.FunctionFilter{Status: types.FunctionStatus(args.Category)}
	return s.Store.GetFunctionsByStatus(ctx, filter)
}

func (s *Server) handleStateValidate(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.StateValidateArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad state_validate args: %v", err)
	}
	return lifecycle.Repair(ctx, s.Store, req.Actor, args.Fix)
}

func (s *Server) handleStateHistory(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.StateHistoryArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad state_history args: %v", err)
	}
	return s.Store.GetHistory(ctx, args.EntityType, args.EntityID, args.Limit, args.Offset)
}

func (s *Server) handleStateAgents(ctx context.Context, req *rpc.Request) (interface{}, error) {
	return s.Query.AgentSummaries(ctx)
}

func (s *Server) handleStateStale(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.StateStaleArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad state_stale args: %v", err)
	}
	if args.WithinSeconds > 0 {
		s.Query.StaleWindow = time.Duration(args.WithinSeconds) * time.Second
	}
	return s.Query.StaleScratches(ctx)
}

func (s *Server) handleStateProgress(ctx context.Context, req *rpc.Request) (interface{}, error) {
	var args rpc.StateProgressArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad state_progress args: %v", err)
	}
	return s.Query.ProgressSnapshot(ctx, args.WorktreePath)
}

func (s *Server) handleExtractList(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	return s.Workflow.ExtractList(ctx)
}

func (s *Server) handleExtractFiles(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	return s.Workflow.ExtractFiles(ctx)
}

func (s *Server) handleExtractGet(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.ExtractGetArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad extract_get args: %v", err)
	}
	return s.Workflow.ExtractGet(ctx, req.Actor, args)
}

func (s *Server) handleScratchCompile(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.ScratchCompileArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad scratch_compile args: %v", err)
	}
	return s.Workflow.ScratchCompile(ctx, req.Actor, args)
}

func (s *Server) handleScratchCreate(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.ScratchCreateArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad scratch_create args: %v", err)
	}
	return s.Workflow.ScratchCreate(ctx, args)
}

func (s *Server) handleScratchUpdate(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.ScratchUpdateArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad scratch_update args: %v", err)
	}
	return s.Workflow.ScratchUpdate(ctx, args)
}

func (s *Server) handleScratchGet(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.ScratchGetArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad scratch_get args: %v", err)
	}
	return s.Workflow.ScratchGet(ctx, args)
}

func (s *Server) handleScratchSearch(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.ScratchSearchArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad scratch_search args: %v", err)
	}
	return s.Workflow.ScratchSearch(ctx, args)
}

func (s *Server) handleScratchSearchContext(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.ScratchSearchArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad scratch_search_context args: %v", err)
	}
	return s.Workflow.ScratchSearchContext(ctx, args)
}

func (s *Server) handleWorktreeList(ctx context.Context, req *rpc.Request) (interface{}, error) {
	return s.Query.SubdirectoryStatus(ctx)
}

func (s *Server) handleWorkflowFinish(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Workflow == nil {
		return nil, errs.Precondition("daemon: workflow driver not configured")
	}
	var args rpc.WorkflowFinishArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad workflow_finish args: %v", err)
	}
	return s.Workflow.WorkflowFinish(ctx, req.Actor, args)
}

func (s *Server) handleCommitApply(ctx context.Context, req *rpc.Request) (interface{}, error) {
	if s.Commit == nil {
		return nil, errs.Precondition("daemon: commit applier not configured")
	}
	var args rpc.CommitApplyArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errs.Precondition("daemon: bad commit_apply args: %v", err)
	}
	return s.Commit.Apply(ctx, req.Actor, args)
}
