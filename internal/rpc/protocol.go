package rpc

import "encoding/json"

// Operation constants, one per CLI subcommand that gets routed through the
// daemon, plus the daemon lifecycle/introspection operations.
const (
	OpPing     = "ping"
	OpHealth   = "health"
	OpShutdown = "shutdown"
	OpMetrics  = "metrics"

	OpExtractList  = "extract_list"
	OpExtractFiles = "extract_files"
	OpExtractGet   = "extract_get"

	OpScratchCreate        = "scratch_create"
	OpScratchCompile       = "scratch_compile"
	OpScratchUpdate        = "scratch_update"
	OpScratchGet           = "scratch_get"
	OpScratchSearch        = "scratch_search"
	OpScratchSearchContext = "scratch_search_context"

	OpClaimAdd     = "claim_add"
	OpClaimRelease = "claim_release"
	OpClaimList    = "claim_list"

	OpWorktreeList   = "worktree_list"
	OpWorktreeLock   = "worktree_lock"
	OpWorktreeUnlock = "worktree_unlock"
	OpWorktreeStatus = "worktree_status"

	OpStubAdd   = "stub_add"
	OpStubList  = "stub_list"
	OpStubCheck = "stub_check"

	OpCommitApply = "commit_apply"

	OpWorkflowFinish = "workflow_finish"

	OpStateStatus   = "state_status"
	OpStateValidate = "state_validate"
	OpStateHistory  = "state_history"
	OpStateAgents   = "state_agents"
	OpStateStale    = "state_stale"
	OpStateProgress = "state_progress"
)

// Request is the JSON envelope sent from client to daemon over the Unix
// socket, one per line.
type Request struct {
	Operation     string          `json:"operation"`
	Args          json.RawMessage `json:"args"`
	Actor         string          `json:"actor,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	Cwd           string          `json:"cwd,omitempty"`
	ClientVersion string          `json:"client_version,omitempty"`
	ExpectedDB    string          `json:"expected_db,omitempty"`
}

// Response is the JSON envelope returned by the daemon for a Request.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PingResponse answers OpPing.
type PingResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// HealthResponse answers OpHealth. A "healthy"/"degraded" status is treated
// by the client as a live daemon; "unhealthy" is treated as no daemon.
type HealthResponse struct {
	Status         string  `json:"status"`
	Version        string  `json:"version"`
	ClientVersion  string  `json:"client_version,omitempty"`
	Compatible     bool    `json:"compatible"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	DBResponseMS   float64 `json:"db_response_ms"`
	MaxConns       int     `json:"max_connections"`
	Error          string  `json:"error,omitempty"`
}

// ExtractGetArgs is the argument body for OpExtractGet.
type ExtractGetArgs struct {
	FunctionName  string `json:"function_name"`
	CreateScratch bool   `json:"create_scratch,omitempty"`
	Decompile     bool   `json:"decompile,omitempty"`
}

// ScratchCompileArgs is the argument body for OpScratchCompile.
type ScratchCompileArgs struct {
	Slug       string `json:"slug"`
	SourceCode string `json:"source_code,omitempty"`
}

// ScratchCreateArgs is the argument body for OpScratchCreate.
type ScratchCreateArgs struct {
	FunctionName string `json:"function_name"`
	Decompile    bool   `json:"decompile,omitempty"`
}

// ScratchGetArgs is the argument body for OpScratchGet.
type ScratchGetArgs struct {
	Slug string `json:"slug"`
}

// ScratchUpdateArgs is the argument body for OpScratchUpdate.
type ScratchUpdateArgs struct {
	Slug       string `json:"slug"`
	SourceCode string `json:"source_code,omitempty"`
}

// ScratchSearchArgs is the argument body for OpScratchSearch and
// OpScratchSearchContext.
type ScratchSearchArgs struct {
	Search   string `json:"search,omitempty"`
	Platform string `json:"platform,omitempty"`
	Compiler string `json:"compiler,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// ClaimAddArgs is the argument body for OpClaimAdd.
type ClaimAddArgs struct {
	FunctionName string `json:"function_name"`
}

// WorktreeLockArgs is the argument body for OpWorktreeLock/OpWorktreeUnlock.
type WorktreeLockArgs struct {
	SubdirectoryKey string `json:"subdirectory_key"`
}

// StubAddArgs is the argument body for OpStubAdd.
type StubAddArgs struct {
	FunctionName string `json:"function_name"`
	FilePath     string `json:"file_path"`
}

// CommitApplyArgs is the argument body for OpCommitApply.
type CommitApplyArgs struct {
	FunctionName string `json:"function_name"`
	SourcePath   string `json:"source_path"`
	DryRun       bool   `json:"dry_run,omitempty"`
	Force        bool   `json:"force,omitempty"`
	Diagnosis    string `json:"diagnosis,omitempty"`
}

// WorkflowFinishArgs is the argument body for OpWorkflowFinish.
type WorkflowFinishArgs struct {
	FunctionName string `json:"function_name"`
	Force        bool   `json:"force,omitempty"`
	Diagnosis    string `json:"diagnosis,omitempty"`
}

// StateStatusArgs is the argument body for OpStateStatus.
type StateStatusArgs struct {
	Category string `json:"category,omitempty"`
}

// StateValidateArgs is the argument body for OpStateValidate.
type StateValidateArgs struct {
	Fix bool `json:"fix,omitempty"`
}

// StateHistoryArgs is the argument body for OpStateHistory.
type StateHistoryArgs struct {
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// StateStaleArgs is the argument body for OpStateStale.
type StateStaleArgs struct {
	WithinSeconds int64 `json:"within_seconds,omitempty"`
}

// StateProgressArgs is the argument body for OpStateProgress.
type StateProgressArgs struct {
	WorktreePath string `json:"worktree_path,omitempty"`
}
