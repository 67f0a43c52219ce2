// Package types defines the entities persisted by the state store.
package types

import "time"

// FunctionStatus is the discriminated status of a Function. Canonical status
// is always derived from (IsCommitted, PRState, BuildStatus, MatchPercent,
// ClaimedByAgent, ClaimedAt); see internal/lifecycle.
type FunctionStatus string

const (
	StatusUnclaimed          FunctionStatus = "unclaimed"
	StatusClaimed            FunctionStatus = "claimed"
	StatusInProgress         FunctionStatus = "in_progress"
	StatusMatched            FunctionStatus = "matched"
	StatusCommitted          FunctionStatus = "committed"
	StatusCommittedNeedsFix  FunctionStatus = "committed_needs_fix"
	StatusInReview           FunctionStatus = "in_review"
	StatusMerged             FunctionStatus = "merged"
)

// BuildStatus reflects the last known compile health of a function's object file.
type BuildStatus string

const (
	BuildUnknown  BuildStatus = "unknown"
	BuildPassing  BuildStatus = "passing"
	BuildBroken   BuildStatus = "broken"
)

// PRState mirrors the subset of GitHub pull-request states this system cares about.
type PRState string

const (
	PRStateNone     PRState = ""
	PRStateOpen     PRState = "OPEN"
	PRStateMerged   PRState = "MERGED"
	PRStateClosed   PRState = "CLOSED"
)

// ScratchInstance identifies which deployment of the remote scratch service a Scratch lives on.
type ScratchInstance string

const (
	InstanceLocal      ScratchInstance = "local"
	InstanceProduction ScratchInstance = "production"
)

// Function is the unit of work: a single unmatched (or matched) C function.
type Function struct {
	Name                string         `json:"name"`
	SourceFile          string         `json:"source_file"`
	WorktreePath        string         `json:"worktree_path"`
	MatchPercent        float64        `json:"match_percent"`
	Status              FunctionStatus `json:"status"`
	LocalScratchSlug    string         `json:"local_scratch_slug,omitempty"`
	ProdScratchSlug     string         `json:"prod_scratch_slug,omitempty"`
	ClaimedByAgent      string         `json:"claimed_by_agent,omitempty"`
	ClaimedAt           *time.Time     `json:"claimed_at,omitempty"`
	Branch              string         `json:"branch,omitempty"`
	CommitHash          string         `json:"commit_hash,omitempty"`
	BuildStatus         BuildStatus    `json:"build_status"`
	BuildDiagnosis      string         `json:"build_diagnosis,omitempty"`
	IsCommitted         bool           `json:"is_committed"`
	PRURL               string         `json:"pr_url,omitempty"`
	PRNumber            int            `json:"pr_number,omitempty"`
	PRState             PRState        `json:"pr_state,omitempty"`
	PRReviewState       string         `json:"pr_review_state,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Claim is an active exclusive reservation on a Function.
type Claim struct {
	FunctionName string    `json:"function_name"`
	AgentID      string    `json:"agent_id"`
	ClaimedAt    time.Time `json:"claimed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether this claim is no longer active as of now.
func (c *Claim) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// SubdirectoryLock is an exclusive reservation over a worktree subtree.
type SubdirectoryLock struct {
	SubdirectoryKey     string    `json:"subdirectory_key"`
	WorktreePath        string    `json:"worktree_path"`
	BranchName          string    `json:"branch_name"`
	LockedByAgent       string    `json:"locked_by_agent"`
	LockedAt            time.Time `json:"locked_at"`
	LockExpiresAt       time.Time `json:"lock_expires_at"`
	PendingCommitsCount int       `json:"pending_commits_count"`
	LastCommitAt        *time.Time `json:"last_commit_at,omitempty"`
}

// Expired reports whether this lock is no longer active as of now.
func (l *SubdirectoryLock) Expired(now time.Time) bool {
	return !now.Before(l.LockExpiresAt)
}

// Scratch is a record of a remote compile sandbox.
type Scratch struct {
	Slug         string          `json:"slug"`
	Instance     ScratchInstance `json:"instance"`
	BaseURL      string          `json:"base_url"`
	FunctionName string          `json:"function_name"`
	Score        int             `json:"score"`
	MaxScore     int             `json:"max_score"`
	MatchPercent float64         `json:"match_percent"`
	ClaimToken   string          `json:"claim_token,omitempty"`
	VerifiedAt   *time.Time      `json:"verified_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MatchHistoryEntry is one append-only observation of a scratch's score over time.
type MatchHistoryEntry struct {
	ScratchSlug  string    `json:"scratch_slug"`
	Timestamp    time.Time `json:"timestamp"`
	Score        int       `json:"score"`
	MaxScore     int       `json:"max_score"`
	MatchPercent float64   `json:"match_percent"`
}

// BranchProgress is the best known result for a function on a given branch.
type BranchProgress struct {
	FunctionName string    `json:"function_name"`
	Branch       string    `json:"branch"`
	MatchPercent float64   `json:"match_percent"`
	ScratchSlug  string    `json:"scratch_slug,omitempty"`
	IsCommitted  bool      `json:"is_committed"`
	CommitHash   string    `json:"commit_hash,omitempty"`
	AgentID      string    `json:"agent_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Agent is a registry entry for a known orchestrator session.
type Agent struct {
	AgentID      string    `json:"agent_id"`
	WorktreePath string    `json:"worktree_path,omitempty"`
	BranchName   string    `json:"branch_name,omitempty"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// AuditAction enumerates the kinds of state-changing events that get logged.
type AuditAction string

const (
	ActionCreated  AuditAction = "created"
	ActionUpdated  AuditAction = "updated"
	ActionReleased AuditAction = "released"
	ActionLocked   AuditAction = "locked"
	ActionUnlocked AuditAction = "unlocked"
)

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID         int64       `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Action     AuditAction `json:"action"`
	OldValue   string      `json:"old_value,omitempty"`
	NewValue   string      `json:"new_value,omitempty"`
	AgentID    string      `json:"agent_id,omitempty"`
	Metadata   string      `json:"metadata,omitempty"`
}

// ProgressSnapshot is an aggregate progress read over a worktree, computed
// on each call.
type ProgressSnapshot struct {
	WorktreePath    string    `json:"worktree_path"`
	TotalFunctions  int       `json:"total_functions"`
	Matched         int       `json:"matched"`
	Committed       int       `json:"committed"`
	Merged          int       `json:"merged"`
	AverageMatchPct float64   `json:"average_match_percent"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// FunctionFilter narrows GetFunctionsByStatus-style queries.
type FunctionFilter struct {
	Status       FunctionStatus
	WorktreePath string
	Limit        int
	SortBy       string // "updated_at" | "match_percent" | "name"
	Descending   bool
}
