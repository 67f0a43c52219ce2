// Package storage defines the transactional state-store contract. The
// coordination state's persistence surface is expressed as an interface so
// the sqlite backend in internal/storage/sqlite can be swapped or mocked in
// tests, mirroring BeadsLog's internal/storage.Storage split.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

// Store is the full read/write surface over the coordination state.
// Implementations must serialize writers: SQLite does this with a single
// connection plus BEGIN IMMEDIATE/EXCLUSIVE transactions (see sqlite.Open).
type Store interface {
	// Functions
	UpsertFunction(ctx context.Context, fn *types.Function) error
	GetFunction(ctx context.Context, name string) (*types.Function, error)
	GetFunctionsByStatus(ctx context.Context, filter types.FunctionFilter) ([]*types.Function, error)
	GetUncommittedMatches(ctx context.Context, worktreePath string) ([]*types.Function, error)
	DeleteFunction(ctx context.Context, name string) error

	// Claims
	AddClaim(ctx context.Context, functionName, agentID string, ttl time.Duration) (*types.Claim, error)
	ReleaseClaim(ctx context.Context, functionName, agentID string) error
	GetActiveClaim(ctx context.Context, functionName string) (*types.Claim, error)
	GetActiveClaims(ctx context.Context, agentID string) ([]*types.Claim, error)
	ExpireClaims(ctx context.Context, now time.Time) (int, error)

	// Subdirectory locks
	LockSubdirectory(ctx context.Context, lock *types.SubdirectoryLock) (*types.SubdirectoryLock, error)
	UnlockSubdirectory(ctx context.Context, subdirectoryKey, agentID string) error
	GetLock(ctx context.Context, subdirectoryKey string) (*types.SubdirectoryLock, error)
	ListLocks(ctx context.Context) ([]*types.SubdirectoryLock, error)
	ExpireLocks(ctx context.Context, now time.Time) (int, error)

	// Scratches and match history
	UpsertScratch(ctx context.Context, scratch *types.Scratch) error
	GetScratch(ctx context.Context, slug string) (*types.Scratch, error)
	ListScratches(ctx context.Context) ([]*types.Scratch, error)
	RecordMatchScore(ctx context.Context, entry *types.MatchHistoryEntry) (bool, error)
	GetMatchHistory(ctx context.Context, scratchSlug string) ([]*types.MatchHistoryEntry, error)

	// Branch progress
	UpsertBranchProgress(ctx context.Context, progress *types.BranchProgress) error
	GetBestBranchProgress(ctx context.Context, functionName string) (*types.BranchProgress, error)
	GetAllBranchProgress(ctx context.Context, functionName string) ([]*types.BranchProgress, error)

	// Agent registry
	UpsertAgent(ctx context.Context, agent *types.Agent) error
	GetAgent(ctx context.Context, agentID string) (*types.Agent, error)
	ListAgents(ctx context.Context) ([]*types.Agent, error)

	// Audit log (append-only)
	LogAudit(ctx context.Context, entry *types.AuditEntry) error
	GetHistory(ctx context.Context, entityType, entityID string, limit, offset int) ([]*types.AuditEntry, error)

	// Meta key/value, for schema version and small singleton state.
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)

	// Transactions
	//
	// RunInTransaction executes fn inside a single BEGIN IMMEDIATE transaction.
	// If fn returns a non-nil error (or panics) the transaction rolls back;
	// otherwise it commits. Callers compose multi-step claim/release/commit
	// protocols from the Tx methods below rather than calling Store methods
	// from inside fn (those open their own transaction and would deadlock
	// against the held write lock).
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Path() string
	UnderlyingDB() *sql.DB
}

// Tx is the subset of Store operations valid inside RunInTransaction. It
// mirrors Store's method set but operates against the transaction's
// connection rather than opening a new one.
type Tx interface {
	UpsertFunction(ctx context.Context, fn *types.Function) error
	GetFunction(ctx context.Context, name string) (*types.Function, error)
	DeleteFunction(ctx context.Context, name string) error

	AddClaim(ctx context.Context, functionName, agentID string, ttl time.Duration) (*types.Claim, error)
	ReleaseClaim(ctx context.Context, functionName, agentID string) error
	GetActiveClaim(ctx context.Context, functionName string) (*types.Claim, error)

	LockSubdirectory(ctx context.Context, lock *types.SubdirectoryLock) (*types.SubdirectoryLock, error)
	UnlockSubdirectory(ctx context.Context, subdirectoryKey, agentID string) error
	GetLock(ctx context.Context, subdirectoryKey string) (*types.SubdirectoryLock, error)

	UpsertScratch(ctx context.Context, scratch *types.Scratch) error
	RecordMatchScore(ctx context.Context, entry *types.MatchHistoryEntry) (bool, error)

	UpsertBranchProgress(ctx context.Context, progress *types.BranchProgress) error

	LogAudit(ctx context.Context, entry *types.AuditEntry) error
}

// Config holds the parameters needed to open a Store.
type Config struct {
	Path string // sqlite database file path
}
