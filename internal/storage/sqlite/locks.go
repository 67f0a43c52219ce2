package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
	"github.com/doldecomp/agentcoord/internal/types"
)

// lockSubdirectory acquires or extends a subdirectory lock. Unlike claims,
// the same agent re-locking its own held subdirectory succeeds and extends
// lock_expires_at — the common case for a long-running agent that keeps
// committing to one subtree. Every re-lock rewrites the whole row from lock,
// so pending_commits_count and last_commit_at take lock's values too. A different agent attempting
// to lock an unexpired lock held by someone else is a precondition error.
func lockSubdirectory(ctx context.Context, q querier, lock *types.SubdirectoryLock) (*types.SubdirectoryLock, error) {
	now := time.Now().UTC()

	existing, err := getLock(ctx, q, lock.SubdirectoryKey)
	if err != nil {
		return nil, err
	}

	if existing != nil && !existing.Expired(now) && existing.LockedByAgent != lock.LockedByAgent {
		return nil, errs.Precondition("subdirectory %s is locked by %s until %s", lock.SubdirectoryKey, existing.LockedByAgent, existing.LockExpiresAt.Format(time.RFC3339))
	}

	lock.LockedAt = now
	if lock.LockExpiresAt.IsZero() {
		return nil, errs.Integrity("lock_subdirectory: LockExpiresAt must be set")
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO subdirectory_locks (
			subdirectory_key, worktree_path, branch_name, locked_by_agent,
			locked_at, lock_expires_at, pending_commits_count, last_commit_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subdirectory_key) DO UPDATE SET
			worktree_path = excluded.worktree_path,
			branch_name = excluded.branch_name,
			locked_by_agent = excluded.locked_by_agent,
			locked_at = excluded.locked_at,
			lock_expires_at = excluded.lock_expires_at,
			pending_commits_count = excluded.pending_commits_count,
			last_commit_at = excluded.last_commit_at
	`,
		lock.SubdirectoryKey, lock.WorktreePath, lock.BranchName, lock.LockedByAgent,
		lock.LockedAt, lock.LockExpiresAt, lock.PendingCommitsCount, nullTime(lock.LastCommitAt),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lock subdirectory %s: %w", lock.SubdirectoryKey, err)
	}

	oldHolder := ""
	if existing != nil {
		oldHolder = existing.LockedByAgent
	}
	if err := logAudit(ctx, q, &types.AuditEntry{
		EntityType: "subdirectory_lock",
		EntityID:   lock.SubdirectoryKey,
		Action:     types.ActionLocked,
		OldValue:   oldHolder,
		NewValue:   lock.LockedByAgent,
		AgentID:    lock.LockedByAgent,
	}); err != nil {
		return nil, fmt.Errorf("sqlite: logging lock audit for %s: %w", lock.SubdirectoryKey, err)
	}

	return lock, nil
}

func unlockSubdirectory(ctx context.Context, q querier, subdirectoryKey, agentID string) error {
	res, err := q.ExecContext(ctx, `
		DELETE FROM subdirectory_locks WHERE subdirectory_key = ? AND locked_by_agent = ?
	`, subdirectoryKey, agentID)
	if err != nil {
		return fmt.Errorf("sqlite: unlock subdirectory %s: %w", subdirectoryKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: unlock rows affected: %w", err)
	}
	if n == 0 {
		holder, err := getLock(ctx, q, subdirectoryKey)
		if err != nil {
			return err
		}
		if holder != nil {
			return errs.Ownership(nil, "subdirectory %s is locked by %s, not %s", subdirectoryKey, holder.LockedByAgent, agentID)
		}
		return errs.Precondition("subdirectory %s has no active lock", subdirectoryKey)
	}

	if err := logAudit(ctx, q, &types.AuditEntry{
		EntityType: "subdirectory_lock",
		EntityID:   subdirectoryKey,
		Action:     types.ActionUnlocked,
		OldValue:   agentID,
		AgentID:    agentID,
	}); err != nil {
		return fmt.Errorf("sqlite: logging unlock audit for %s: %w", subdirectoryKey, err)
	}
	return nil
}

func getLock(ctx context.Context, q querier, subdirectoryKey string) (*types.SubdirectoryLock, error) {
	row := q.QueryRowContext(ctx, `
		SELECT subdirectory_key, worktree_path, branch_name, locked_by_agent,
			locked_at, lock_expires_at, pending_commits_count, last_commit_at
		FROM subdirectory_locks WHERE subdirectory_key = ?
	`, subdirectoryKey)

	var l types.SubdirectoryLock
	var lastCommit sql.NullTime
	err := row.Scan(
		&l.SubdirectoryKey, &l.WorktreePath, &l.BranchName, &l.LockedByAgent,
		&l.LockedAt, &l.LockExpiresAt, &l.PendingCommitsCount, &lastCommit,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get lock %s: %w", subdirectoryKey, err)
	}
	if lastCommit.Valid {
		l.LastCommitAt = &lastCommit.Time
	}
	return &l, nil
}

func (s *Store) LockSubdirectory(ctx context.Context, lock *types.SubdirectoryLock) (*types.SubdirectoryLock, error) {
	return lockSubdirectory(ctx, s.db, lock)
}

func (s *Store) UnlockSubdirectory(ctx context.Context, subdirectoryKey, agentID string) error {
	return unlockSubdirectory(ctx, s.db, subdirectoryKey, agentID)
}

func (s *Store) GetLock(ctx context.Context, subdirectoryKey string) (*types.SubdirectoryLock, error) {
	return getLock(ctx, s.db, subdirectoryKey)
}

func (t *txStore) LockSubdirectory(ctx context.Context, lock *types.SubdirectoryLock) (*types.SubdirectoryLock, error) {
	return lockSubdirectory(ctx, t.tx, lock)
}

func (t *txStore) UnlockSubdirectory(ctx context.Context, subdirectoryKey, agentID string) error {
	return unlockSubdirectory(ctx, t.tx, subdirectoryKey, agentID)
}

func (t *txStore) GetLock(ctx context.Context, subdirectoryKey string) (*types.SubdirectoryLock, error) {
	return getLock(ctx, t.tx, subdirectoryKey)
}

// ListLocks returns every subdirectory lock row, regardless of expiry,
// ordered by subdirectory key. The audit & query layer distinguishes
// expired-but-present locks from no lock at all.
func (s *Store) ListLocks(ctx context.Context) ([]*types.SubdirectoryLock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subdirectory_key, worktree_path, branch_name, locked_by_agent,
			locked_at, lock_expires_at, pending_commits_count, last_commit_at
		FROM subdirectory_locks ORDER BY subdirectory_key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list locks: %w", err)
	}
	defer rows.Close()

	var out []*types.SubdirectoryLock
	for rows.Next() {
		var l types.SubdirectoryLock
		var lastCommit sql.NullTime
		if err := rows.Scan(
			&l.SubdirectoryKey, &l.WorktreePath, &l.BranchName, &l.LockedByAgent,
			&l.LockedAt, &l.LockExpiresAt, &l.PendingCommitsCount, &lastCommit,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan lock: %w", err)
		}
		if lastCommit.Valid {
			l.LastCommitAt = &lastCommit.Time
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// ExpireLocks deletes locks past expiry, returning the count removed.
func (s *Store) ExpireLocks(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subdirectory_locks WHERE lock_expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("sqlite: expire locks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: expire locks rows affected: %w", err)
	}
	return int(n), nil
}
