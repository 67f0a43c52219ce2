package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

func upsertBranchProgress(ctx context.Context, q querier, p *types.BranchProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO branch_progress (
			function_name, branch, match_percent, scratch_slug, is_committed,
			commit_hash, agent_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(function_name, branch) DO UPDATE SET
			match_percent = excluded.match_percent,
			scratch_slug = excluded.scratch_slug,
			is_committed = excluded.is_committed,
			commit_hash = excluded.commit_hash,
			agent_id = excluded.agent_id,
			updated_at = excluded.updated_at
	`,
		p.FunctionName, p.Branch, p.MatchPercent, p.ScratchSlug, p.IsCommitted,
		p.CommitHash, p.AgentID, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert branch progress %s/%s: %w", p.FunctionName, p.Branch, err)
	}
	return nil
}

func (s *Store) UpsertBranchProgress(ctx context.Context, p *types.BranchProgress) error {
	return upsertBranchProgress(ctx, s.db, p)
}

func (t *txStore) UpsertBranchProgress(ctx context.Context, p *types.BranchProgress) error {
	return upsertBranchProgress(ctx, t.tx, p)
}

// GetBestBranchProgress returns the branch with the highest match_percent
// for functionName, preferring the one already committed on ties.
func (s *Store) GetBestBranchProgress(ctx context.Context, functionName string) (*types.BranchProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT function_name, branch, match_percent, scratch_slug, is_committed,
			commit_hash, agent_id, updated_at
		FROM branch_progress WHERE function_name = ?
		ORDER BY match_percent DESC, is_committed DESC, updated_at DESC LIMIT 1
	`, functionName)

	var p types.BranchProgress
	err := row.Scan(&p.FunctionName, &p.Branch, &p.MatchPercent, &p.ScratchSlug,
		&p.IsCommitted, &p.CommitHash, &p.AgentID, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get best branch progress for %s: %w", functionName, err)
	}
	return &p, nil
}

// GetAllBranchProgress lists every branch's recorded progress for a function.
func (s *Store) GetAllBranchProgress(ctx context.Context, functionName string) ([]*types.BranchProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT function_name, branch, match_percent, scratch_slug, is_committed,
			commit_hash, agent_id, updated_at
		FROM branch_progress WHERE function_name = ?
		ORDER BY match_percent DESC
	`, functionName)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get all branch progress for %s: %w", functionName, err)
	}
	defer rows.Close()

	var out []*types.BranchProgress
	for rows.Next() {
		var p types.BranchProgress
		if err := rows.Scan(&p.FunctionName, &p.Branch, &p.MatchPercent, &p.ScratchSlug,
			&p.IsCommitted, &p.CommitHash, &p.AgentID, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan branch progress: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
