package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

// UpsertAgent records agentID as seen-now, the heartbeat write every CLI
// invocation makes so `coordctl state agents` reflects who is active.
func (s *Store) UpsertAgent(ctx context.Context, agent *types.Agent) error {
	if agent.LastSeenAt.IsZero() {
		agent.LastSeenAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, worktree_path, branch_name, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			worktree_path = excluded.worktree_path,
			branch_name = excluded.branch_name,
			last_seen_at = excluded.last_seen_at
	`, agent.AgentID, agent.WorktreePath, agent.BranchName, agent.LastSeenAt)
	if err != nil {
		return fmt.Errorf("sqlite: upsert agent %s: %w", agent.AgentID, err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, agentID string) (*types.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, worktree_path, branch_name, last_seen_at FROM agents WHERE agent_id = ?
	`, agentID)

	var a types.Agent
	if err := row.Scan(&a.AgentID, &a.WorktreePath, &a.BranchName, &a.LastSeenAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get agent %s: %w", agentID, err)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, worktree_path, branch_name, last_seen_at FROM agents
		ORDER BY last_seen_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list agents: %w", err)
	}
	defer rows.Close()

	var out []*types.Agent
	for rows.Next() {
		var a types.Agent
		if err := rows.Scan(&a.AgentID, &a.WorktreePath, &a.BranchName, &a.LastSeenAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan agent: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
