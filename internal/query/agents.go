package query

import (
	"context"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

// AgentSummary is the per-agent projection: active-claim count,
// subdirectories held, and last-seen timestamp.
type AgentSummary struct {
	AgentID            string    `json:"agent_id"`
	ActiveClaims       int       `json:"active_claims"`
	SubdirectoriesHeld []string  `json:"subdirectories_held,omitempty"`
	LastSeenAt         time.Time `json:"last_seen_at"`
}

// AgentSummaries reports one AgentSummary per registered agent.
func (e *Engine) AgentSummaries(ctx context.Context) ([]AgentSummary, error) {
	agents, err := e.Store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: agent summaries: %w", err)
	}
	locks, err := e.Store.ListLocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: agent summaries: %w", err)
	}

	heldBy := make(map[string][]string)
	now := time.Now().UTC()
	for _, l := range locks {
		if l.Expired(now) {
			continue
		}
		heldBy[l.LockedByAgent] = append(heldBy[l.LockedByAgent], l.SubdirectoryKey)
	}

	out := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		claims, err := e.Store.GetActiveClaims(ctx, a.AgentID)
		if err != nil {
			return nil, fmt.Errorf("query: active claims for %s: %w", a.AgentID, err)
		}
		out = append(out, AgentSummary{
			AgentID:            a.AgentID,
			ActiveClaims:       len(claims),
			SubdirectoriesHeld: heldBy[a.AgentID],
			LastSeenAt:         a.LastSeenAt,
		})
	}
	return out, nil
}

// SubdirectoryStatus returns every lock row: holder, expiry, branch, and
// pending-commits count.
func (e *Engine) SubdirectoryStatus(ctx context.Context) ([]*types.SubdirectoryLock, error) {
	locks, err := e.Store.ListLocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: subdirectory status: %w", err)
	}
	return locks, nil
}
