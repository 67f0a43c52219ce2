package query

import (
	"context"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

// StaleScratches returns scratches that have not been verified (compiled
// against the remote service) within the engine's StaleWindow, oldest
// first. A scratch with no VerifiedAt at all is judged against its
// CreatedAt, since it has never been checked at all.
func (e *Engine) StaleScratches(ctx context.Context) ([]*types.Scratch, error) {
	all, err := e.Store.ListScratches(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: stale scratches: %w", err)
	}

	window := e.StaleWindow
	if window <= 0 {
		window = DefaultStaleWindow
	}
	cutoff := time.Now().UTC().Add(-window)

	var stale []*types.Scratch
	for _, sc := range all {
		last := sc.CreatedAt
		if sc.VerifiedAt != nil {
			last = *sc.VerifiedAt
		}
		if last.Before(cutoff) {
			stale = append(stale, sc)
		}
	}
	return stale, nil
}
