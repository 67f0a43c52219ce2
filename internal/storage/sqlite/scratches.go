package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

func upsertScratch(ctx context.Context, q querier, scratch *types.Scratch) error {
	if scratch.CreatedAt.IsZero() {
		scratch.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO scratches (
			slug, instance, base_url, function_name, score, max_score,
			match_percent, claim_token, verified_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			instance = excluded.instance,
			base_url = excluded.base_url,
			function_name = excluded.function_name,
			score = excluded.score,
			max_score = excluded.max_score,
			match_percent = excluded.match_percent,
			claim_token = excluded.claim_token,
			verified_at = excluded.verified_at
	`,
		scratch.Slug, string(scratch.Instance), scratch.BaseURL, scratch.FunctionName,
		scratch.Score, scratch.MaxScore, scratch.MatchPercent, scratch.ClaimToken,
		nullTime(scratch.VerifiedAt), scratch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert scratch %s: %w", scratch.Slug, err)
	}
	return nil
}

func getScratch(ctx context.Context, q querier, slug string) (*types.Scratch, error) {
	row := q.QueryRowContext(ctx, `
		SELECT slug, instance, base_url, function_name, score, max_score,
			match_percent, claim_token, verified_at, created_at
		FROM scratches WHERE slug = ?
	`, slug)

	var sc types.Scratch
	var verifiedAt sql.NullTime
	err := row.Scan(
		&sc.Slug, &sc.Instance, &sc.BaseURL, &sc.FunctionName, &sc.Score, &sc.MaxScore,
		&sc.MatchPercent, &sc.ClaimToken, &verifiedAt, &sc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get scratch %s: %w", slug, err)
	}
	if verifiedAt.Valid {
		sc.VerifiedAt = &verifiedAt.Time
	}
	return &sc, nil
}

// ListScratches returns every recorded scratch, newest first. The audit &
// query layer uses this to find scratches not recompiled within a
// configurable window.
func (s *Store) ListScratches(ctx context.Context) ([]*types.Scratch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, instance, base_url, function_name, score, max_score,
			match_percent, claim_token, verified_at, created_at
		FROM scratches ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list scratches: %w", err)
	}
	defer rows.Close()

	var out []*types.Scratch
	for rows.Next() {
		var sc types.Scratch
		var verifiedAt sql.NullTime
		if err := rows.Scan(
			&sc.Slug, &sc.Instance, &sc.BaseURL, &sc.FunctionName, &sc.Score, &sc.MaxScore,
			&sc.MatchPercent, &sc.ClaimToken, &verifiedAt, &sc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan scratch: %w", err)
		}
		if verifiedAt.Valid {
			sc.VerifiedAt = &verifiedAt.Time
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

// recordMatchScore appends a match_history row unless the most recent entry
// for this scratch already carries the identical (score, max_score) pair —
// duplicate-suppression so a poll loop observing no change doesn't bloat the
// history table. Returns whether a new row was inserted.
func recordMatchScore(ctx context.Context, q querier, entry *types.MatchHistoryEntry) (bool, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var lastScore, lastMax sql.NullInt64
	row := q.QueryRowContext(ctx, `
		SELECT score, max_score FROM match_history
		WHERE scratch_slug = ? ORDER BY timestamp DESC LIMIT 1
	`, entry.ScratchSlug)
	err := row.Scan(&lastScore, &lastMax)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("sqlite: check last match score for %s: %w", entry.ScratchSlug, err)
	}
	if err == nil && lastScore.Valid && lastMax.Valid &&
		lastScore.Int64 == int64(entry.Score) && lastMax.Int64 == int64(entry.MaxScore) {
		return false, nil
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO match_history (scratch_slug, timestamp, score, max_score, match_percent)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ScratchSlug, entry.Timestamp, entry.Score, entry.MaxScore, entry.MatchPercent)
	if err != nil {
		return false, fmt.Errorf("sqlite: insert match history for %s: %w", entry.ScratchSlug, err)
	}
	return true, nil
}

func (s *Store) UpsertScratch(ctx context.Context, scratch *types.Scratch) error {
	return upsertScratch(ctx, s.db, scratch)
}

func (s *Store) GetScratch(ctx context.Context, slug string) (*types.Scratch, error) {
	return getScratch(ctx, s.db, slug)
}

func (s *Store) RecordMatchScore(ctx context.Context, entry *types.MatchHistoryEntry) (bool, error) {
	return recordMatchScore(ctx, s.db, entry)
}

func (t *txStore) UpsertScratch(ctx context.Context, scratch *types.Scratch) error {
	return upsertScratch(ctx, t.tx, scratch)
}

func (t *txStore) RecordMatchScore(ctx context.Context, entry *types.MatchHistoryEntry) (bool, error) {
	return recordMatchScore(ctx, t.tx, entry)
}

// GetMatchHistory returns all observations for one scratch, oldest first.
func (s *Store) GetMatchHistory(ctx context.Context, scratchSlug string) ([]*types.MatchHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scratch_slug, timestamp, score, max_score, match_percent
		FROM match_history WHERE scratch_slug = ? ORDER BY timestamp ASC
	`, scratchSlug)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get match history for %s: %w", scratchSlug, err)
	}
	defer rows.Close()

	var out []*types.MatchHistoryEntry
	for rows.Next() {
		var e types.MatchHistoryEntry
		if err := rows.Scan(&e.ScratchSlug, &e.Timestamp, &e.Score, &e.MaxScore, &e.MatchPercent); err != nil {
			return nil, fmt.Errorf("sqlite: scan match history: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
