package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

func upsertFunction(ctx context.Context, q querier, fn *types.Function) error {
	now := time.Now().UTC()
	if fn.CreatedAt.IsZero() {
		fn.CreatedAt = now
	}
	fn.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO functions (
			name, source_file, worktree_path, match_percent, status,
			local_scratch_slug, prod_scratch_slug, claimed_by_agent, claimed_at,
			branch, commit_hash, build_status, build_diagnosis, is_committed,
			pr_url, pr_number, pr_state, pr_review_state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source_file = excluded.source_file,
			worktree_path = excluded.worktree_path,
			match_percent = excluded.match_percent,
			status = excluded.status,
			local_scratch_slug = excluded.local_scratch_slug,
			prod_scratch_slug = excluded.prod_scratch_slug,
			claimed_by_agent = excluded.claimed_by_agent,
			claimed_at = excluded.claimed_at,
			branch = excluded.branch,
			commit_hash = excluded.commit_hash,
			build_status = excluded.build_status,
			build_diagnosis = excluded.build_diagnosis,
			is_committed = excluded.is_committed,
			pr_url = excluded.pr_url,
			pr_number = excluded.pr_number,
			pr_state = excluded.pr_state,
			pr_review_state = excluded.pr_review_state,
			updated_at = excluded.updated_at
	`,
		fn.Name, fn.SourceFile, fn.WorktreePath, fn.MatchPercent, string(fn.Status),
		fn.LocalScratchSlug, fn.ProdScratchSlug, fn.ClaimedByAgent, nullTime(fn.ClaimedAt),
		fn.Branch, fn.CommitHash, string(fn.BuildStatus), fn.BuildDiagnosis, fn.IsCommitted,
		fn.PRURL, fn.PRNumber, string(fn.PRState), fn.PRReviewState, fn.CreatedAt, fn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert function %s: %w", fn.Name, err)
	}
	return nil
}

func scanFunction(row rowScanner) (*types.Function, error) {
	var fn types.Function
	var claimedAt sql.NullTime
	err := row.Scan(
		&fn.Name, &fn.SourceFile, &fn.WorktreePath, &fn.MatchPercent, &fn.Status,
		&fn.LocalScratchSlug, &fn.ProdScratchSlug, &fn.ClaimedByAgent, &claimedAt,
		&fn.Branch, &fn.CommitHash, &fn.BuildStatus, &fn.BuildDiagnosis, &fn.IsCommitted,
		&fn.PRURL, &fn.PRNumber, &fn.PRState, &fn.PRReviewState, &fn.CreatedAt, &fn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if claimedAt.Valid {
		fn.ClaimedAt = &claimedAt.Time
	}
	return &fn, nil
}

const functionColumns = `
	name, source_file, worktree_path, match_percent, status,
	local_scratch_slug, prod_scratch_slug, claimed_by_agent, claimed_at,
	branch, commit_hash, build_status, build_diagnosis, is_committed,
	pr_url, pr_number, pr_state, pr_review_state, created_at, updated_at
`

func getFunction(ctx context.Context, q querier, name string) (*types.Function, error) {
	row := q.QueryRowContext(ctx, `SELECT `+functionColumns+` FROM functions WHERE name = ?`, name)
	fn, err := scanFunction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get function %s: %w", name, err)
	}
	return fn, nil
}

func deleteFunction(ctx context.Context, q querier, name string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM functions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("sqlite: delete function %s: %w", name, err)
	}
	return nil
}

func (s *Store) UpsertFunction(ctx context.Context, fn *types.Function) error {
	return upsertFunction(ctx, s.db, fn)
}

func (s *Store) GetFunction(ctx context.Context, name string) (*types.Function, error) {
	return getFunction(ctx, s.db, name)
}

func (s *Store) DeleteFunction(ctx context.Context, name string) error {
	return deleteFunction(ctx, s.db, name)
}

func (t *txStore) UpsertFunction(ctx context.Context, fn *types.Function) error {
	return upsertFunction(ctx, t.tx, fn)
}

func (t *txStore) GetFunction(ctx context.Context, name string) (*types.Function, error) {
	return getFunction(ctx, t.tx, name)
}

func (t *txStore) DeleteFunction(ctx context.Context, name string) error {
	return deleteFunction(ctx, t.tx, name)
}

// GetFunctionsByStatus applies filter.Status (if set), filter.WorktreePath
// (if set), filter.SortBy/Descending, and filter.Limit.
func (s *Store) GetFunctionsByStatus(ctx context.Context, filter types.FunctionFilter) ([]*types.Function, error) {
	query := `SELECT ` + functionColumns + ` FROM functions WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.WorktreePath != "" {
		query += ` AND worktree_path = ?`
		args = append(args, filter.WorktreePath)
	}

	sortCol := "updated_at"
	switch filter.SortBy {
	case "match_percent":
		sortCol = "match_percent"
	case "name":
		sortCol = "name"
	case "updated_at", "":
		sortCol = "updated_at"
	}
	dir := "ASC"
	if filter.Descending {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortCol, dir)

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get functions by status: %w", err)
	}
	defer rows.Close()

	var out []*types.Function
	for rows.Next() {
		fn, err := scanFunction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan function: %w", err)
		}
		out = append(out, fn)
	}
	return out, rows.Err()
}

// GetUncommittedMatches returns functions whose match_percent reaches the
// matched threshold but which have not yet been committed, the worklist
// for `coordctl commit`.
func (s *Store) GetUncommittedMatches(ctx context.Context, worktreePath string) ([]*types.Function, error) {
	query := `SELECT ` + functionColumns + ` FROM functions
		WHERE match_percent >= 95 AND is_committed = 0`
	var args []interface{}
	if worktreePath != "" {
		query += ` AND worktree_path = ?`
		args = append(args, worktreePath)
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get uncommitted matches: %w", err)
	}
	defer rows.Close()

	var out []*types.Function
	for rows.Next() {
		fn, err := scanFunction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan function: %w", err)
		}
		out = append(out, fn)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// likeEscape escapes SQL LIKE metacharacters in a user-supplied fragment.
func likeEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}
