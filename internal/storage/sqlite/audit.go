package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/doldecomp/agentcoord/internal/types"
)

func logAudit(ctx context.Context, q querier, entry *types.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, entity_type, entity_id, action, old_value, new_value, agent_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Timestamp, entry.EntityType, entry.EntityID, string(entry.Action),
		entry.OldValue, entry.NewValue, entry.AgentID, entry.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: log audit for %s/%s: %w", entry.EntityType, entry.EntityID, err)
	}
	return nil
}

func (s *Store) LogAudit(ctx context.Context, entry *types.AuditEntry) error {
	return logAudit(ctx, s.db, entry)
}

func (t *txStore) LogAudit(ctx context.Context, entry *types.AuditEntry) error {
	return logAudit(ctx, t.tx, entry)
}

// GetHistory returns up to limit audit entries, most recent first, offset
// entries into the result for pagination. entityType/entityID filter when
// non-empty; either or both may be left blank to span all entities. limit
// <= 0 means unbounded.
func (s *Store) GetHistory(ctx context.Context, entityType, entityID string, limit, offset int) ([]*types.AuditEntry, error) {
	query := `
		SELECT id, timestamp, entity_type, entity_id, action, old_value, new_value, agent_id, metadata
		FROM audit_log WHERE 1=1
	`
	var args []interface{}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	if entityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, entityID)
	}
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	} else if offset > 0 {
		query += ` LIMIT -1`
	}
	if offset > 0 {
		query += ` OFFSET ?`
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get history for %s/%s: %w", entityType, entityID, err)
	}
	defer rows.Close()

	var out []*types.AuditEntry
	for rows.Next() {
		var e types.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EntityType, &e.EntityID, &e.Action,
			&e.OldValue, &e.NewValue, &e.AgentID, &e.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
