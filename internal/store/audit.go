package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// AuditLog records an admin or system action against an entity.
type AuditLog struct {
	ID          int64
	ActorUserID *int64
	Action      string
	Entity      string
	EntityID    *int64
	Meta        json.RawMessage
	CreatedAt   time.Time
}

// AppendAudit writes one audit row. Failures are the caller's to ignore;
// audit writes never gate the action they describe.
func (s *Store) AppendAudit(ctx context.Context, actorUserID *int64, action, entity string, entityID *int64, meta interface{}) error {
	var raw interface{}
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		raw = b
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO audit_logs (actor_user_id, action, entity, entity_id, meta)
VALUES ($1,$2,$3,$4,$5)
`, nullableInt64(actorUserID), action, entity, nullableInt64(entityID), raw)
	return err
}

// ListAuditLogs returns recent audit rows, newest first.
func (s *Store) ListAuditLogs(ctx context.Context, entity string, limit int) ([]AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query := `SELECT id, actor_user_id, action, entity, entity_id, meta, created_at FROM audit_logs`
	args := []interface{}{}
	if entity != "" {
		query += ` WHERE entity = $1`
		args = append(args, entity)
		query += ` ORDER BY created_at DESC LIMIT $2`
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		var l AuditLog
		var actor, entityID sql.NullInt64
		var meta []byte
		if err := rows.Scan(&l.ID, &actor, &l.Action, &l.Entity, &entityID, &meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.ActorUserID = int64Ptr(actor)
		l.EntityID = int64Ptr(entityID)
		if len(meta) > 0 {
			l.Meta = json.RawMessage(meta)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
