package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Notification is an in-app message row. Data holds event-specific fields
// (match ids, scores) as JSON.
type Notification struct {
	ID        int64
	UserID    int64
	Kind      string
	Title     string
	Body      string
	Data      json.RawMessage
	Status    string
	ReadAt    *time.Time
	CreatedAt time.Time
}

const notificationColumns = `id, user_id, kind, title, body, data, status, read_at, created_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (Notification, error) {
	var n Notification
	var body sql.NullString
	var data []byte
	var read sql.NullTime
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &body, &data, &n.Status, &read, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	n.Body = strOrEmpty(body)
	if len(data) > 0 {
		n.Data = json.RawMessage(data)
	}
	n.ReadAt = timePtr(read)
	return n, nil
}

// CreateNotification queues an in-app notification for a user.
func (s *Store) CreateNotification(ctx context.Context, userID int64, kind, title, body string, data interface{}) (Notification, error) {
	var raw interface{}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Notification{}, err
		}
		raw = b
	}
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO notifications (user_id, kind, title, body, data)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+notificationColumns+`
`, userID, kind, title, nullableString(body), raw)
	return scanNotification(row)
}

// ListNotifications returns a user's notifications newest first, capped at 100.
func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND status != 'read'`
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips one notification to read, scoped to its owner.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE notifications SET status = 'read', read_at = NOW() WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead flips every unread notification for a user and
// reports how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `UPDATE notifications SET status = 'read', read_at = NOW() WHERE user_id = $1 AND status != 'read'`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnreadNotifications returns the user's unread badge count.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND status != 'read'`, userID).Scan(&n)
	return n, err
}
