package store

import (
	"context"
	"database/sql"
	"time"
)

// SocialPost is a queued announcement for an external platform. The
// dispatcher drains queued rows and marks them sent or failed.
type SocialPost struct {
	ID         int64
	ItemID     int64
	Platform   string
	Message    string
	Status     string
	ExternalID string
	Error      string
	CreatedAt  time.Time
	PostedAt   *time.Time
}

const socialPostColumns = `id, item_id, platform, message, status, external_id, error, created_at, posted_at`

func scanSocialPost(row interface{ Scan(...interface{}) error }) (SocialPost, error) {
	var p SocialPost
	var ext, perr sql.NullString
	var posted sql.NullTime
	err := row.Scan(&p.ID, &p.ItemID, &p.Platform, &p.Message, &p.Status, &ext, &perr, &p.CreatedAt, &posted)
	if err != nil {
		return SocialPost{}, err
	}
	p.ExternalID = strOrEmpty(ext)
	p.Error = strOrEmpty(perr)
	p.PostedAt = timePtr(posted)
	return p, nil
}

// QueueSocialPost enqueues an announcement for later dispatch.
func (s *Store) QueueSocialPost(ctx context.Context, itemID int64, platform, message string) (SocialPost, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO social_posts (item_id, platform, message)
VALUES ($1,$2,$3)
RETURNING `+socialPostColumns+`
`, itemID, platform, message)
	return scanSocialPost(row)
}

// QueuedSocialPosts returns the oldest pending posts up to limit.
func (s *Store) QueuedSocialPosts(ctx context.Context, limit int) ([]SocialPost, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+socialPostColumns+` FROM social_posts
WHERE status = 'queued'
ORDER BY created_at ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SocialPost
	for rows.Next() {
		p, err := scanSocialPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSocialPostSent records a successful publish.
func (s *Store) MarkSocialPostSent(ctx context.Context, id int64, externalID string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE social_posts SET status = 'sent', external_id = $1, error = NULL, posted_at = NOW()
WHERE id = $2
`, nullableString(externalID), id)
	return err
}

// MarkSocialPostFailed records a failed publish with its error text.
func (s *Store) MarkSocialPostFailed(ctx context.Context, id int64, reason string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE social_posts SET status = 'failed', error = $1
WHERE id = $2
`, nullableString(reason), id)
	return err
}

// ListSocialPosts returns posts newest first, optionally filtered by status.
func (s *Store) ListSocialPosts(ctx context.Context, status string, limit int) ([]SocialPost, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + socialPostColumns + ` FROM social_posts`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
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
	var out []SocialPost
	for rows.Next() {
		p, err := scanSocialPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
