package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Item is a lost or found report row.
type Item struct {
	ID             int64
	ReporterUserID *int64
	Type           string
	Title          string
	Description    string
	Location       string
	OccurredOn     *time.Time
	ReportedAt     time.Time
	Status         string
	PhotoURL       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const itemColumns = `id, reporter_user_id, type, title, description, location, occurred_on, reported_at, status, photo_url, created_at, updated_at`

func scanItem(row interface{ Scan(...interface{}) error }) (Item, error) {
	var it Item
	var reporter sql.NullInt64
	var desc, loc, photo sql.NullString
	var occurred sql.NullTime
	err := row.Scan(&it.ID, &reporter, &it.Type, &it.Title, &desc, &loc, &occurred, &it.ReportedAt, &it.Status, &photo, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	it.ReporterUserID = int64Ptr(reporter)
	it.Description = strOrEmpty(desc)
	it.Location = strOrEmpty(loc)
	it.PhotoURL = strOrEmpty(photo)
	it.OccurredOn = timePtr(occurred)
	return it, nil
}

// CreateItem inserts a new report and returns the stored row.
func (s *Store) CreateItem(ctx context.Context, it Item) (Item, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO items (reporter_user_id, type, title, description, location, occurred_on, photo_url)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+itemColumns+`
`, nullableInt64(it.ReporterUserID), it.Type, it.Title, nullableString(it.Description), nullableString(it.Location), nullableTime(it.OccurredOn), nullableString(it.PhotoURL))
	return scanItem(row)
}

// GetItem fetches one item by id.
func (s *Store) GetItem(ctx context.Context, id int64) (Item, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return Item{}, ErrNotFound
	}
	return it, err
}

// ItemFilter narrows ListItems. Query searches title, description,
// location and the reporter's email and name; Reporter searches the
// reporter fields only. Date bounds prefer occurred_on and fall back to
// the reported_at date when it is unset.
type ItemFilter struct {
	Type           string
	ReporterUserID *int64
	IDs            []int64 // when non-empty, restrict to these ids
	Query          string
	Reporter       string
	DateFrom       *time.Time
	DateTo         *time.Time
	Limit          int
}

// ListItems returns items newest-reported first.
func (s *Store) ListItems(ctx context.Context, f ItemFilter) ([]Item, error) {
	conds := []string{"TRUE"}
	args := []interface{}{}
	if f.Type == ItemTypeLost || f.Type == ItemTypeFound {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.ReporterUserID != nil {
		args = append(args, *f.ReporterUserID)
		conds = append(conds, fmt.Sprintf("reporter_user_id = $%d", len(args)))
	}
	if len(f.IDs) > 0 {
		args = append(args, pq.Array(f.IDs))
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d
   OR EXISTS (SELECT 1 FROM users u WHERE u.id = items.reporter_user_id
     AND (u.email ILIKE $%d OR u.first_name ILIKE $%d OR u.last_name ILIKE $%d)))`, n, n, n, n, n, n))
	}
	if r := strings.TrimSpace(f.Reporter); r != "" {
		args = append(args, "%"+r+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`EXISTS (SELECT 1 FROM users u WHERE u.id = items.reporter_user_id
   AND (u.email ILIKE $%d OR u.first_name ILIKE $%d OR u.last_name ILIKE $%d))`, n, n, n))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		n := len(args)
		conds = append(conds, fmt.Sprintf(`((occurred_on IS NOT NULL AND occurred_on >= $%d)
   OR (occurred_on IS NULL AND reported_at >= $%d))`, n, n))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo, f.DateTo.AddDate(0, 0, 1))
		conds = append(conds, fmt.Sprintf(`((occurred_on IS NOT NULL AND occurred_on <= $%d)
   OR (occurred_on IS NULL AND reported_at < $%d))`, len(args)-1, len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 8
	}
	args = append(args, limit)
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(` ORDER BY reported_at DESC LIMIT $%d`, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CandidateItems returns the bounded matching pool: opposite-type items
// still in play (open or matched), optionally narrowed by a loose location
// substring and a ±30 day window around a reference date, newest reported
// first. Closed and claimed items are never candidates.
func (s *Store) CandidateItems(ctx context.Context, itemType, location string, around *time.Time, limit int) ([]Item, error) {
	conds := []string{"type = $1", "status IN ('open','matched')"}
	args := []interface{}{itemType}
	if strings.TrimSpace(location) != "" {
		args = append(args, "%"+strings.TrimSpace(location)+"%")
		conds = append(conds, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
	if around != nil {
		start := around.AddDate(0, 0, -30)
		end := around.AddDate(0, 0, 30)
		args = append(args, start, end, end.AddDate(0, 0, 1))
		conds = append(conds, fmt.Sprintf(`((occurred_on IS NOT NULL AND occurred_on BETWEEN $%d AND $%d)
   OR (occurred_on IS NULL AND reported_at >= $%d AND reported_at < $%d))`, len(args)-2, len(args)-1, len(args)-2, len(args)))
	}
	if limit <= 0 {
		limit = 400
	}
	args = append(args, limit)
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(` ORDER BY reported_at DESC LIMIT $%d`, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ItemPatch carries optional admin edits. Nil fields are left unchanged.
type ItemPatch struct {
	Title       *string
	Description *string
	Location    *string
	OccurredOn  *time.Time
	Status      *string
}

// UpdateItem applies a partial edit and returns the updated row.
func (s *Store) UpdateItem(ctx context.Context, id int64, p ItemPatch) (Item, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	if p.Title != nil {
		args = append(args, *p.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if p.Description != nil {
		args = append(args, nullableString(*p.Description))
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if p.Location != nil {
		args = append(args, nullableString(*p.Location))
		sets = append(sets, fmt.Sprintf("location = $%d", len(args)))
	}
	if p.OccurredOn != nil {
		args = append(args, *p.OccurredOn)
		sets = append(sets, fmt.Sprintf("occurred_on = $%d", len(args)))
	}
	if p.Status != nil {
		args = append(args, *p.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, id)
	row := s.DB.QueryRowContext(ctx, `UPDATE items SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args))+itemColumns, args...)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return Item{}, ErrNotFound
	}
	return it, err
}

// UpdateItemStatus sets just the lifecycle status.
func (s *Store) UpdateItemStatus(ctx context.Context, id int64, status string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE items SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
