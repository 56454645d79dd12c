package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Match pairs one lost item with one found item. The (lost, found) pair is
// unique; score is stored as a 0–100 percentage.
type Match struct {
	ID          int64
	LostItemID  int64
	FoundItemID int64
	Score       float64
	Status      string
	CreatedAt   time.Time
}

const matchColumns = `id, lost_item_id, found_item_id, score, status, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (Match, error) {
	var m Match
	err := row.Scan(&m.ID, &m.LostItemID, &m.FoundItemID, &m.Score, &m.Status, &m.CreatedAt)
	return m, err
}

// UpsertMatchScore records a score for a pair, creating a pending match or
// raising the stored score when the new one is higher. Confirmed and
// dismissed matches are left untouched. The score now stored for the pair
// is returned; concurrent passes therefore converge to the maximum.
func (s *Store) UpsertMatchScore(ctx context.Context, lostItemID, foundItemID int64, score float64) (float64, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO matches (lost_item_id, found_item_id, score)
VALUES ($1,$2,$3)
ON CONFLICT (lost_item_id, found_item_id) DO UPDATE SET
  score = GREATEST(matches.score, EXCLUDED.score)
WHERE matches.status = 'pending' OR matches.status IS NULL
RETURNING score
`, lostItemID, foundItemID, score)
	var stored float64
	err := row.Scan(&stored)
	if err == sql.ErrNoRows {
		// conflict on a confirmed/dismissed match: report its stored score
		existing, gerr := s.GetMatchByPair(ctx, lostItemID, foundItemID)
		if gerr != nil {
			return 0, gerr
		}
		return existing.Score, nil
	}
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// MatchesForItems returns every match touching the given items, keyed by
// both the lost and the found side so either item resolves its matches.
func (s *Store) MatchesForItems(ctx context.Context, itemIDs []int64) (map[int64][]Match, error) {
	out := make(map[int64][]Match, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE lost_item_id = ANY($1) OR found_item_id = ANY($1)`, pq.Array(itemIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out[m.LostItemID] = append(out[m.LostItemID], m)
		out[m.FoundItemID] = append(out[m.FoundItemID], m)
	}
	return out, rows.Err()
}

// GetMatchByPair fetches the match for a (lost, found) pair.
func (s *Store) GetMatchByPair(ctx context.Context, lostItemID, foundItemID int64) (Match, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE lost_item_id = $1 AND found_item_id = $2`, lostItemID, foundItemID)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return Match{}, ErrNotFound
	}
	return m, err
}

// GetMatch fetches one match by id.
func (s *Store) GetMatch(ctx context.Context, id int64) (Match, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return Match{}, ErrNotFound
	}
	return m, err
}

// InsertMatch creates a pending match with an explicit score.
func (s *Store) InsertMatch(ctx context.Context, lostItemID, foundItemID int64, score float64) (Match, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO matches (lost_item_id, found_item_id, score)
VALUES ($1,$2,$3)
RETURNING `+matchColumns+`
`, lostItemID, foundItemID, score)
	return scanMatch(row)
}

// SetMatchScore overwrites the stored score (manual admin path).
func (s *Store) SetMatchScore(ctx context.Context, id int64, score float64) (Match, error) {
	row := s.DB.QueryRowContext(ctx, `UPDATE matches SET score = $1 WHERE id = $2 RETURNING `+matchColumns, score, id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return Match{}, ErrNotFound
	}
	return m, err
}

// UpdateMatchStatus transitions a match (confirm/dismiss) and returns it.
func (s *Store) UpdateMatchStatus(ctx context.Context, id int64, status string) (Match, error) {
	row := s.DB.QueryRowContext(ctx, `UPDATE matches SET status = $1 WHERE id = $2 RETURNING `+matchColumns, status, id)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return Match{}, ErrNotFound
	}
	return m, err
}

// MatchFilter narrows ListMatches.
type MatchFilter struct {
	LostItemID  *int64
	FoundItemID *int64
	Status      string
	Limit       int
}

// ListMatches returns matches newest first.
func (s *Store) ListMatches(ctx context.Context, f MatchFilter) ([]Match, error) {
	conds := []string{"TRUE"}
	args := []interface{}{}
	if f.LostItemID != nil {
		args = append(args, *f.LostItemID)
		conds = append(conds, fmt.Sprintf("lost_item_id = $%d", len(args)))
	}
	if f.FoundItemID != nil {
		args = append(args, *f.FoundItemID)
		conds = append(conds, fmt.Sprintf("found_item_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > 500 {
		limit = 500
	}
	args = append(args, limit)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
