package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Claim is an ownership claim on a found item. One claimant may hold at
// most one claim per item. AdminVerifierID records the admin who last
// decided the claim; ApprovedAt is stamped on approval.
type Claim struct {
	ID              int64
	ItemID          int64
	ClaimantUserID  int64
	Status          string
	Message         string
	AdminNotes      string
	AdminVerifierID *int64
	ApprovedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const claimColumns = `id, item_id, claimant_user_id, status, message, admin_notes, admin_verifier_id, approved_at, created_at, updated_at`

func scanClaim(row interface{ Scan(...interface{}) error }) (Claim, error) {
	var c Claim
	var msg, notes sql.NullString
	var verifier sql.NullInt64
	var approved sql.NullTime
	err := row.Scan(&c.ID, &c.ItemID, &c.ClaimantUserID, &c.Status, &msg, &notes, &verifier, &approved, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Claim{}, err
	}
	c.Message = strOrEmpty(msg)
	c.AdminNotes = strOrEmpty(notes)
	c.AdminVerifierID = int64Ptr(verifier)
	c.ApprovedAt = timePtr(approved)
	return c, nil
}

// CreateClaim opens a claim in the requested state.
func (s *Store) CreateClaim(ctx context.Context, itemID, claimantUserID int64, message string) (Claim, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO claims (item_id, claimant_user_id, message)
VALUES ($1,$2,$3)
RETURNING `+claimColumns+`
`, itemID, claimantUserID, nullableString(message))
	return scanClaim(row)
}

// GetClaim fetches one claim by id.
func (s *Store) GetClaim(ctx context.Context, id int64) (Claim, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return Claim{}, ErrNotFound
	}
	return c, err
}

// GetClaimByItemAndUser fetches the claimant's claim on an item, if any.
func (s *Store) GetClaimByItemAndUser(ctx context.Context, itemID, claimantUserID int64) (Claim, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE item_id = $1 AND claimant_user_id = $2`, itemID, claimantUserID)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return Claim{}, ErrNotFound
	}
	return c, err
}

// UpdateClaimStatus transitions a claim, recording the deciding admin and
// optionally attaching notes. Approval stamps approved_at.
func (s *Store) UpdateClaimStatus(ctx context.Context, id int64, status string, verifierUserID *int64, adminNotes *string) (Claim, error) {
	sets := []string{"status = $1", "updated_at = NOW()"}
	args := []interface{}{status}
	if verifierUserID != nil {
		args = append(args, *verifierUserID)
		sets = append(sets, fmt.Sprintf("admin_verifier_id = $%d", len(args)))
	}
	if adminNotes != nil {
		args = append(args, nullableString(*adminNotes))
		sets = append(sets, fmt.Sprintf("admin_notes = $%d", len(args)))
	}
	if status == ClaimStatusApproved {
		sets = append(sets, "approved_at = NOW()")
	}
	args = append(args, id)
	row := s.DB.QueryRowContext(ctx, `UPDATE claims SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args))+claimColumns, args...)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return Claim{}, ErrNotFound
	}
	return c, err
}

// ClaimsForItems returns every claim touching the given items, keyed by
// item id, for bulk status derivation.
func (s *Store) ClaimsForItems(ctx context.Context, itemIDs []int64) (map[int64][]Claim, error) {
	out := make(map[int64][]Claim, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE item_id = ANY($1)`, pq.Array(itemIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out[c.ItemID] = append(out[c.ItemID], c)
	}
	return out, rows.Err()
}

// ClaimFilter narrows ListClaims.
type ClaimFilter struct {
	ItemID         *int64
	ClaimantUserID *int64
	Status         string
	Limit          int
}

// ListClaims returns claims newest first.
func (s *Store) ListClaims(ctx context.Context, f ClaimFilter) ([]Claim, error) {
	conds := []string{"TRUE"}
	args := []interface{}{}
	if f.ItemID != nil {
		args = append(args, *f.ItemID)
		conds = append(conds, fmt.Sprintf("item_id = $%d", len(args)))
	}
	if f.ClaimantUserID != nil {
		args = append(args, *f.ClaimantUserID)
		conds = append(conds, fmt.Sprintf("claimant_user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query := `SELECT ` + claimColumns + ` FROM claims WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
