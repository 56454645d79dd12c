package store

import (
	"context"
	"database/sql"
	"time"
)

// QRCode links a printable code to a found item. Code is an opaque token
// embedded in the poster URL.
type QRCode struct {
	ID            int64
	ItemID        int64
	Code          string
	ScanCount     int64
	CreatedAt     time.Time
	LastScannedAt *time.Time
}

const qrColumns = `id, item_id, code, scan_count, created_at, last_scanned_at`

func scanQRCode(row interface{ Scan(...interface{}) error }) (QRCode, error) {
	var q QRCode
	var last sql.NullTime
	err := row.Scan(&q.ID, &q.ItemID, &q.Code, &q.ScanCount, &q.CreatedAt, &last)
	if err != nil {
		return QRCode{}, err
	}
	q.LastScannedAt = timePtr(last)
	return q, nil
}

// CreateQRCode stores a fresh code for an item.
func (s *Store) CreateQRCode(ctx context.Context, itemID int64, code string) (QRCode, error) {
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO qr_codes (item_id, code)
VALUES ($1,$2)
RETURNING `+qrColumns+`
`, itemID, code)
	return scanQRCode(row)
}

// GetQRCodeByItem fetches the code attached to an item.
func (s *Store) GetQRCodeByItem(ctx context.Context, itemID int64) (QRCode, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+qrColumns+` FROM qr_codes WHERE item_id = $1`, itemID)
	q, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return QRCode{}, ErrNotFound
	}
	return q, err
}

// GetQRCodeByCode resolves a scanned token.
func (s *Store) GetQRCodeByCode(ctx context.Context, code string) (QRCode, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+qrColumns+` FROM qr_codes WHERE code = $1`, code)
	q, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return QRCode{}, ErrNotFound
	}
	return q, err
}

// ReplaceQRCode swaps in a new token for an item, invalidating the old one.
func (s *Store) ReplaceQRCode(ctx context.Context, itemID int64, code string) (QRCode, error) {
	row := s.DB.QueryRowContext(ctx, `
UPDATE qr_codes SET code = $1, scan_count = 0, last_scanned_at = NULL
WHERE item_id = $2
RETURNING `+qrColumns, code, itemID)
	q, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return QRCode{}, ErrNotFound
	}
	return q, err
}

// RecordQRScan bumps the scan counter and stamps the scan time.
func (s *Store) RecordQRScan(ctx context.Context, id int64) (QRCode, error) {
	row := s.DB.QueryRowContext(ctx, `
UPDATE qr_codes SET scan_count = scan_count + 1, last_scanned_at = NOW()
WHERE id = $1
RETURNING `+qrColumns, id)
	q, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return QRCode{}, ErrNotFound
	}
	return q, err
}
