package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps the Postgres handle. All queries are plain SQL; schema is
// managed by golang-migrate (see migrations/).
type Store struct {
	DB *sql.DB
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Item statuses.
const (
	ItemStatusOpen    = "open"
	ItemStatusMatched = "matched"
	ItemStatusClaimed = "claimed"
	ItemStatusClosed  = "closed"
)

// Item types.
const (
	ItemTypeLost  = "lost"
	ItemTypeFound = "found"
)

// Match statuses.
const (
	MatchStatusPending   = "pending"
	MatchStatusConfirmed = "confirmed"
	MatchStatusDismissed = "dismissed"
)

// Claim statuses.
const (
	ClaimStatusRequested = "requested"
	ClaimStatusVerified  = "verified"
	ClaimStatusApproved  = "approved"
	ClaimStatusRejected  = "rejected"
	ClaimStatusCancelled = "cancelled"
)

// Notification and social-post delivery statuses.
const (
	DeliveryStatusQueued = "queued"
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
	DeliveryStatusRead   = "read"
)

// User roles.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func strOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
