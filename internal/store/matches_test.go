package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var upsertMatchQuery = regexp.QuoteMeta(`
INSERT INTO matches (lost_item_id, found_item_id, score)
VALUES ($1,$2,$3)
ON CONFLICT (lost_item_id, found_item_id) DO UPDATE SET
  score = GREATEST(matches.score, EXCLUDED.score)
WHERE matches.status = 'pending' OR matches.status IS NULL
RETURNING score
`)

func TestUpsertMatchScoreInsertsNewPair(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(upsertMatchQuery).
		WithArgs(int64(1), int64(2), 72.5).
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(72.5))

	stored, err := st.UpsertMatchScore(context.Background(), 1, 2, 72.5)
	if err != nil {
		t.Fatalf("UpsertMatchScore: %v", err)
	}
	if stored != 72.5 {
		t.Fatalf("stored score = %v, want 72.5", stored)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertMatchScoreKeepsHigherExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	// GREATEST keeps the stored 80 when a lower 55 arrives
	mock.ExpectQuery(upsertMatchQuery).
		WithArgs(int64(1), int64(2), 55.0).
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(80.0))

	stored, err := st.UpsertMatchScore(context.Background(), 1, 2, 55.0)
	if err != nil {
		t.Fatalf("UpsertMatchScore: %v", err)
	}
	if stored != 80.0 {
		t.Fatalf("stored score = %v, want existing 80.0", stored)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertMatchScoreSkipsSettledMatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	now := time.Now()
	// conflict on a confirmed match returns no row; the stored score is
	// fetched instead
	mock.ExpectQuery(upsertMatchQuery).
		WithArgs(int64(1), int64(2), 90.0).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, lost_item_id, found_item_id, score, status, created_at FROM matches WHERE lost_item_id = $1 AND found_item_id = $2`)).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lost_item_id", "found_item_id", "score", "status", "created_at"}).
			AddRow(int64(7), int64(1), int64(2), 61.0, MatchStatusConfirmed, now))

	stored, err := st.UpsertMatchScore(context.Background(), 1, 2, 90.0)
	if err != nil {
		t.Fatalf("UpsertMatchScore: %v", err)
	}
	if stored != 61.0 {
		t.Fatalf("stored score = %v, want untouched 61.0", stored)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateMatchStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE matches SET status = $1 WHERE id = $2 RETURNING id, lost_item_id, found_item_id, score, status, created_at`)).
		WithArgs(MatchStatusConfirmed, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lost_item_id", "found_item_id", "score", "status", "created_at"}).
			AddRow(int64(7), int64(1), int64(2), 61.0, MatchStatusConfirmed, now))

	m, err := st.UpdateMatchStatus(context.Background(), 7, MatchStatusConfirmed)
	if err != nil {
		t.Fatalf("UpdateMatchStatus: %v", err)
	}
	if m.Status != MatchStatusConfirmed || m.LostItemID != 1 || m.FoundItemID != 2 {
		t.Fatalf("unexpected match: %#v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateMatchStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE matches SET status = $1 WHERE id = $2 RETURNING`)).
		WithArgs(MatchStatusDismissed, int64(99)).
		WillReturnError(sql.ErrNoRows)

	if _, err := st.UpdateMatchStatus(context.Background(), 99, MatchStatusDismissed); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
