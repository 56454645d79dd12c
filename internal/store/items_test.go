package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func itemRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reporter_user_id", "type", "title", "description", "location",
		"occurred_on", "reported_at", "status", "photo_url", "created_at", "updated_at",
	}).AddRow(
		int64(3), int64(10), ItemTypeFound, "Black wallet", "leather wallet with cards", "Library",
		now, now, ItemStatusOpen, nil, now, now,
	)
}

func TestGetItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+itemColumns+` FROM items WHERE id = $1`)).
		WithArgs(int64(3)).
		WillReturnRows(itemRows(now))

	it, err := st.GetItem(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if it.ID != 3 || it.Type != ItemTypeFound || it.Title != "Black wallet" {
		t.Fatalf("unexpected item: %#v", it)
	}
	if it.ReporterUserID == nil || *it.ReporterUserID != 10 {
		t.Fatalf("expected reporter 10, got %v", it.ReporterUserID)
	}
	if it.PhotoURL != "" {
		t.Fatalf("expected empty photo url, got %q", it.PhotoURL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetItemNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+itemColumns+` FROM items WHERE id = $1`)).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	if _, err := st.GetItem(context.Background(), 404); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCandidateItemsFullFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	around := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	start := around.AddDate(0, 0, -30)
	end := around.AddDate(0, 0, 30)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+itemColumns+` FROM items WHERE type = $1 AND status IN ('open','matched') AND location ILIKE $2 AND ((occurred_on IS NOT NULL AND occurred_on BETWEEN $3 AND $4)
   OR (occurred_on IS NULL AND reported_at >= $3 AND reported_at < $5)) ORDER BY reported_at DESC LIMIT $6`)).
		WithArgs(ItemTypeFound, "%Library%", start, end, end.AddDate(0, 0, 1), 400).
		WillReturnRows(itemRows(around))

	items, err := st.CandidateItems(context.Background(), ItemTypeFound, "Library", &around, 0)
	if err != nil {
		t.Fatalf("CandidateItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != 3 {
		t.Fatalf("unexpected pool: %#v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCandidateItemsBareQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+itemColumns+` FROM items WHERE type = $1 AND status IN ('open','matched') ORDER BY reported_at DESC LIMIT $2`)).
		WithArgs(ItemTypeLost, 50).
		WillReturnRows(itemRows(time.Now()))

	if _, err := st.CandidateItems(context.Background(), ItemTypeLost, "  ", nil, 50); err != nil {
		t.Fatalf("CandidateItems: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateItemStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE items SET status = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs(ItemStatusClosed, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.UpdateItemStatus(context.Background(), 5, ItemStatusClosed); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
