package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestGetSettingFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM app_settings WHERE key = $1`)).
		WithArgs("require_approval").
		WillReturnError(sql.ErrNoRows)

	v, err := st.GetSetting(context.Background(), "require_approval", "false")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "false" {
		t.Fatalf("value = %q, want fallback", v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSettingBool(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM app_settings WHERE key = $1`)).
		WithArgs("require_approval").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(" Yes "))

	ok, err := st.GetSettingBool(context.Background(), "require_approval", false)
	if err != nil {
		t.Fatalf("GetSettingBool: %v", err)
	}
	if !ok {
		t.Fatalf("expected true for ' Yes '")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetSettingUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO app_settings (key, value)
VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
`)).
		WithArgs("require_approval", "true").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SetSetting(context.Background(), "require_approval", "true"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
