package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusops/lostfound/internal/store"
)

const userCols = `id, email, student_id, first_name, middle_name, last_name, password_hash, role, created_at, updated_at, last_login_at`

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "student_id", "first_name", "middle_name", "last_name",
		"password_hash", "role", "created_at", "updated_at", "last_login_at",
	})
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &AuthHandler{
		Store:  &store.Store{DB: db},
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
	}
	return h, mock, func() { db.Close() }
}

func TestLoginIssuesToken(t *testing.T) {
	e := echo.New()
	h, mock, done := newAuthHandler(t)
	defer done()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+userCols+` FROM users WHERE email = $1`)).
		WithArgs("amira@campus.edu").
		WillReturnRows(userRows().AddRow(7, "amira@campus.edu", "S-1042", "Amira", nil, "Haddad", string(hash), "student", now, now, nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET last_login_at = NOW() WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"email":" Amira@Campus.EDU ","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.login(ctx); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token in the body")
	}
	if resp.User.ID != 7 || resp.User.Role != "student" || resp.User.StudentID != "S-1042" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if got := rec.Header().Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
		t.Fatalf("expected Bearer header, got %q", got)
	}
	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "auth" {
			cookie = ck
		}
	}
	if cookie == nil || cookie.Value != resp.Token {
		t.Fatal("expected auth cookie carrying the token")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	e := echo.New()
	h, mock, done := newAuthHandler(t)
	defer done()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+userCols+` FROM users WHERE email = $1`)).
		WithArgs("amira@campus.edu").
		WillReturnRows(userRows().AddRow(7, "amira@campus.edu", "S-1042", "Amira", nil, "Haddad", string(hash), "student", now, now, nil))

	body := `{"email":"amira@campus.edu","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := h.login(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRegisterCreatesStudent(t *testing.T) {
	e := echo.New()
	h, mock, done := newAuthHandler(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO users (email, student_id, first_name, middle_name, last_name, password_hash, role)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+userCols)).
		WithArgs("omar@campus.edu", "S-2211", "Omar", nil, "Nasser", sqlmock.AnyArg(), "student").
		WillReturnRows(userRows().AddRow(12, "omar@campus.edu", "S-2211", "Omar", nil, "Nasser", "hash", "student", now, now, nil))

	body := `{"studentId":"S-2211","firstName":"Omar","lastName":"Nasser","email":"Omar@Campus.EDU","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/student", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.register(ctx); err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp UserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != 12 || resp.Email != "omar@campus.edu" || resp.StudentID != "S-2211" {
		t.Fatalf("unexpected user: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterRequiresStudentID(t *testing.T) {
	e := echo.New()
	h, _, done := newAuthHandler(t)
	defer done()

	body := `{"firstName":"Omar","lastName":"Nasser","email":"omar@campus.edu","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/student", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := h.register(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	e := echo.New()
	h, _, done := newAuthHandler(t)
	defer done()

	body := `{"studentId":"S-1","firstName":"Omar","lastName":"Nasser","email":"omar@campus.edu","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register/student", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := h.register(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
