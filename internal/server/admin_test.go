package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/store"
)

func newAdminHandler(t *testing.T) (*AdminHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &AdminHandler{Store: &store.Store{DB: db}}
	return h, mock, func() { db.Close() }
}

func adminItemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reporter_user_id", "type", "title", "description", "location",
		"occurred_on", "reported_at", "status", "photo_url", "created_at", "updated_at",
	})
}

func adminGet(e *echo.Echo, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", int64(1))
	ctx.Set("role", "admin")
	return ctx, rec
}

func TestAdminListItemsDerivesUIStatus(t *testing.T) {
	e := echo.New()
	h, mock, done := newAdminHandler(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+itemCols+` FROM items WHERE TRUE ORDER BY reported_at DESC LIMIT $1`)).
		WithArgs(200).
		WillReturnRows(adminItemRows().
			AddRow(1, 20, "lost", "Black wallet", nil, "Library", nil, now, "open", nil, now, now).
			AddRow(2, 21, "found", "Red umbrella", nil, "Gym", nil, now, "closed", nil, now, now).
			AddRow(3, 22, "lost", "Silver keychain", nil, "Cafeteria", nil, now, "open", nil, now, now).
			AddRow(4, 23, "found", "Blue bottle", nil, "Dorm", nil, now, "open", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + claimCols + ` FROM claims WHERE item_id = ANY($1)`)).
		WillReturnRows(claimRow(11, 1, 30, "requested", now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + matchCols + ` FROM matches WHERE lost_item_id = ANY($1) OR found_item_id = ANY($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lost_item_id", "found_item_id", "score", "status", "created_at"}).
			AddRow(5, 3, 9, 77.5, "pending", now))

	ctx, rec := adminGet(e, "/api/v1/admin/items")

	if err := h.listItems(ctx); err != nil {
		t.Fatalf("listItems: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []struct {
			ID       int64  `json:"id"`
			UIStatus string `json:"uiStatus"`
		} `json:"items"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 4 || len(resp.Items) != 4 {
		t.Fatalf("expected 4 items, got count=%d len=%d", resp.Count, len(resp.Items))
	}
	want := map[int64]string{
		1: "claim_pending",
		2: "returned",
		3: "matched",
		4: "unclaimed",
	}
	for _, it := range resp.Items {
		if got := want[it.ID]; it.UIStatus != got {
			t.Fatalf("item %d uiStatus = %q, want %q", it.ID, it.UIStatus, got)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdminListItemsFiltersUIStatus(t *testing.T) {
	e := echo.New()
	h, mock, done := newAdminHandler(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+itemCols+` FROM items WHERE TRUE ORDER BY reported_at DESC LIMIT $1`)).
		WithArgs(200).
		WillReturnRows(adminItemRows().
			AddRow(1, 20, "lost", "Black wallet", nil, "Library", nil, now, "open", nil, now, now).
			AddRow(2, 21, "found", "Red umbrella", nil, "Gym", nil, now, "closed", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + claimCols + ` FROM claims WHERE item_id = ANY($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + matchCols + ` FROM matches WHERE lost_item_id = ANY($1) OR found_item_id = ANY($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ctx, rec := adminGet(e, "/api/v1/admin/items?uiStatus=returned")

	if err := h.listItems(ctx); err != nil {
		t.Fatalf("listItems: %v", err)
	}
	var resp struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Items) != 1 || resp.Items[0].ID != 2 {
		t.Fatalf("expected only the closed item, got %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdminDailyStats(t *testing.T) {
	e := echo.New()
	h, mock, done := newAdminHandler(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT
  (SELECT COUNT(*) FROM items WHERE reported_at::date = CURRENT_DATE),
  (SELECT COUNT(*) FROM claims WHERE status IN ('requested','verified')),
  (SELECT COUNT(*) FROM items WHERE status = 'closed' AND (updated_at::date = CURRENT_DATE OR reported_at::date = CURRENT_DATE))
`)).
		WillReturnRows(sqlmock.NewRows([]string{"new", "pending", "returned"}).AddRow(4, 2, 1))

	ctx, rec := adminGet(e, "/api/v1/admin/stats/daily")

	if err := h.dailyStats(ctx); err != nil {
		t.Fatalf("dailyStats: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["newReports"] != 4 || resp["pendingClaims"] != 2 || resp["successfulReturns"] != 1 {
		t.Fatalf("unexpected stats: %v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
