package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/notify"
	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/store"
)

type AdminHandler struct {
	Store *store.Store
	Bus   *notify.Bus
}

func (h *AdminHandler) Register(g *echo.Group) {
	g.Use(runtime.RequireAdmin())
	g.GET("/items", h.listItems)
	g.GET("/stats/overview", h.overview)
	g.GET("/stats/daily", h.dailyStats)
	g.GET("/stats/reports", h.reportSeries)
	g.GET("/settings", h.getSettings)
	g.PATCH("/settings", h.patchSettings)
	g.PATCH("/items/:id", h.patchItem)
	g.POST("/items/:id/return", h.returnItem)
	g.GET("/audit", h.audit)
}

// deriveUIStatus folds an item's claims and matches into the single label
// the admin dashboard shows. Returned wins, then the strongest claim
// verdict, then match state.
func deriveUIStatus(it store.Item, claims []store.Claim, matches []store.Match) string {
	if it.Status == store.ItemStatusClosed {
		return "returned"
	}
	for _, c := range claims {
		if c.Status == store.ClaimStatusApproved {
			return "claim_approved"
		}
	}
	for _, c := range claims {
		if c.Status == store.ClaimStatusRejected {
			return "claim_rejected"
		}
	}
	for _, c := range claims {
		if c.Status == store.ClaimStatusRequested || c.Status == store.ClaimStatusVerified {
			return "claim_pending"
		}
	}
	if it.Status == store.ItemStatusMatched {
		return "matched"
	}
	for _, m := range matches {
		if m.Status == store.MatchStatusPending || m.Status == store.MatchStatusConfirmed {
			return "matched"
		}
	}
	return "unclaimed"
}

// listItems is the admin item browser: text and reporter search, date
// range, and a derived uiStatus per row with post-derivation filtering.
func (h *AdminHandler) listItems(c echo.Context) error {
	ctx := c.Request().Context()
	f := store.ItemFilter{
		Query:    c.QueryParam("q"),
		Reporter: c.QueryParam("reporter"),
	}
	if t := strings.ToLower(c.QueryParam("type")); t == store.ItemTypeLost || t == store.ItemTypeFound {
		f.Type = t
	}
	if v := c.QueryParam("dateFrom"); v != "" {
		d, err := parseDateOnly(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.DateFrom = d
	}
	if v := c.QueryParam("dateTo"); v != "" {
		d, err := parseDateOnly(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.DateTo = d
	}
	limit := 200
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	f.Limit = limit

	items, err := h.Store.ListItems(ctx, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	claims, err := h.Store.ClaimsForItems(ctx, ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	matches, err := h.Store.MatchesForItems(ctx, ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	type adminItem struct {
		ItemResponse
		UIStatus string `json:"uiStatus"`
	}
	uiFilter := strings.ToLower(strings.TrimSpace(c.QueryParam("uiStatus")))
	out := make([]adminItem, 0, len(items))
	for _, it := range items {
		st := deriveUIStatus(it, claims[it.ID], matches[it.ID])
		if uiFilter != "" && st != uiFilter {
			continue
		}
		out = append(out, adminItem{ItemResponse: toItemResponse(it), UIStatus: st})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": out, "count": len(out)})
}

func (h *AdminHandler) overview(c echo.Context) error {
	o, err := h.Store.Overview(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{
		"totalItems":     o.TotalItems,
		"openLost":       o.OpenLost,
		"openFound":      o.OpenFound,
		"pendingMatches": o.PendingMatches,
		"pendingClaims":  o.PendingClaims,
		"recoveredTotal": o.RecoveredTotal,
		"recoveredMonth": o.RecoveredMonth,
	})
}

// dailyStats returns today's snapshot counters for the dashboard cards.
func (h *AdminHandler) dailyStats(c echo.Context) error {
	d, err := h.Store.Daily(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{
		"newReports":        d.NewReports,
		"pendingClaims":     d.PendingClaims,
		"successfulReturns": d.SuccessfulReturns,
	})
}

func (h *AdminHandler) reportSeries(c echo.Context) error {
	days := 30
	if d := c.QueryParam("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			days = n
		}
	}
	series, err := h.Store.ReportSeries(c.Request().Context(), days)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	type bucket struct {
		Day   string `json:"day"`
		Lost  int64  `json:"lost"`
		Found int64  `json:"found"`
	}
	out := make([]bucket, 0, len(series))
	for _, d := range series {
		out = append(out, bucket{Day: d.Day.Format("2006-01-02"), Lost: d.Lost, Found: d.Found})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"series": out})
}

func (h *AdminHandler) getSettings(c echo.Context) error {
	settings, err := h.Store.AllSettings(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"settings": settings})
}

func (h *AdminHandler) patchSettings(c echo.Context) error {
	ctx := c.Request().Context()
	var req map[string]string
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for k, v := range req {
		if err := h.Store.SetSetting(ctx, k, v); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if actor, ok := runtime.CurrentUserID(c); ok {
		_ = h.Store.AppendAudit(ctx, &actor, "settings.update", "settings", nil, req)
	}
	settings, err := h.Store.AllSettings(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"settings": settings})
}

func (h *AdminHandler) patchItem(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	var req UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patch := store.ItemPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	}
	if req.OccurredOn != nil {
		d, err := parseDateOnly(*req.OccurredOn)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		patch.OccurredOn = d
	}
	if req.Status != nil {
		switch *req.Status {
		case store.ItemStatusOpen, store.ItemStatusMatched, store.ItemStatusClaimed, store.ItemStatusClosed:
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		patch.Status = req.Status
	}
	it, err := h.Store.UpdateItem(ctx, id, patch)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if actor, ok := runtime.CurrentUserID(c); ok {
		_ = h.Store.AppendAudit(ctx, &actor, "item.update", "item", &it.ID, nil)
	}
	return c.JSON(http.StatusOK, toItemResponse(it))
}

// returnItem closes a report after a hand-over and tells its reporter.
func (h *AdminHandler) returnItem(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	it, err := h.Store.GetItem(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.UpdateItemStatus(ctx, id, store.ItemStatusClosed); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if it.ReporterUserID != nil {
		row, err := h.Store.CreateNotification(ctx, *it.ReporterUserID, "item_returned",
			"Item returned", "\""+it.Title+"\" was returned to its owner.",
			map[string]interface{}{"itemId": it.ID})
		if err == nil && h.Bus != nil {
			_ = h.Bus.Publish(ctx, *it.ReporterUserID, notify.Event{
				ID: row.ID, Kind: row.Kind, Title: row.Title, Body: row.Body, Data: row.Data, CreatedAt: row.CreatedAt,
			})
		}
	}
	if actor, ok := runtime.CurrentUserID(c); ok {
		_ = h.Store.AppendAudit(ctx, &actor, "item.return", "item", &it.ID, nil)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) audit(c echo.Context) error {
	limit := 200
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	logs, err := h.Store.ListAuditLogs(c.Request().Context(), c.QueryParam("entity"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	type entry struct {
		ID          int64       `json:"id"`
		ActorUserID *int64      `json:"actorUserId,omitempty"`
		Action      string      `json:"action"`
		Entity      string      `json:"entity"`
		EntityID    *int64      `json:"entityId,omitempty"`
		Meta        interface{} `json:"meta,omitempty"`
		CreatedAt   string      `json:"createdAt"`
	}
	out := make([]entry, 0, len(logs))
	for _, l := range logs {
		e := entry{
			ID:          l.ID,
			ActorUserID: l.ActorUserID,
			Action:      l.Action,
			Entity:      l.Entity,
			EntityID:    l.EntityID,
			CreatedAt:   l.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if len(l.Meta) > 0 {
			e.Meta = l.Meta
		}
		out = append(out, e)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"logs": out})
}
