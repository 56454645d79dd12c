package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/matching"
	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/store"
)

type MatchesHandler struct {
	Store     *store.Store
	Engine    *matching.Engine
	Threshold float64
}

func (h *MatchesHandler) Register(g *echo.Group) {
	g.GET("/suggestions", h.suggestions)
	g.GET("", h.list)
	g.POST("", h.create, runtime.RequireAdmin())
	g.POST("/:id/confirm", h.confirm, runtime.RequireAdmin())
	g.POST("/:id/dismiss", h.dismiss, runtime.RequireAdmin())
}

// suggestions ranks candidates for an item without persisting anything.
// limit defaults to 10 and is clamped to [1,50].
func (h *MatchesHandler) suggestions(c echo.Context) error {
	itemID, err := strconv.ParseInt(c.QueryParam("itemId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "itemId is required")
	}
	limit := 10
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = matching.DefaultThreshold
	}
	if t := c.QueryParam("threshold"); t != "" {
		if v, err := strconv.ParseFloat(t, 64); err == nil && v >= 0 && v <= 1 {
			threshold = v
		}
	}

	it, err := h.Store.GetItem(c.Request().Context(), itemID)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pairs, err := h.Engine.Rank(c.Request().Context(), toMatchingItem(it), limit, threshold)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SuggestionResponse, 0, len(pairs))
	for _, p := range pairs {
		cand := toItemResponse(store.Item{
			ID:             p.Candidate.ID,
			ReporterUserID: p.Candidate.ReporterUserID,
			Type:           string(p.Candidate.Type),
			Title:          p.Candidate.Title,
			Description:    p.Candidate.Description,
			Location:       p.Candidate.Location,
			OccurredOn:     p.Candidate.OccurredOn,
			ReportedAt:     p.Candidate.ReportedAt,
			Status:         string(p.Candidate.Status),
		})
		out = append(out, SuggestionResponse{
			LostItemID:  p.LostItemID,
			FoundItemID: p.FoundItemID,
			Score:       p.Score,
			Item:        &cand,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suggestions": out})
}

func (h *MatchesHandler) list(c echo.Context) error {
	f := store.MatchFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("lostItemId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lostItemId")
		}
		f.LostItemID = &id
	}
	if v := c.QueryParam("foundItemId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid foundItemId")
		}
		f.FoundItemID = &id
	}
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			f.Limit = n
		}
	}
	matches, err := h.Store.ListMatches(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchResponse(m))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"matches": out})
}

// create links a lost and found item manually. Unlike the engine's
// monotonic upsert, an explicit score here overwrites the stored one.
func (h *MatchesHandler) create(c echo.Context) error {
	ctx := c.Request().Context()
	var req CreateMatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	lost, err := h.Store.GetItem(ctx, req.LostItemID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lost item not found")
	}
	found, err := h.Store.GetItem(ctx, req.FoundItemID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "found item not found")
	}
	if lost.Type != store.ItemTypeLost || found.Type != store.ItemTypeFound {
		return echo.NewHTTPError(http.StatusBadRequest, "pair must be one lost and one found item")
	}
	score := 100.0
	if req.Score != nil {
		if *req.Score < 0 || *req.Score > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "score must be in [0,100]")
		}
		score = *req.Score
	}

	existing, err := h.Store.GetMatchByPair(ctx, req.LostItemID, req.FoundItemID)
	if err == nil {
		m, err := h.Store.SetMatchScore(ctx, existing.ID, score)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, toMatchResponse(m))
	}
	if err != store.ErrNotFound {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	m, err := h.Store.InsertMatch(ctx, req.LostItemID, req.FoundItemID, score)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toMatchResponse(m))
}

// confirm settles a match and moves both items out of the open pool.
func (h *MatchesHandler) confirm(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid match id")
	}
	m, err := h.Store.UpdateMatchStatus(ctx, id, store.MatchStatusConfirmed)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "match not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, itemID := range []int64{m.LostItemID, m.FoundItemID} {
		it, err := h.Store.GetItem(ctx, itemID)
		if err != nil {
			continue
		}
		if it.Status == store.ItemStatusOpen || it.Status == store.ItemStatusMatched {
			_ = h.Store.UpdateItemStatus(ctx, itemID, store.ItemStatusMatched)
		}
	}
	if actor, ok := runtime.CurrentUserID(c); ok {
		_ = h.Store.AppendAudit(ctx, &actor, "match.confirm", "match", &m.ID, nil)
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}

func (h *MatchesHandler) dismiss(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid match id")
	}
	m, err := h.Store.UpdateMatchStatus(ctx, id, store.MatchStatusDismissed)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "match not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if actor, ok := runtime.CurrentUserID(c); ok {
		_ = h.Store.AppendAudit(ctx, &actor, "match.dismiss", "match", &m.ID, nil)
	}
	return c.JSON(http.StatusOK, toMatchResponse(m))
}
