package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/matching"
	"github.com/campusops/lostfound/internal/search"
	"github.com/campusops/lostfound/internal/store"
)

type SearchHandler struct {
	Store  *store.Store
	Engine *matching.Engine
	Index  *search.Index
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.GET("/smart", h.smart)
	g.GET("/items", h.items)
}

// SearchMatch is one smart-search result. The query side's id is nil in
// free-text mode.
type SearchMatch struct {
	LostItemID  *int64       `json:"lostItemId"`
	FoundItemID *int64       `json:"foundItemId"`
	Score       float64      `json:"score"`
	Candidate   ItemResponse `json:"candidate"`
}

// smart finds potential matches either for an existing item (itemId) or
// for a free-text description (q + type, optional location/date hints).
func (h *SearchHandler) smart(c echo.Context) error {
	ctx := c.Request().Context()
	limit := 10
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	var base matching.Item
	freeText := false
	if raw := c.QueryParam("itemId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid itemId")
		}
		it, err := h.Store.GetItem(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				return echo.NewHTTPError(http.StatusNotFound, "item not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		base = toMatchingItem(it)
	} else {
		q := strings.TrimSpace(c.QueryParam("q"))
		side := strings.ToLower(strings.TrimSpace(c.QueryParam("type")))
		if q == "" || (side != store.ItemTypeLost && side != store.ItemTypeFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "provide either itemId or (q and type in ['lost','found'])")
		}
		date, err := parseDateOnly(c.QueryParam("date"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		freeText = true
		base = matching.Item{
			Type:       matching.ItemType(side),
			Title:      q,
			Location:   strings.TrimSpace(c.QueryParam("location")),
			OccurredOn: date,
		}
	}

	// no threshold here: smart search shows the full ranking
	pairs, err := h.Engine.Rank(ctx, base, limit, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SearchMatch, 0, len(pairs))
	for _, p := range pairs {
		m := SearchMatch{
			Score: p.Score,
			Candidate: toItemResponse(store.Item{
				ID:             p.Candidate.ID,
				ReporterUserID: p.Candidate.ReporterUserID,
				Type:           string(p.Candidate.Type),
				Title:          p.Candidate.Title,
				Description:    p.Candidate.Description,
				Location:       p.Candidate.Location,
				OccurredOn:     p.Candidate.OccurredOn,
				ReportedAt:     p.Candidate.ReportedAt,
				Status:         string(p.Candidate.Status),
			}),
		}
		lost, found := p.LostItemID, p.FoundItemID
		if !freeText || lost != 0 {
			m.LostItemID = &lost
		}
		if !freeText || found != 0 {
			m.FoundItemID = &found
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"matches": out})
}

// items is plain keyword search over titles, descriptions and locations.
func (h *SearchHandler) items(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	hits, err := h.Index.Search(q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(hits) == 0 {
		return c.JSON(http.StatusOK, map[string]interface{}{"items": []ItemResponse{}})
	}
	ids := make([]int64, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ItemID)
	}
	items, err := h.Store.ListItems(c.Request().Context(), store.ItemFilter{IDs: ids, Limit: len(ids)})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// keep bleve's relevance order
	byID := make(map[int64]store.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]ItemResponse, 0, len(hits))
	for _, hit := range hits {
		if it, ok := byID[hit.ItemID]; ok {
			out = append(out, toItemResponse(it))
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": out})
}
