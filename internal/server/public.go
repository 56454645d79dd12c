package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/store"
)

// PublicHandler serves unauthenticated stats for the campus site.
type PublicHandler struct {
	Store *store.Store
}

func (h *PublicHandler) Register(g *echo.Group) {
	g.GET("/stats/monthly", h.monthly)
}

func (h *PublicHandler) monthly(c echo.Context) error {
	series, err := h.Store.RecoveredMonthly(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	type bucket struct {
		Month     string `json:"month"`
		Recovered int64  `json:"recovered"`
	}
	out := make([]bucket, 0, len(series))
	var thisMonth int64
	for _, m := range series {
		out = append(out, bucket{Month: m.Month.Format("2006-01"), Recovered: m.Recovered})
	}
	if len(out) > 0 {
		thisMonth = series[len(series)-1].Recovered
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"recoveredThisMonth": thisMonth,
		"series":             out,
	})
}
