package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/notify"
	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/store"
)

type NotificationsHandler struct {
	Store *store.Store
	Bus   *notify.Bus
}

func (h *NotificationsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/unread-count", h.unreadCount)
	g.PATCH("/:id/read", h.markRead)
	g.POST("/read-all", h.markAllRead)
	g.GET("/stream", h.stream)
}

func (h *NotificationsHandler) list(c echo.Context) error {
	userID, ok := runtime.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	unreadOnly := c.QueryParam("unread") == "true"
	rows, err := h.Store.ListNotifications(c.Request().Context(), userID, unreadOnly, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]NotificationResponse, 0, len(rows))
	for _, n := range rows {
		out = append(out, toNotificationResponse(n))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": out})
}

func (h *NotificationsHandler) unreadCount(c echo.Context) error {
	userID, ok := runtime.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	n, err := h.Store.CountUnreadNotifications(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": n})
}

func (h *NotificationsHandler) markRead(c echo.Context) error {
	userID, ok := runtime.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}
	if err := h.Store.MarkNotificationRead(c.Request().Context(), id, userID); err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationsHandler) markAllRead(c echo.Context) error {
	userID, ok := runtime.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	n, err := h.Store.MarkAllNotificationsRead(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}

// stream is a Server-Sent Events feed of the caller's notifications, with
// a keep-alive ping every 15 seconds.
func (h *NotificationsHandler) stream(c echo.Context) error {
	userID, ok := runtime.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	ctx := c.Request().Context()
	sub, err := h.Bus.Subscribe(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer sub.Close()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	// initial comment to establish the stream
	if _, err := fmt.Fprint(resp, ": connected\n\n"); err != nil {
		return nil
	}
	resp.Flush()

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ping.C:
			if _, err := fmt.Fprintf(resp, "event: ping\ndata: {\"ts\":%d}\n\n", time.Now().Unix()); err != nil {
				return nil
			}
			resp.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "event: notification\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
