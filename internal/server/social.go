package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/social"
	"github.com/campusops/lostfound/internal/store"
)

type SocialHandler struct {
	Store   *store.Store
	Enabled bool
	// Config-level credentials, overridable per deployment via settings.
	PageID  string
	Token   string
	BaseURL string
}

func (h *SocialHandler) Register(g *echo.Group) {
	g.Use(runtime.RequireAdmin())
	g.GET("/status", h.status)
	g.GET("/facebook/credentials", h.getCredentials)
	g.PUT("/facebook/credentials", h.putCredentials)
	g.POST("/facebook/verify", h.verify)
	g.GET("/posts", h.listPosts)
	g.POST("/posts", h.createPost)
	g.POST("/posts/:id/retry", h.retryPost)
}

// credentials resolves the page id and token: app settings override the
// deployment config.
func (h *SocialHandler) credentials(c echo.Context) (pageID, token string, err error) {
	ctx := c.Request().Context()
	pageID, err = h.Store.GetSetting(ctx, "social.facebook.page_id", h.PageID)
	if err != nil {
		return "", "", err
	}
	token, err = h.Store.GetSetting(ctx, "social.facebook.page_access_token", h.Token)
	if err != nil {
		return "", "", err
	}
	return pageID, token, nil
}

func (h *SocialHandler) status(c echo.Context) error {
	autoPost, err := h.Store.GetSettingBool(c.Request().Context(), "social.facebook.auto_post", false)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pageID, token, err := h.credentials(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"enabled": h.Enabled,
		"facebook": map[string]interface{}{
			"autoPost":        autoPost,
			"pageConfigured":  pageID != "",
			"tokenConfigured": token != "",
		},
	})
}

// getCredentials reveals whether values exist, never the token itself.
func (h *SocialHandler) getCredentials(c echo.Context) error {
	pageID, token, err := h.credentials(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"pageId":   pageID,
		"hasToken": token != "",
	})
}

func (h *SocialHandler) putCredentials(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		PageID          string `json:"pageId"`
		PageAccessToken string `json:"pageAccessToken"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if v := strings.TrimSpace(req.PageID); v != "" {
		if err := h.Store.SetSetting(ctx, "social.facebook.page_id", v); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if v := strings.TrimSpace(req.PageAccessToken); v != "" {
		if err := h.Store.SetSetting(ctx, "social.facebook.page_access_token", v); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// verify checks the provided or stored credentials against the Graph API.
func (h *SocialHandler) verify(c echo.Context) error {
	var req struct {
		PageID          string `json:"pageId"`
		PageAccessToken string `json:"pageAccessToken"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pageID, token, err := h.credentials(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if v := strings.TrimSpace(req.PageID); v != "" {
		pageID = v
	}
	if v := strings.TrimSpace(req.PageAccessToken); v != "" {
		token = v
	}
	client := social.NewFacebookClient(pageID, token, h.BaseURL)
	info, err := client.VerifyPage(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"ok": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "page": info})
}

func (h *SocialHandler) listPosts(c echo.Context) error {
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	posts, err := h.Store.ListSocialPosts(c.Request().Context(), c.QueryParam("status"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SocialPostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toSocialPostResponse(p))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"posts": out})
}

// createPost queues an announcement for an item. An empty message gets the
// standard composition from the item fields.
func (h *SocialHandler) createPost(c echo.Context) error {
	ctx := c.Request().Context()
	var req struct {
		ItemID  int64  `json:"itemId"`
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it, err := h.Store.GetItem(ctx, req.ItemID)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = composeItemPost(it)
	}
	p, err := h.Store.QueueSocialPost(ctx, it.ID, social.PlatformFacebook, message)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toSocialPostResponse(p))
}

// retryPost re-queues a failed post for the next dispatcher pass.
func (h *SocialHandler) retryPost(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}
	posts, err := h.Store.ListSocialPosts(ctx, "", 500)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, p := range posts {
		if p.ID != id {
			continue
		}
		if p.Status != store.DeliveryStatusFailed {
			return echo.NewHTTPError(http.StatusConflict, "only failed posts can be retried")
		}
		requeued, err := h.Store.QueueSocialPost(ctx, p.ItemID, p.Platform, p.Message)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, toSocialPostResponse(requeued))
	}
	return echo.NewHTTPError(http.StatusNotFound, "post not found")
}

func composeItemPost(it store.Item) string {
	kind := "Lost"
	if it.Type == store.ItemTypeFound {
		kind = "Found"
	}
	lines := []string{fmt.Sprintf("%s Item: %s", kind, it.Title)}
	if it.Description != "" {
		lines = append(lines, it.Description)
	}
	var meta []string
	if it.Location != "" {
		meta = append(meta, "Location: "+it.Location)
	}
	if it.OccurredOn != nil {
		meta = append(meta, "Date: "+it.OccurredOn.Format("2006-01-02"))
	}
	if len(meta) > 0 {
		lines = append(lines, strings.Join(meta, " | "))
	}
	return strings.Join(lines, "\n")
}
