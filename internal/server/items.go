package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/campusops/lostfound/internal/matching"
	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/search"
	"github.com/campusops/lostfound/internal/social"
	"github.com/campusops/lostfound/internal/store"
)

type ItemsHandler struct {
	Store     *store.Store
	Engine    *matching.Engine
	Uploads   *Uploads
	Index     *search.Index
	Logger    *log.Logger
	Threshold float64
	AutoLimit int
}

func (h *ItemsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
}

// list returns items with optional type/reporter filters. When approval
// gating is on and at least one item has been approved, unapproved items
// are hidden from the public listing.
func (h *ItemsHandler) list(c echo.Context) error {
	ctx := c.Request().Context()
	f := store.ItemFilter{}
	if t := c.QueryParam("type"); t == store.ItemTypeLost || t == store.ItemTypeFound {
		f.Type = t
	}
	if r := c.QueryParam("reporterUserId"); r != "" {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid reporterUserId")
		}
		f.ReporterUserID = &id
	}
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			f.Limit = n
		}
	}

	requireApproval, err := h.Store.GetSettingBool(ctx, "features.item_approval.required", true)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if requireApproval {
		ids, err := h.approvedItemIDs(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		// only gate once the first approval exists, so fresh installs
		// still list everything
		if len(ids) > 0 {
			f.IDs = ids
		}
	}

	items, err := h.Store.ListItems(ctx, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": toItemResponses(items)})
}

func (h *ItemsHandler) approvedItemIDs(c echo.Context) ([]int64, error) {
	raw, err := h.Store.GetSetting(c.Request().Context(), "items.approved.set", "")
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}

func (h *ItemsHandler) get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	it, err := h.Store.GetItem(c.Request().Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toItemResponse(it))
}

// create accepts application/json or multipart/form-data with a photo.
// Reporter attribution comes from the authenticated caller. After the row
// is stored the handler queues a social announcement, runs an auto-match
// pass and attaches a QR code to found items, all best-effort.
func (h *ItemsHandler) create(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		req      CreateItemRequest
		photoURL string
	)
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		req.Type = strings.TrimSpace(c.FormValue("type"))
		req.Title = strings.TrimSpace(c.FormValue("title"))
		req.Description = strings.TrimSpace(c.FormValue("description"))
		req.Location = strings.TrimSpace(c.FormValue("location"))
		req.OccurredOn = strings.TrimSpace(c.FormValue("occurredOn"))
		if fh, err := c.FormFile("photo"); err == nil && fh != nil {
			url, err := h.Uploads.Save(fh)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			photoURL = url
		}
	} else {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		req.Type = strings.TrimSpace(req.Type)
		req.Title = strings.TrimSpace(req.Title)
	}
	if req.Type == "" {
		req.Type = store.ItemTypeLost
	}
	if req.Type != store.ItemTypeLost && req.Type != store.ItemTypeFound {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item type")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	occurredOn, err := parseDateOnly(req.OccurredOn)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var reporterID *int64
	if uid, ok := runtime.CurrentUserID(c); ok {
		reporterID = &uid
	}

	it, err := h.Store.CreateItem(ctx, store.Item{
		ReporterUserID: reporterID,
		Type:           req.Type,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		OccurredOn:     occurredOn,
		PhotoURL:       photoURL,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.Index != nil {
		if err := h.Index.IndexItem(it.ID, search.Doc{
			Type:        it.Type,
			Title:       it.Title,
			Description: it.Description,
			Location:    it.Location,
			Status:      it.Status,
		}); err != nil {
			h.logf("index item %d: %v", it.ID, err)
		}
	}

	h.queueSocialPost(c, it)

	// high-confidence pairs are persisted and reporters notified; failures
	// never block the create
	if h.Engine != nil {
		threshold := h.Threshold
		if threshold <= 0 {
			threshold = matching.DefaultThreshold
		}
		limit := h.AutoLimit
		if limit <= 0 {
			limit = 200
		}
		if _, err := h.Engine.MatchAndPersist(ctx, toMatchingItem(it), threshold, limit); err != nil {
			h.logf("auto-match item %d: %v", it.ID, err)
		}
	}

	resp := toItemResponse(it)
	if it.Type == store.ItemTypeFound {
		if qr, err := ensureQRCode(ctx, h.Store, it.ID); err == nil {
			return c.JSON(http.StatusCreated, map[string]interface{}{
				"item": resp,
				"qr":   map[string]string{"code": qr.Code},
			})
		} else {
			h.logf("qr for item %d: %v", it.ID, err)
		}
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *ItemsHandler) queueSocialPost(c echo.Context, it store.Item) {
	ctx := c.Request().Context()
	autoPost, err := h.Store.GetSettingBool(ctx, "social.facebook.auto_post", false)
	if err != nil || !autoPost {
		return
	}
	if _, err := h.Store.QueueSocialPost(ctx, it.ID, social.PlatformFacebook, composeItemPost(it)); err != nil {
		h.logf("queue social post for item %d: %v", it.ID, err)
	}
}

func (h *ItemsHandler) logf(format string, args ...interface{}) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}
