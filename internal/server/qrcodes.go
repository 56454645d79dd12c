package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/store"
)

type QRCodesHandler struct {
	Store *store.Store
	// FrontendBaseURL is the public site prefix embedded in QR images.
	FrontendBaseURL string
}

func (h *QRCodesHandler) Register(g *echo.Group) {
	g.POST("/items/:itemId", h.ensure, runtime.RequireAdmin())
	g.POST("/items/:itemId/regenerate", h.regenerate, runtime.RequireAdmin())
	g.GET("/items/:itemId", h.getForItem)
}

// RegisterPublic mounts the endpoints a printed poster hits: no auth.
func (h *QRCodesHandler) RegisterPublic(g *echo.Group) {
	g.GET("/:code/image", h.image)
	g.GET("/:code", h.resolve)
}

func newQRToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ensureQRCode returns the item's code, creating one if absent.
func ensureQRCode(ctx context.Context, st *store.Store, itemID int64) (store.QRCode, error) {
	qr, err := st.GetQRCodeByItem(ctx, itemID)
	if err == nil {
		return qr, nil
	}
	if err != store.ErrNotFound {
		return store.QRCode{}, err
	}
	return st.CreateQRCode(ctx, itemID, newQRToken())
}

func (h *QRCodesHandler) ensure(c echo.Context) error {
	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	it, err := h.Store.GetItem(c.Request().Context(), itemID)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if it.Type != store.ItemTypeFound {
		return echo.NewHTTPError(http.StatusBadRequest, "qr codes are for found items")
	}
	qr, err := ensureQRCode(c.Request().Context(), h.Store, itemID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.toResponse(qr))
}

// regenerate invalidates the current poster and issues a fresh code.
func (h *QRCodesHandler) regenerate(c echo.Context) error {
	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	qr, err := h.Store.ReplaceQRCode(c.Request().Context(), itemID, newQRToken())
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "no qr code for item")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.toResponse(qr))
}

func (h *QRCodesHandler) getForItem(c echo.Context) error {
	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	qr, err := h.Store.GetQRCodeByItem(c.Request().Context(), itemID)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "no qr code for item")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.toResponse(qr))
}

// image renders the scannable PNG. size scales the image in steps of 32px
// and is clamped to [1,20].
func (h *QRCodesHandler) image(c echo.Context) error {
	code := c.Param("code")
	qr, err := h.Store.GetQRCodeByCode(c.Request().Context(), code)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "unknown code")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	size := 8
	if s := c.QueryParam("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			size = n
		}
	}
	if size < 1 {
		size = 1
	}
	if size > 20 {
		size = 20
	}
	png, err := qrcode.Encode(h.scanURL(qr.Code), qrcode.Medium, size*32)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// resolve is what a scanned poster opens: it bumps the scan counter and
// returns the item.
func (h *QRCodesHandler) resolve(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.Param("code")
	qr, err := h.Store.GetQRCodeByCode(ctx, code)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "unknown code")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	qr, err = h.Store.RecordQRScan(ctx, qr.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	it, err := h.Store.GetItem(ctx, qr.ItemID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"item":      toItemResponse(it),
		"scanCount": qr.ScanCount,
	})
}

func (h *QRCodesHandler) scanURL(code string) string {
	base := strings.TrimRight(h.FrontendBaseURL, "/")
	if base == "" {
		return "/qr/" + code
	}
	return base + "/qr/" + code
}

func (h *QRCodesHandler) toResponse(qr store.QRCode) QRCodeResponse {
	return QRCodeResponse{
		ID:            qr.ID,
		ItemID:        qr.ItemID,
		Code:          qr.Code,
		URL:           h.scanURL(qr.Code),
		ScanCount:     qr.ScanCount,
		CreatedAt:     qr.CreatedAt,
		LastScannedAt: qr.LastScannedAt,
	}
}
