package server

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/campusops/lostfound/internal/notify"
	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/store"
)

type ClaimsHandler struct {
	Store  *store.Store
	Bus    *notify.Bus
	Logger *log.Logger
}

func (h *ClaimsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.decide, runtime.RequireAdmin())
	g.POST("/:id/return", h.markReturned, runtime.RequireAdmin())
}

// create opens a claim on a found item. One claim per item and claimant.
func (h *ClaimsHandler) create(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := runtime.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req ClaimRequest
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
	if it.Type != store.ItemTypeFound {
		return echo.NewHTTPError(http.StatusBadRequest, "claims apply to found items")
	}
	if it.Status == store.ItemStatusClaimed || it.Status == store.ItemStatusClosed {
		return echo.NewHTTPError(http.StatusConflict, "item is no longer claimable")
	}
	if _, err := h.Store.GetClaimByItemAndUser(ctx, req.ItemID, userID); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "claim already exists for this item")
	} else if err != store.ErrNotFound {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	claim, err := h.Store.CreateClaim(ctx, req.ItemID, userID, req.Message)
	if err != nil {
		// racing duplicate between the pre-check and the insert
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return echo.NewHTTPError(http.StatusConflict, "claim already exists for this item")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// tell the finder someone claimed their report
	if it.ReporterUserID != nil {
		h.notifyUser(c, *it.ReporterUserID, "claim_opened",
			"New claim on your found item",
			"Someone claimed \""+it.Title+"\". An admin will verify ownership.",
			map[string]interface{}{"claimId": claim.ID, "itemId": it.ID})
	}
	return c.JSON(http.StatusCreated, toClaimResponse(claim))
}

// list shows all claims to admins and only the caller's own to students.
func (h *ClaimsHandler) list(c echo.Context) error {
	f := store.ClaimFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("itemId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid itemId")
		}
		f.ItemID = &id
	}
	if runtime.CurrentRole(c) != store.RoleAdmin {
		userID, ok := runtime.CurrentUserID(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		f.ClaimantUserID = &userID
	}
	claims, err := h.Store.ListClaims(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]ClaimResponse, 0, len(claims))
	for _, cl := range claims {
		out = append(out, toClaimResponse(cl))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"claims": out})
}

func (h *ClaimsHandler) get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid claim id")
	}
	claim, err := h.Store.GetClaim(c.Request().Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runtime.CurrentRole(c) != store.RoleAdmin {
		userID, _ := runtime.CurrentUserID(c)
		if claim.ClaimantUserID != userID {
			return echo.NewHTTPError(http.StatusForbidden, "not your claim")
		}
	}
	return c.JSON(http.StatusOK, toClaimResponse(claim))
}

var claimTransitions = map[string]bool{
	store.ClaimStatusVerified:  true,
	store.ClaimStatusApproved:  true,
	store.ClaimStatusRejected:  true,
	store.ClaimStatusCancelled: true,
}

// decide moves a claim through the admin workflow. Approving a claim marks
// the item claimed and notifies the claimant.
func (h *ClaimsHandler) decide(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid claim id")
	}
	var req ClaimDecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !claimTransitions[req.Status] {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid claim status")
	}
	var notes *string
	if req.AdminNotes != "" {
		notes = &req.AdminNotes
	}
	var verifier *int64
	if actor, ok := runtime.CurrentUserID(c); ok {
		verifier = &actor
	}
	claim, err := h.Store.UpdateClaimStatus(ctx, id, req.Status, verifier, notes)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	switch req.Status {
	case store.ClaimStatusApproved:
		_ = h.Store.UpdateItemStatus(ctx, claim.ItemID, store.ItemStatusClaimed)
		h.notifyUser(c, claim.ClaimantUserID, "claim_approved",
			"Claim approved",
			"Your claim was approved. Pick the item up at the lost and found office.",
			map[string]interface{}{"claimId": claim.ID, "itemId": claim.ItemID})
	case store.ClaimStatusRejected:
		h.notifyUser(c, claim.ClaimantUserID, "claim_rejected",
			"Claim rejected",
			"Your claim was rejected. Contact the office if you believe this is a mistake.",
			map[string]interface{}{"claimId": claim.ID, "itemId": claim.ItemID})
	}
	if actor, ok := runtime.CurrentUserID(c); ok {
		_ = h.Store.AppendAudit(ctx, &actor, "claim."+req.Status, "claim", &claim.ID, map[string]interface{}{"itemId": claim.ItemID})
	}
	return c.JSON(http.StatusOK, toClaimResponse(claim))
}

// markReturned closes out an approved claim once the item is handed over.
func (h *ClaimsHandler) markReturned(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid claim id")
	}
	claim, err := h.Store.GetClaim(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "claim not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if claim.Status != store.ClaimStatusApproved {
		return echo.NewHTTPError(http.StatusConflict, "claim is not approved")
	}
	if err := h.Store.UpdateItemStatus(ctx, claim.ItemID, store.ItemStatusClosed); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.notifyUser(c, claim.ClaimantUserID, "item_returned",
		"Item returned",
		"The item was marked as returned. Thanks for using campus lost and found.",
		map[string]interface{}{"claimId": claim.ID, "itemId": claim.ItemID})
	if actor, ok := runtime.CurrentUserID(c); ok {
		_ = h.Store.AppendAudit(ctx, &actor, "claim.return", "claim", &claim.ID, map[string]interface{}{"itemId": claim.ItemID})
	}
	return c.JSON(http.StatusOK, toClaimResponse(claim))
}

func (h *ClaimsHandler) notifyUser(c echo.Context, userID int64, kind, title, body string, data map[string]interface{}) {
	ctx := c.Request().Context()
	row, err := h.Store.CreateNotification(ctx, userID, kind, title, body, data)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Printf("notify user %d: %v", userID, err)
		}
		return
	}
	if h.Bus != nil {
		if err := h.Bus.Publish(ctx, userID, notify.Event{
			ID: row.ID, Kind: row.Kind, Title: row.Title, Body: row.Body, Data: row.Data, CreatedAt: row.CreatedAt,
		}); err != nil && h.Logger != nil {
			h.Logger.Printf("publish notification %d: %v", row.ID, err)
		}
	}
}
