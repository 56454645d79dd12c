package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/store"
)

type UsersHandler struct {
	Store *store.Store
}

func (h *UsersHandler) Register(g *echo.Group) {
	g.Use(runtime.RequireAdmin())
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
}

// userDirectoryEntry is one admin directory row with activity counters.
type userDirectoryEntry struct {
	UserResponse
	ItemsReported       int64 `json:"itemsReported"`
	ClaimsMade          int64 `json:"claimsMade"`
	UnreadNotifications int64 `json:"unreadNotifications"`
}

// list is the paginated admin directory. q searches email, student id and
// first/last name.
func (h *UsersHandler) list(c echo.Context) error {
	f := store.UserFilter{
		Role:  strings.TrimSpace(c.QueryParam("role")),
		Query: c.QueryParam("q"),
	}
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			f.Limit = n
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			f.Offset = n
		}
	}
	users, total, err := h.Store.ListUsers(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]userDirectoryEntry, 0, len(users))
	for _, u := range users {
		out = append(out, userDirectoryEntry{
			UserResponse:        toUserResponse(u.User),
			ItemsReported:       u.ItemsReported,
			ClaimsMade:          u.ClaimsMade,
			UnreadNotifications: u.UnreadNotifications,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": out, "total": total})
}

func (h *UsersHandler) get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	u, err := h.Store.GetUser(c.Request().Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": toUserResponse(u)})
}

// update edits profile fields, role and, with the current password, the
// password itself.
func (h *UsersHandler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	patch := store.UserPatch{
		FirstName:  trimPtr(req.FirstName),
		MiddleName: trimPtr(req.MiddleName),
		LastName:   trimPtr(req.LastName),
		StudentID:  trimPtr(req.StudentID),
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" || !strings.Contains(email, "@") {
			return echo.NewHTTPError(http.StatusBadRequest, "valid email is required")
		}
		patch.Email = &email
	}
	if req.Role != nil {
		role := strings.TrimSpace(*req.Role)
		if role != store.RoleStudent && role != store.RoleAdmin {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
		}
		patch.Role = &role
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "current password is required to set a new password")
		}
		u, err := h.Store.GetUser(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				return echo.NewHTTPError(http.StatusNotFound, "user not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "current password is incorrect")
		}
		if len(req.NewPassword) < 8 {
			return echo.NewHTTPError(http.StatusBadRequest, "new password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		s := string(hash)
		patch.PasswordHash = &s
	}

	u, err := h.Store.UpdateUser(ctx, id, patch)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			if strings.Contains(pgErr.Constraint, "student_id") {
				return echo.NewHTTPError(http.StatusConflict, "student id already registered")
			}
			return echo.NewHTTPError(http.StatusConflict, "email already in use")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": toUserResponse(u)})
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
