package server

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/store"
)

type AuthHandler struct {
	Store  *store.Store
	Secret []byte
	TTL    time.Duration
}

func (a *AuthHandler) Register(g *echo.Group) {
	g.POST("/register/student", a.register)
	g.POST("/login", a.login)
	g.POST("/logout", a.logout)
}

// RegisterProtected mounts endpoints that require an authenticated caller.
func (a *AuthHandler) RegisterProtected(g *echo.Group) {
	g.GET("/me", a.me)
	g.POST("/register/admin", a.registerAdmin, runtime.RequireAdmin())
}

// Register
//
//	@Summary		Student signup
//	@Description	Create a new student account
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		RegisterRequest	true	"Signup payload"
//	@Success		201		{object}	UserResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		409		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/auth/register/student [post]
func (a *AuthHandler) register(c echo.Context) error {
	return a.createAccount(c, store.RoleStudent)
}

// RegisterAdmin creates an admin account. Only an existing admin may call it.
func (a *AuthHandler) registerAdmin(c echo.Context) error {
	return a.createAccount(c, store.RoleAdmin)
}

func (a *AuthHandler) createAccount(c echo.Context, role string) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.MiddleName = strings.TrimSpace(req.MiddleName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if role == store.RoleStudent && req.StudentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "student id is required")
	}
	if req.FirstName == "" || req.LastName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "first and last name are required")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "valid email is required")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	u, err := a.Store.CreateUser(c.Request().Context(), store.User{
		Email:        req.Email,
		StudentID:    req.StudentID,
		FirstName:    req.FirstName,
		MiddleName:   req.MiddleName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			if strings.Contains(pgErr.Constraint, "student_id") {
				return echo.NewHTTPError(http.StatusConflict, "student id already registered")
			}
			return echo.NewHTTPError(http.StatusConflict, "email already in use")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toUserResponse(u))
}

// Login
//
//	@Summary		Login
//	@Description	Returns JWT in cookie and body; supports Bearer flows
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		LoginRequest	true	"Login payload"
//	@Success		200		{object}	TokenResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		401		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/auth/login [post]
func (a *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := a.Store.GetUserByEmail(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	ttl := a.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	signed, err := runtime.SignJWT(u.ID, u.Role, a.Secret, ttl)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	_ = a.Store.TouchLastLogin(c.Request().Context(), u.ID)

	cookie := new(http.Cookie)
	cookie.Name = "auth"
	cookie.Value = signed
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteLaxMode
	if os.Getenv("LOSTFOUND_ENV") == "prod" {
		cookie.Secure = true
	}
	c.SetCookie(cookie)
	// also return token for Bearer flows
	c.Response().Header().Set("Authorization", "Bearer "+signed)
	return c.JSON(http.StatusOK, TokenResponse{Token: signed, User: toUserResponse(u)})
}

// Logout
//
//	@Summary	Logout
//	@Tags		auth
//	@Produce	json
//	@Success	200	{string}	string	"OK"
//	@Router		/api/auth/logout [post]
func (a *AuthHandler) logout(c echo.Context) error {
	cookie := new(http.Cookie)
	cookie.Name = "auth"
	cookie.Value = ""
	cookie.Path = "/"
	cookie.MaxAge = -1
	c.SetCookie(cookie)
	return c.NoContent(http.StatusOK)
}

func (a *AuthHandler) me(c echo.Context) error {
	userID, ok := runtime.CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	u, err := a.Store.GetUser(c.Request().Context(), userID)
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}
