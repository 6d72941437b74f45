package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/response"
	"github.com/iliyamo/storefront-api/internal/utils"
)

// AuthHandler serves the /api/user endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileReq struct {
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
	Mobile *string `json:"mobile"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// reqLog returns the standard logger tagged with the request id.
func reqLog(c echo.Context) *logrus.Entry {
	return response.Logger(c)
}

// Register creates a USER account.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.Name, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return response.Fail(c, http.StatusBadRequest, "email already registered")
		}
		reqLog(c).WithError(err).Error("create user failed")
		return response.Fail(c, http.StatusInternalServerError, "create user failed")
	}
	return response.JSON(c, http.StatusCreated, echo.Map{
		"user": userPart{ID: uid, Name: req.Name, Email: strings.ToLower(strings.TrimSpace(req.Email))},
	})
}

// Login checks the credentials and returns an access token.  A row still
// holding a plaintext password is upgraded to bcrypt on success.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		reqLog(c).WithError(err).Error("load user failed")
		return response.Fail(c, http.StatusInternalServerError, "query failed")
	}
	ok, legacy := utils.CheckPassword(u.Password, req.Password)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if legacy {
		if hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost); err == nil {
			if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
				reqLog(c).WithError(err).WithField("user_id", u.ID).Warn("rehash legacy password failed")
			}
		}
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, h.Cfg.AccessTTLMin)
	if err != nil {
		return response.Fail(c, http.StatusInternalServerError, "issue access failed")
	}
	return response.JSON(c, http.StatusOK, echo.Map{
		"token":      access.Token,
		"expires_at": access.Exp,
		"user":       userPart{ID: u.ID, Name: u.Name, Email: u.Email},
	})
}

// Check validates the bearer token itself and returns the user it names.
// Unlike the gated routes every token problem is a 401 here, which is what
// the storefront's session probe expects.
func (h *AuthHandler) Check(c echo.Context) error {
	raw := middleware.BearerToken(c.Request())
	if raw == "" {
		return response.Fail(c, http.StatusUnauthorized, "access token required")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
	if err != nil {
		return response.Fail(c, http.StatusUnauthorized, "invalid or expired token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		return response.Error(c, err)
	}
	return response.JSON(c, http.StatusOK, echo.Map{"user": userPart{ID: u.ID, Name: u.Name, Email: u.Email}})
}

// Details returns the caller's profile.
func (h *AuthHandler) Details(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "user not found")
		}
		return response.Error(c, err)
	}
	return response.JSON(c, http.StatusOK, echo.Map{"user": u})
}

// UpdateProfile changes name, avatar and mobile of the caller.  The role is
// never taken from this body.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return response.Fail(c, http.StatusBadRequest, "name is required")
	}
	if req.Mobile != nil {
		m := strings.TrimSpace(*req.Mobile)
		if m == "" {
			req.Mobile = nil
		} else if !utils.ValidProfileMobile(m) {
			return response.Fail(c, http.StatusBadRequest, "invalid mobile number")
		} else {
			req.Mobile = &m
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, uid, req.Name, req.Avatar, req.Mobile); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusBadRequest, "could not update profile")
		}
		return response.Error(c, err)
	}
	return response.Message(c, http.StatusOK, "profile updated", nil)
}

// ----- admin user management -----

type adminUserReq struct {
	Name  string  `json:"name" validate:"required"`
	Email string  `json:"email" validate:"required,email"`
	Role  *string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

// ListUsers returns every user as a bare array.
func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// AdminUpdateUser edits name, email and optionally role of any user.
func (h *AuthHandler) AdminUpdateUser(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var req adminUserReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.Role != nil {
		r := strings.ToUpper(strings.TrimSpace(*req.Role))
		req.Role = &r
	}
	if err := c.Validate(&req); err != nil {
		if missing := missingFields(err); len(missing) > 0 {
			return response.Fail(c, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		}
		return response.Fail(c, http.StatusBadRequest, "invalid fields: "+invalidFields(err))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.AdminUpdate(ctx, id, strings.TrimSpace(req.Name), req.Email, req.Role); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return response.Fail(c, http.StatusConflict, "email already registered")
		}
		return response.Error(c, err)
	}
	return response.Message(c, http.StatusOK, "user updated", nil)
}

// AdminDeleteUser removes a user other than the caller.
func (h *AuthHandler) AdminDeleteUser(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid id")
	}
	if self, _ := middleware.UserID(c); self == id {
		return response.Fail(c, http.StatusBadRequest, "you cannot delete yourself")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		return response.Error(c, err)
	}
	return response.Message(c, http.StatusOK, "user deleted", nil)
}
