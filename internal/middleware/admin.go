package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/response"
)

// RoleReader loads a user's current role from storage.
type RoleReader interface {
	GetRole(ctx context.Context, id uint64) (string, error)
}

// RequireAdmin returns a middleware that lets the request through only when
// the authenticated user's stored role is ADMIN.  The role is read fresh on
// every request so a demotion takes effect immediately.  It must run after
// JWTAuth.
func RequireAdmin(users RoleReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserID(c)
			if !ok {
				return response.Fail(c, http.StatusForbidden, "forbidden")
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			role, err := users.GetRole(ctx, uid)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				response.Logger(c).WithError(err).WithField("user_id", uid).Error("admin gate: load role")
				return response.Fail(c, http.StatusInternalServerError, "internal error")
			}
			if !(model.User{ID: uid, Role: role}).IsAdmin() {
				return response.FailCode(c, http.StatusForbidden, "admin privileges required", "ADMIN_REQUIRED")
			}
			return next(c)
		}
	}
}
