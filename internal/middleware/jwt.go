package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/storefront-api/internal/response"
	"github.com/iliyamo/storefront-api/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's id and email claims into the request context.  The
// provided secret must match the one used when issuing tokens.  A missing
// or malformed header is answered with 401; a token that fails
// verification, has expired or lacks its claims is answered with 403.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c.Request())
			if raw == "" {
				return response.Fail(c, http.StatusUnauthorized, "access token required")
			}

			// Signature, algorithm (HS256 only) and expiry are checked here.
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return response.Fail(c, http.StatusForbidden, "invalid or expired token")
			}

			// Handlers read these back through UserID / c.Get("email").
			c.Set(CtxUserID, claims.ID)
			c.Set(CtxEmail, claims.Email)
			return next(c)
		}
	}
}

// BearerToken returns the token of an "Authorization: Bearer <tok>" header,
// or "" when the header is missing or uses another scheme.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// TokenFromQuery copies a ?token= query parameter into the Authorization
// header when none was sent.  Browsers cannot set headers on a websocket
// handshake, so the admin feed route installs this before JWTAuth.
func TokenFromQuery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Header.Get("Authorization") == "" {
			if tok := c.QueryParam("token"); tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
		}
		return next(c)
	}
}
