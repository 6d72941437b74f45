package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/utils"
)

const secret = "test-secret"

func serve(t *testing.T, mw []echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	e.GET("/p", func(c echo.Context) error {
		id, _ := UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "email": Email(c)})
	}, mw...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func bearer(tok string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req
}

func TestJWTAuth(t *testing.T) {
	good, err := utils.NewAccessToken(secret, 5, "ann@example.com", 10)
	require.NoError(t, err)
	expired, err := utils.NewAccessToken(secret, 5, "ann@example.com", -10)
	require.NoError(t, err)
	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "ann@example.com", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	mw := []echo.MiddlewareFunc{JWTAuth(secret)}

	rec, body := serve(t, mw, bearer(good.Token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["id"])
	assert.Equal(t, "ann@example.com", body["email"])

	rec, body = serve(t, mw, bearer(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])

	basic := httptest.NewRequest(http.MethodGet, "/p", nil)
	basic.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	rec, _ = serve(t, mw, basic)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for name, tok := range map[string]string{
		"garbage":    "not.a.jwt",
		"expired":    expired.Token,
		"missing id": noID,
	} {
		rec, _ = serve(t, mw, bearer(tok))
		assert.Equal(t, http.StatusForbidden, rec.Code, name)
	}

	other, err := utils.NewAccessToken("someone-else", 5, "ann@example.com", 10)
	require.NoError(t, err)
	rec, _ = serve(t, mw, bearer(other.Token))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type roles map[uint64]string

func (r roles) GetRole(_ context.Context, id uint64) (string, error) {
	if id == 666 {
		return "", errors.New("db down")
	}
	role, ok := r[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return role, nil
}

func TestRequireAdmin(t *testing.T) {
	users := roles{1: "ADMIN", 2: "USER"}
	mw := []echo.MiddlewareFunc{JWTAuth(secret), RequireAdmin(users)}
	token := func(id uint64) string {
		tok, err := utils.NewAccessToken(secret, id, "x@example.com", 10)
		require.NoError(t, err)
		return tok.Token
	}

	rec, _ := serve(t, mw, bearer(token(1)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := serve(t, mw, bearer(token(2)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ADMIN_REQUIRED", body["code"])

	rec, body = serve(t, mw, bearer(token(3)))
	assert.Equal(t, http.StatusForbidden, rec.Code, "unknown user")
	assert.Equal(t, "ADMIN_REQUIRED", body["code"])

	rec, _ = serve(t, mw, bearer(token(666)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, _ = serve(t, []echo.MiddlewareFunc{RequireAdmin(users)}, bearer(""))
	assert.Equal(t, http.StatusForbidden, rec.Code, "no identity in context")
}

func TestRequireAdminLogsRoleLookupFailure(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	tok, err := utils.NewAccessToken(secret, 666, "x@example.com", 10)
	require.NoError(t, err)

	req := bearer(tok.Token)
	req.Header.Set(echo.HeaderXRequestID, "req-7")
	rec, _ := serve(t, []echo.MiddlewareFunc{JWTAuth(secret), RequireAdmin(roles{})}, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "req-7", entry.Data["request_id"])
	assert.Equal(t, uint64(666), entry.Data["user_id"])
}

func TestDisabledRedisMiddlewarePassThrough(t *testing.T) {
	mw := []echo.MiddlewareFunc{
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		Metrics(),
	}
	rec, _ := serve(t, mw, bearer(""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, PurgeCache(context.Background(), nil, "x"))
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	b, err := encodePayload(200, hdr, []byte(`[1,2]`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(b)
	require.True(t, ok)
	assert.Equal(t, 200, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `[1,2]`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCacheKeyStrategies(t *testing.T) {
	e := echo.New()
	mk := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/products")
		return c
	}
	cfg := config.CacheConfig{Prefix: "sf:cache", KeyStrategy: "route_query"}
	a := cacheKeyFrom(cfg, mk("/api/products?page=1"))
	b := cacheKeyFrom(cfg, mk("/api/products?page=2"))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^sf:cache:[0-9a-f]{40}$`, a)

	cfg.KeyStrategy = "route"
	assert.Equal(t, cacheKeyFrom(cfg, mk("/api/products?page=1")), cacheKeyFrom(cfg, mk("/api/products?page=2")))
}

func TestCacheKeyPerProduct(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "sf:cache", KeyStrategy: "route"}
	e := echo.New()
	keys := map[string]string{}
	e.GET("/api/products/:id", func(c echo.Context) error {
		keys[c.Param("id")] = cacheKeyFrom(cfg, c)
		return c.NoContent(http.StatusOK)
	})
	for _, id := range []string{"1", "2"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil))
	}
	require.Len(t, keys, 2)
	assert.NotEqual(t, keys["1"], keys["2"])
}

func TestRateKeyUsesUserID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/orders", nil), httptest.NewRecorder())
	c.SetPath("/api/orders")
	cfg := config.RateLimitConfig{Prefix: "sf:rl", KeyStrategy: "user"}
	assert.Equal(t, "sf:rl:user:anon", buildRateKey(cfg, c))
	c.Set(CtxUserID, uint64(12))
	assert.Equal(t, "sf:rl:user:12", buildRateKey(cfg, c))
}

func TestTokenFromQuery(t *testing.T) {
	good, err := utils.NewAccessToken(secret, 8, "ws@example.com", 10)
	require.NoError(t, err)
	mw := []echo.MiddlewareFunc{TokenFromQuery, JWTAuth(secret)}

	rec, body := serve(t, mw, httptest.NewRequest(http.MethodGet, "/p?token="+good.Token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(8), body["id"])

	// a header wins over the query parameter
	req := bearer("garbage")
	req.URL.RawQuery = "token=" + good.Token
	rec, _ = serve(t, mw, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(req))
	req.Header.Set("Authorization", "Bearer  abc ")
	assert.Equal(t, "abc", BearerToken(req))
}
