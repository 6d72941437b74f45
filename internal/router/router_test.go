package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/service"
	"github.com/iliyamo/storefront-api/internal/utils"
)

const secret = "router-secret"

type roles map[uint64]string

func (r roles) GetRole(_ context.Context, id uint64) (string, error) {
	if role, ok := r[id]; ok {
		return role, nil
	}
	return "", repository.ErrNotFound
}

func newServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewUserRepo(db)
	orders := repository.NewOrderRepo(db)
	rr := roles{1: "ADMIN", 2: "USER"}
	e := echo.New()
	Register(e, Deps{
		JWTSecret:  secret,
		Users:      rr,
		Auth:       handler.NewAuthHandler(config.Config{JWTSecret: secret}, users),
		Products:   handler.NewProductHandler(repository.NewProductRepo(db), nil),
		Categories: handler.NewCategoryHandler(repository.NewCategoryRepo(db)),
		Addresses:  handler.NewAddressHandler(repository.NewAddressRepo(db)),
		Orders: handler.NewOrderHandler(orders, rr, &service.Checkout{DB: db},
			&service.Sweeper{Orders: orders, MaxAge: time.Minute}),
	})
	return e, mock
}

func do(t *testing.T, e *echo.Echo, method, path string, uid uint64) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if uid != 0 {
		tok, err := utils.NewAccessToken(secret, uid, "u@example.com", 5)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestPayPalCancelIsNotAnOrderID(t *testing.T) {
	e, mock := newServer(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_id FROM orders").WillReturnRows(sqlmock.NewRows([]string{"order_id"}))
	mock.ExpectRollback()

	rec, out := do(t, e, http.MethodGet, "/api/orders/paypal/cancel", 2)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), out["data"].(map[string]any)["deleted"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersRequireToken(t *testing.T) {
	e, _ := newServer(t)
	rec, _ := do(t, e, http.MethodGet, "/api/orders", 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesAreGated(t *testing.T) {
	e, _ := newServer(t)
	rec, out := do(t, e, http.MethodGet, "/api/admin/users", 2)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ADMIN_REQUIRED", out["code"])

	rec, _ = do(t, e, http.MethodDelete, "/api/orders/9", 2)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/products", 2)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminSelfDeleteThroughRouter(t *testing.T) {
	e, _ := newServer(t)
	rec, _ := do(t, e, http.MethodDelete, "/api/admin/users/1", 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	e, _ := newServer(t)
	rec, _ := do(t, e, http.MethodGet, "/healthz", 0)
	assert.Equal(t, http.StatusOK, rec.Code)
}
