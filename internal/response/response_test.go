package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/service"
)

func writeError(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/1", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	require.NoError(t, Error(e.NewContext(req, rec), err))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestErrorSentinels(t *testing.T) {
	code, body := writeError(t, fmt.Errorf("load: %w", repository.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])

	code, _ = writeError(t, repository.ErrForbidden)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = writeError(t, repository.ErrConflict)
	assert.Equal(t, http.StatusConflict, code)
}

func TestErrorServiceKindWinsOverWrappedSentinel(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	code, body := writeError(t, service.Wrap(service.KindInternal, repository.ErrNotFound, "order vanished"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "order vanished", body["error"])

	code, _ = writeError(t, service.Wrap(service.KindConflict, repository.ErrNotFound, "busy"))
	assert.Equal(t, http.StatusConflict, code)
}

func TestErrorLogsServerFailuresWithRequestID(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	code, body := writeError(t, errors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body["error"])

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "req-42", entry.Data["request_id"])
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "db down")

	hook.Reset()
	writeError(t, service.Errorf(service.KindValidation, "bad input"))
	assert.Empty(t, hook.AllEntries(), "client errors are not logged")
}
