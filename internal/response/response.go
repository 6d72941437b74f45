// Package response writes the JSON envelope shared by every endpoint:
// {"success":true,"data":...} on success and
// {"success":false,"error":"...","code":"..."} on failure.
package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/service"
)

// OK writes 200 with data.
func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

// Created writes 201 with data.
func Created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": data})
}

// Message writes a success envelope carrying a human readable message and
// optional data.
func Message(c echo.Context, status int, msg string, data any) error {
	body := echo.Map{"success": true, "message": msg}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

// Fail writes a failure envelope.
func Fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}

// FailCode writes a failure envelope with a machine readable code.
func FailCode(c echo.Context, status int, msg, code string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg, "code": code})
}

// Error maps err onto a status and failure envelope.  A service error keeps
// its own kind even when it wraps a repository sentinel.  Bare sentinels map
// to their natural status, and anything else is logged and reported as 500
// without details.
func Error(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return Fail(c, http.StatusNotFound, "not found")
		case errors.Is(err, repository.ErrForbidden):
			return Fail(c, http.StatusForbidden, "forbidden")
		case errors.Is(err, repository.ErrConflict):
			return Fail(c, http.StatusConflict, "conflict")
		}
		se = service.AsError(err)
	}
	status := se.Kind.Status()
	if status >= http.StatusInternalServerError {
		Logger(c).WithError(err).WithFields(logrus.Fields{"method": c.Request().Method, "route": c.Path()}).
			Error("request failed")
	}
	return Fail(c, status, se.Message)
}

// Logger returns the standard logrus logger tagged with the request id.
func Logger(c echo.Context) *logrus.Entry {
	id := c.Response().Header().Get(echo.HeaderXRequestID)
	if id == "" {
		id = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	return logrus.WithField("request_id", id)
}

// JSON writes body with success=true added, for endpoints whose payload
// keys sit at the top level rather than under data.
func JSON(c echo.Context, status int, body echo.Map) error {
	body["success"] = true
	return c.JSON(status, body)
}
