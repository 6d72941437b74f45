package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/response"
)

// RequestValidator adapts go-playground/validator to echo.Validator.  Field
// names in errors are the json tag names the client sent.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator builds the validator installed on the echo instance.
func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i any) error { return rv.v.Struct(i) }

// missingFields lists the fields that failed a required rule.
func missingFields(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	var out []string
	for _, fe := range ve {
		if fe.Tag() == "required" {
			out = append(out, fe.Field())
		}
	}
	return out
}

// invalidFields describes every failed rule as "field (tag)".
func invalidFields(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fe.Field()+" ("+fe.Tag()+")")
	}
	return strings.Join(parts, ", ")
}

// bindValid binds the body into req and validates it.  On failure it writes
// the 400 response and returns ok=false.
func bindValid(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		if missing := missingFields(err); len(missing) > 0 {
			return false, response.Fail(c, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		}
		return false, response.Fail(c, http.StatusBadRequest, "invalid fields: "+invalidFields(err))
	}
	return true, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
