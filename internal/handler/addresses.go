package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/response"
	"github.com/iliyamo/storefront-api/internal/utils"
)

// AddressHandler serves the caller's delivery addresses.
type AddressHandler struct {
	Addresses *repository.AddressRepo
}

func NewAddressHandler(r *repository.AddressRepo) *AddressHandler {
	return &AddressHandler{Addresses: r}
}

type addressReq struct {
	AddressLine string `json:"address_line" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state"`
	Pincode     string `json:"pincode" validate:"required"`
	Country     string `json:"country" validate:"required"`
	Mobile      string `json:"mobile" validate:"required"`
}

type addressPatchReq struct {
	AddressLine *string `json:"address_line"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Pincode     *string `json:"pincode"`
	Country     *string `json:"country"`
	Mobile      *string `json:"mobile"`
}

// checkFormats validates pincode and mobile when present; 422 on mismatch.
func checkFormats(c echo.Context, pincode, mobile *string) (bool, error) {
	if pincode != nil && !utils.ValidPincode(*pincode) {
		return false, response.Fail(c, http.StatusUnprocessableEntity, "pincode must be 5 digits")
	}
	if mobile != nil && !utils.ValidAddressMobile(*mobile) {
		return false, response.Fail(c, http.StatusUnprocessableEntity, "mobile must be 10 digits")
	}
	return true, nil
}

// Create stores a new live address for the caller.
func (h *AddressHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req addressReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	trim(&req.AddressLine, &req.City, &req.State, &req.Pincode, &req.Country, &req.Mobile)
	if err := c.Validate(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "missing required fields: "+strings.Join(missingFields(err), ", "))
	}
	if ok, err := checkFormats(c, &req.Pincode, &req.Mobile); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a := model.Address{
		UserID:      uid,
		AddressLine: req.AddressLine,
		City:        req.City,
		State:       req.State,
		Pincode:     req.Pincode,
		Country:     req.Country,
		Mobile:      req.Mobile,
	}
	if err := h.Addresses.Create(ctx, &a); err != nil {
		return response.Error(c, err)
	}
	return response.JSON(c, http.StatusCreated, echo.Map{"id": a.ID, "message": "address created"})
}

// List returns the caller's live addresses, newest first.
func (h *AddressHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	list, err := h.Addresses.ListActive(ctx, uid)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, list)
}

// Update applies the supplied fields to one of the caller's addresses.
func (h *AddressHandler) Update(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid address id")
	}
	var req addressPatchReq
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	trimPresent(req.AddressLine, req.City, req.State, req.Pincode, req.Country, req.Mobile)
	if blank := blankFields(map[string]*string{
		"address_line": req.AddressLine, "city": req.City, "pincode": req.Pincode,
		"country": req.Country, "mobile": req.Mobile,
	}); len(blank) > 0 {
		return response.Fail(c, http.StatusBadRequest, "fields cannot be empty: "+strings.Join(blank, ", "))
	}
	if ok, err := checkFormats(c, req.Pincode, req.Mobile); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Addresses.Update(ctx, id, uid, repository.AddressPatch{
		AddressLine: req.AddressLine,
		City:        req.City,
		State:       req.State,
		Pincode:     req.Pincode,
		Country:     req.Country,
		Mobile:      req.Mobile,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "address not found")
		}
		return response.Error(c, err)
	}
	return response.Message(c, http.StatusOK, "address updated", nil)
}

// Delete marks one of the caller's addresses inactive.  Orders keep
// pointing at it.
func (h *AddressHandler) Delete(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid address id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Addresses.SoftDelete(ctx, id, uid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "address not found")
		}
		return response.Error(c, err)
	}
	return response.Message(c, http.StatusOK, "address deleted", nil)
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// trimPresent trims the optional fields that were sent.
func trimPresent(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

// blankFields lists, in sorted order, the sent fields that are empty.
func blankFields(fields map[string]*string) []string {
	var out []string
	for name, v := range fields {
		if v != nil && *v == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
