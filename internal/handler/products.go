package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/response"
)

// ProductHandler serves the catalogue.  Purge, when set, drops cached
// listings after a write.
type ProductHandler struct {
	Products *repository.ProductRepo
	Purge    func(ctx context.Context) error
}

func NewProductHandler(p *repository.ProductRepo, purge func(ctx context.Context) error) *ProductHandler {
	return &ProductHandler{Products: p, Purge: purge}
}

// productReq is the admin product form.  image and more_details arrive
// either as JSON values or as JSON-encoded strings.
type productReq struct {
	Name        string           `json:"name" validate:"required"`
	Image       json.RawMessage  `json:"image"`
	CategoryID  uint64           `json:"category_id" validate:"required"`
	Unit        string           `json:"unit"`
	Stock       int              `json:"stock" validate:"gte=0"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Discount    decimal.Decimal  `json:"discount"`
	Description string           `json:"description"`
	MoreDetails json.RawMessage  `json:"more_details"`
	Publish     *bool            `json:"publish"`
}

var hundred = decimal.NewFromInt(100)

func (r productReq) product() (model.Product, string) {
	if r.Price.IsNegative() {
		return model.Product{}, "price must not be negative"
	}
	if r.Discount.IsNegative() || r.Discount.GreaterThan(hundred) {
		return model.Product{}, "discount must be between 0 and 100"
	}
	p := model.Product{
		Name:        strings.TrimSpace(r.Name),
		Image:       model.DecodeImages(unwrapJSON(r.Image)),
		CategoryID:  r.CategoryID,
		Unit:        r.Unit,
		Stock:       r.Stock,
		Price:       *r.Price,
		Discount:    r.Discount,
		Description: r.Description,
		MoreDetails: model.DecodeDetails(unwrapJSON(r.MoreDetails)),
		Publish:     true,
	}
	if r.Publish != nil {
		p.Publish = *r.Publish
	}
	return p, ""
}

// unwrapJSON returns the document inside a JSON string such as
// "[\"a.jpg\"]"; anything else is returned unchanged.
func unwrapJSON(raw json.RawMessage) json.RawMessage {
	var inner string
	if json.Unmarshal(raw, &inner) != nil {
		return raw
	}
	if t := strings.TrimSpace(inner); strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
		return json.RawMessage(t)
	}
	return raw
}

func (h *ProductHandler) purge(c echo.Context) {
	if h.Purge == nil {
		return
	}
	if err := h.Purge(context.WithoutCancel(c.Request().Context())); err != nil {
		reqLog(c).WithError(err).Warn("purge product cache failed")
	}
}

// List returns the catalogue as a bare array.
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	products, err := h.Products.List(ctx)
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

// Get returns one product as a bare object.
func (h *ProductHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "product not found")
		}
		return response.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Create adds a product.
func (h *ProductHandler) Create(c echo.Context) error {
	var req productReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	p, msg := req.product()
	if msg != "" {
		return response.Fail(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Products.Create(ctx, &p); err != nil {
		return response.Error(c, err)
	}
	h.purge(c)
	return response.JSON(c, http.StatusCreated, echo.Map{"message": "product created", "id": p.ID})
}

// Update overwrites a product.
func (h *ProductHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "product id is required")
	}
	var req productReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	p, msg := req.product()
	if msg != "" {
		return response.Fail(c, http.StatusBadRequest, msg)
	}
	p.ID = id
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Products.Update(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "product not found")
		}
		return response.Error(c, err)
	}
	h.purge(c)
	return response.JSON(c, http.StatusOK, echo.Map{"message": "product updated"})
}

// Delete removes a product.
func (h *ProductHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "product id is required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "product not found")
		}
		return response.Error(c, err)
	}
	h.purge(c)
	return response.JSON(c, http.StatusOK, echo.Map{"message": "product deleted"})
}
