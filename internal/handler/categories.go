package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/response"
)

type CategoryHandler struct {
	Categories *repository.CategoryRepo
}

func NewCategoryHandler(r *repository.CategoryRepo) *CategoryHandler {
	return &CategoryHandler{Categories: r}
}

type categoryReq struct {
	Name  string `json:"name" validate:"required"`
	Image string `json:"image" validate:"required"`
}

// Create adds a category; names are unique.
func (h *CategoryHandler) Create(c echo.Context) error {
	var req categoryReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	cat, err := h.Categories.Create(ctx, req.Name, req.Image)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryExists) {
			return response.Fail(c, http.StatusConflict, "category already exists")
		}
		return response.Error(c, err)
	}
	return response.Message(c, http.StatusCreated, "category created", cat)
}

// List returns every category.
func (h *CategoryHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	cats, err := h.Categories.List(ctx)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, cats)
}
