package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/response"
	"github.com/iliyamo/storefront-api/internal/service"
)

// paymentTimeout bounds requests that call the payment provider.
const paymentTimeout = 30 * time.Second

// OrderHandler serves /api/orders.
type OrderHandler struct {
	Orders   *repository.OrderRepo
	Users    middleware.RoleReader
	Checkout *service.Checkout
	Sweeper  *service.Sweeper
}

func NewOrderHandler(o *repository.OrderRepo, u middleware.RoleReader, co *service.Checkout, sw *service.Sweeper) *OrderHandler {
	return &OrderHandler{Orders: o, Users: u, Checkout: co, Sweeper: sw}
}

// placedOrder is the created order with its delivery address inlined.
type placedOrder struct {
	*model.Order
	AddressDetails *model.Address `json:"address_details"`
}

func newPlacedOrder(o *model.Order) placedOrder {
	cp := *o
	addr := cp.Address
	cp.Address = nil
	return placedOrder{Order: &cp, AddressDetails: addr}
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type adminOrderReq struct {
	Status string           `json:"status" validate:"required"`
	Total  *decimal.Decimal `json:"total_amt" validate:"required"`
}

type captureReq struct {
	PayPalOrderID string `json:"paypalOrderId" validate:"required"`
}

// Create places a cash order.
func (h *OrderHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req service.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	order, err := h.Checkout.PlaceCashOrder(ctx, uid, req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, newPlacedOrder(order))
}

// CreatePayPal records a pending order and opens the provider checkout.
func (h *OrderHandler) CreatePayPal(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req service.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), paymentTimeout)
	defer cancel()

	res, err := h.Checkout.StartPayPal(ctx, uid, req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.JSON(c, http.StatusCreated, echo.Map{
		"order":        newPlacedOrder(res.Order),
		"paypal":       res.Remote,
		"approval_url": res.Remote.ApprovalURL,
	})
}

// Capture settles a PayPal order after the buyer approved it.
func (h *OrderHandler) Capture(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req captureReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), paymentTimeout)
	defer cancel()

	res, err := h.Checkout.Capture(ctx, uid, req.PayPalOrderID)
	if err != nil {
		return response.Error(c, err)
	}
	data := echo.Map{
		"orderId":          res.Order.OrderID,
		"captureId":        res.CaptureID,
		"paymentMethod":    res.Order.PaymentMethod,
		"status":           res.Order.Status,
		"alreadyCompleted": res.AlreadyCompleted,
	}
	if len(res.Shortages) > 0 {
		data["shortages"] = res.Shortages
	}
	return response.OK(c, data)
}

// Cancel runs the stale pending-order sweep on demand.
func (h *OrderHandler) Cancel(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	n, err := h.Sweeper.Sweep(ctx, time.Now())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, echo.Map{"deleted": n})
}

// List returns every order to admins and the caller's own orders to
// everyone else.
func (h *OrderHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Users.GetRole(ctx, uid)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, err)
	}
	scope := &uid
	if role == model.RoleAdmin {
		scope = nil
	}
	orders, err := h.Orders.List(ctx, scope)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, orders)
}

// Get returns one of the caller's orders with items and address.
func (h *OrderHandler) Get(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid order id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	o, err := h.Orders.GetForUser(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "order not found")
		}
		return response.Error(c, err)
	}
	return response.OK(c, o)
}

// UpdateStatus lets the owner move their order to another status.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid order id")
	}
	var req statusReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	status, valid := model.NormalizeStatus(req.Status)
	if !valid {
		return response.Fail(c, http.StatusBadRequest, "invalid status")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Orders.UpdateStatusForUser(ctx, id, uid, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "order not found")
		}
		return response.Error(c, err)
	}
	return response.OK(c, echo.Map{"id": id, "status": status})
}

// Update sets status and total of any order.  Admin only.
func (h *OrderHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid order id")
	}
	var req adminOrderReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	status, valid := model.NormalizeStatus(req.Status)
	if !valid {
		return response.Fail(c, http.StatusBadRequest, "invalid status")
	}
	if req.Total.IsNegative() {
		return response.Fail(c, http.StatusBadRequest, "total_amt must not be negative")
	}
	total := req.Total.Round(2)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Orders.AdminUpdate(ctx, id, status, total); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "order not found")
		}
		return response.Error(c, err)
	}
	return response.OK(c, echo.Map{"order_id": id, "status": status, "total_amt": total})
}

// Delete removes an order and its line items.  Admin only.
func (h *OrderHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return response.Fail(c, http.StatusBadRequest, "invalid order id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Orders.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.Fail(c, http.StatusNotFound, "order not found")
		}
		return response.Error(c, err)
	}
	return response.Message(c, http.StatusOK, "order deleted", nil)
}
