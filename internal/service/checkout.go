package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront-api/internal/metrics"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/payment"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// Gateway is the payment provider surface checkout needs.
type Gateway interface {
	CreateOrder(ctx context.Context, in payment.CreateOrderInput) (payment.RemoteOrder, error)
	GetOrder(ctx context.Context, id string) (payment.RemoteOrder, error)
	Capture(ctx context.Context, id string) (payment.RemoteOrder, error)
}

// LineRequest is one cart line as sent by the storefront.
type LineRequest struct {
	ProductID uint64          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Image     string          `json:"image"`
}

// CheckoutRequest is the body of both order creation endpoints.  Amount is
// only sent on the PayPal path and is checked against the server total.
type CheckoutRequest struct {
	DeliveryAddress uint64           `json:"delivery_address"`
	PaymentMethod   string           `json:"paymentMethod"`
	Amount          *decimal.Decimal `json:"amount"`
	Items           []LineRequest    `json:"items"`
}

// PayPalCheckout is the result of starting a provider checkout.
type PayPalCheckout struct {
	Order  *model.Order
	Remote payment.RemoteOrder
}

// Checkout places orders.  Gateway is nil when PayPal is not configured and
// Locker is nil when Redis is unavailable.
type Checkout struct {
	DB          *sql.DB
	Addresses   *repository.AddressRepo
	Products    *repository.ProductRepo
	Orders      *repository.OrderRepo
	Gateway     Gateway
	Locker      Locker
	Events      EventSink
	FrontendURL string
	Log         *logrus.Entry

	// NewOrderID generates the opaque order_id; uuid v4 unless overridden.
	NewOrderID func() string

	// Purge drops cached catalog responses after stock changes.  Optional.
	Purge func(ctx context.Context) error
}

var amountTolerance = decimal.RequireFromString("0.01")

func (s *Checkout) newOrderID() string {
	if s.NewOrderID != nil {
		return s.NewOrderID()
	}
	return uuid.NewString()
}

// stockChanged purges cached product responses.  A failed purge only means
// stale stock until the cache TTL runs out.
func (s *Checkout) stockChanged(ctx context.Context) {
	if s.Purge == nil {
		return
	}
	if err := s.Purge(ctx); err != nil {
		s.log().WithError(err).Warn("product cache purge failed")
	}
}

func (s *Checkout) log() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}

func validateRequest(req CheckoutRequest) error {
	if req.DeliveryAddress == 0 {
		return Errorf(KindValidation, "delivery_address is required")
	}
	if len(req.Items) == 0 {
		return Errorf(KindValidation, "items are required")
	}
	return nil
}

// liveAddress resolves the delivery address and enforces ownership.
func (s *Checkout) liveAddress(ctx context.Context, userID, id uint64) (model.Address, error) {
	addr, err := s.Addresses.GetLiveForUser(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return addr, Errorf(KindValidation, "delivery address not found for this user")
	}
	if err != nil {
		return addr, Wrap(KindInternal, err, "could not load delivery address")
	}
	return addr, nil
}

// priceLines validates every cart line against the locked product rows and
// computes the line totals.  Lines for the same product share its stock, and
// lines for the same variant share that variant's inventory.
func (s *Checkout) priceLines(ctx context.Context, tx *sql.Tx, items []LineRequest) ([]model.OrderItem, error) {
	type variant struct {
		product     uint64
		color, size string
	}
	products := make(map[uint64]model.Product, len(items))
	need := make(map[uint64]int, len(items))
	variantNeed := make(map[variant]int, len(items))
	lines := make([]model.OrderItem, 0, len(items))

	for i, in := range items {
		if in.ProductID == 0 {
			return nil, Errorf(KindValidation, "items[%d]: product_id is required", i)
		}
		if in.Quantity < 1 {
			return nil, Errorf(KindValidation, "items[%d]: quantity must be at least 1", i)
		}
		p, seen := products[in.ProductID]
		if !seen {
			var err error
			p, err = s.Products.GetForUpdateTx(ctx, tx, in.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, Errorf(KindNotFound, "product %d not found", in.ProductID)
			}
			if err != nil {
				return nil, Wrap(KindInternal, err, "could not load product")
			}
			products[p.ID] = p
		}

		need[p.ID] += in.Quantity
		if p.Stock < need[p.ID] {
			return nil, Errorf(KindValidation, "insufficient stock for %s", p.Name)
		}
		color, size := strings.TrimSpace(in.Color), strings.TrimSpace(in.Size)
		v := variant{p.ID, color, size}
		variantNeed[v] += in.Quantity
		if n, tracked := p.MoreDetails.VariantStock(color, size); tracked && n < variantNeed[v] {
			return nil, Errorf(KindValidation, "insufficient stock for %s (%s)", p.Name,
				strings.TrimSpace(color+" "+size))
		}

		price := in.UnitPrice
		if price.IsZero() {
			price = p.Price
		}
		discount := model.ClampDiscount(in.Discount)
		if price.LessThan(p.Price) || discount.GreaterThan(p.Discount) {
			return nil, Errorf(KindValidation, "price of %s has changed, refresh the cart", p.Name)
		}

		var image *string
		if img := strings.TrimSpace(in.Image); img != "" {
			image = &img
		} else if imgs := p.ImagesFor(color); len(imgs) > 0 {
			image = &imgs[0]
		}

		lines = append(lines, model.OrderItem{
			ProductID:   p.ID,
			Name:        p.Name,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			Discount:    discount,
			TotalPrice:  model.LineTotal(price, in.Quantity, discount),
			Image:       image,
			MoreDetails: model.NewLineDetails(color, size),
		})
	}
	return lines, nil
}

// insertOrder writes the header and its lines inside tx.
func (s *Checkout) insertOrder(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	if err := s.Orders.CreateTx(ctx, tx, o); err != nil {
		return Wrap(KindInternal, err, "could not create order")
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.OrderID
	}
	if err := s.Orders.CreateItemsTx(ctx, tx, o.Items); err != nil {
		return Wrap(KindInternal, err, "could not create order items")
	}
	return nil
}

func (s *Checkout) newOrder(userID uint64, addr model.Address, method string, lines []model.OrderItem) *model.Order {
	total := model.SumLines(lines)
	return &model.Order{
		OrderID:         s.newOrderID(),
		UserID:          userID,
		DeliveryAddress: addr.ID,
		SubTotal:        total,
		Total:           total,
		PaymentMethod:   method,
		PaymentStatus:   model.PaymentPending,
		Status:          model.StatusPending,
		Items:           lines,
	}
}

// PlaceCashOrder validates the cart, writes the order with its lines and
// decrements stock, all in one transaction.  Nothing is persisted when any
// step fails.
func (s *Checkout) PlaceCashOrder(ctx context.Context, userID uint64, req CheckoutRequest) (*model.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = model.MethodCash
	}
	if method == model.MethodPayPal {
		return nil, Errorf(KindValidation, "paypal orders are created through /api/orders/paypal")
	}
	addr, err := s.liveAddress(ctx, userID, req.DeliveryAddress)
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, Wrap(KindInternal, err, "could not start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lines, err := s.priceLines(ctx, tx, req.Items)
	if err != nil {
		return nil, err
	}
	order := s.newOrder(userID, addr, method, lines)
	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	for _, it := range order.Items {
		if err := s.Products.DecrementStockTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, Errorf(KindValidation, "insufficient stock for %s", it.Name)
			}
			return nil, Wrap(KindInternal, err, "could not update stock")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, Wrap(KindInternal, err, "could not commit order")
	}
	committed = true
	s.stockChanged(ctx)

	order.Address = &addr
	metrics.OrderPlaced(method)
	s.log().WithFields(logrus.Fields{"order_id": order.OrderID, "user_id": userID, "total": order.Total.StringFixed(2)}).
		Info("cash order placed")
	s.emit(ctx, queue.OrderPlaced, order)
	return order, nil
}

// StartPayPal records a pending order and opens the matching provider
// order.  Stock is not touched until capture.  When the provider call fails
// the local order is removed again.
func (s *Checkout) StartPayPal(ctx context.Context, userID uint64, req CheckoutRequest) (*PayPalCheckout, error) {
	if s.Gateway == nil {
		return nil, Errorf(KindUnavailable, "paypal is not configured")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	addr, err := s.liveAddress(ctx, userID, req.DeliveryAddress)
	if err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, Wrap(KindInternal, err, "could not start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lines, err := s.priceLines(ctx, tx, req.Items)
	if err != nil {
		return nil, err
	}
	order := s.newOrder(userID, addr, model.MethodPayPal, lines)
	if req.Amount != nil && req.Amount.Sub(order.Total).Abs().GreaterThan(amountTolerance) {
		return nil, Errorf(KindValidation, "amount %s does not match cart total %s",
			req.Amount.StringFixed(2), order.Total.StringFixed(2))
	}
	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, Wrap(KindInternal, err, "could not commit order")
	}
	committed = true

	l := s.log().WithFields(logrus.Fields{"order_id": order.OrderID, "user_id": userID})
	base := strings.TrimRight(s.FrontendURL, "/")
	q := url.QueryEscape(order.OrderID)
	start := time.Now()
	remote, err := s.Gateway.CreateOrder(ctx, payment.CreateOrderInput{
		ReferenceID: order.OrderID,
		Amount:      order.Total,
		ReturnURL:   fmt.Sprintf("%s/checkout/success?order_id=%s", base, q),
		CancelURL:   fmt.Sprintf("%s/checkout/cancel?order_id=%s", base, q),
	})
	metrics.PayPalCall("create", time.Since(start), err)
	if err != nil {
		l.WithError(err).Error("paypal create order failed")
		s.discard(order.OrderID, l)
		return nil, Wrap(KindUpstream, err, "could not start PayPal checkout")
	}
	if err := s.Orders.SetPaymentID(ctx, order.OrderID, remote.ID); err != nil {
		l.WithError(err).Error("store paypal order id failed")
		s.discard(order.OrderID, l)
		return nil, Wrap(KindInternal, err, "could not record PayPal order")
	}
	order.PaymentID = &remote.ID
	order.Address = &addr

	metrics.OrderPlaced(model.MethodPayPal)
	l.WithField("paypal_order_id", remote.ID).Info("paypal order created")
	s.emit(ctx, queue.OrderPlaced, order)
	return &PayPalCheckout{Order: order, Remote: remote}, nil
}

// discard deletes a local order whose provider side never came to exist.
// It runs detached from the request so a cancelled client does not leave
// the row behind.
func (s *Checkout) discard(orderID string, l *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Orders.DeleteByOrderID(ctx, orderID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		l.WithError(err).Error("could not discard order after provider failure")
	}
}

func (s *Checkout) emit(ctx context.Context, typ string, o *model.Order) {
	if s.Events == nil {
		return
	}
	ev := queue.OrderEvent{
		Type:          typ,
		OrderID:       o.OrderID,
		UserID:        o.UserID,
		Total:         o.Total,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		At:            time.Now().UTC(),
	}
	publish(ctx, s.Events, ev, s.log())
}

// publish hands ev to sink with a short deadline and only logs failures.
func publish(ctx context.Context, sink EventSink, ev queue.OrderEvent, l *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := sink.Publish(ctx, ev); err != nil {
		l.WithError(err).WithField("event", ev.Type).Warn("publish order event failed")
	}
}
