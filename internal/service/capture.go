package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront-api/internal/metrics"
	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/payment"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
)

const captureLockTTL = 30 * time.Second

// CaptureResult reports a completed capture.  Shortages lists products
// whose stock could not cover the paid quantity; the payment stands and the
// order needs manual follow-up.
type CaptureResult struct {
	Order            model.Order
	CaptureID        string
	AlreadyCompleted bool
	Shortages        []uint64
}

// Capture settles the caller's PayPal order.  The provider is asked for the
// order state first so an order already captured elsewhere is not captured
// twice; a local order already marked COMPLETED returns immediately.
func (s *Checkout) Capture(ctx context.Context, userID uint64, paypalOrderID string) (*CaptureResult, error) {
	paypalOrderID = strings.TrimSpace(paypalOrderID)
	if paypalOrderID == "" {
		return nil, Errorf(KindValidation, "paypalOrderId is required")
	}
	if s.Gateway == nil {
		return nil, Errorf(KindUnavailable, "paypal is not configured")
	}
	l := s.log().WithFields(logrus.Fields{"paypal_order_id": paypalOrderID, "user_id": userID})

	if s.Locker != nil {
		release, ok, err := s.Locker.Acquire(ctx, "capture:"+paypalOrderID, captureLockTTL)
		if err != nil {
			l.WithError(err).Warn("capture lock unavailable; continuing without it")
		} else if !ok {
			return nil, Errorf(KindConflict, "capture already in progress")
		} else {
			defer release()
		}
	}

	order, err := s.Orders.GetByPaymentID(ctx, paypalOrderID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && order.UserID != userID) {
		return nil, Errorf(KindNotFound, "order not found")
	}
	if err != nil {
		return nil, Wrap(KindInternal, err, "could not load order")
	}
	if order.PaymentStatus == model.PaymentCompleted {
		res := &CaptureResult{Order: order, AlreadyCompleted: true}
		if order.CaptureID != nil {
			res.CaptureID = *order.CaptureID
		}
		return res, nil
	}

	start := time.Now()
	remote, err := s.Gateway.GetOrder(ctx, paypalOrderID)
	metrics.PayPalCall("get", time.Since(start), err)
	if err != nil {
		l.WithError(err).Error("paypal get order failed")
		return nil, Wrap(KindUpstream, err, "could not query PayPal order")
	}

	captureID := remote.CaptureID
	if remote.Status != payment.StatusCompleted {
		start = time.Now()
		captured, err := s.Gateway.Capture(ctx, paypalOrderID)
		metrics.PayPalCall("capture", time.Since(start), err)
		if err != nil {
			l.WithError(err).Error("paypal capture failed")
			var ae *payment.APIError
			if errors.As(err, &ae) {
				return nil, Wrap(KindPaymentRequired, err, "PayPal error: "+ae.Message)
			}
			return nil, Wrap(KindUpstream, err, "could not capture PayPal order")
		}
		if captured.Status != payment.StatusCompleted {
			return nil, Errorf(KindPaymentRequired, "payment not completed, status %s", captured.Status)
		}
		captureID = captured.CaptureID
	}
	if captureID == "" {
		captureID = paypalOrderID
	}

	res, err := s.settle(ctx, order, captureID, l)
	if err != nil {
		return nil, err
	}
	if res.AlreadyCompleted {
		l.WithField("order_id", order.OrderID).Info("order settled by a concurrent capture")
		return res, nil
	}
	s.stockChanged(ctx)
	metrics.OrderPaid()
	l.WithFields(logrus.Fields{"order_id": order.OrderID, "capture_id": captureID}).Info("paypal order captured")
	s.emit(ctx, queue.OrderPaid, &res.Order)
	return res, nil
}

// settle decrements stock for every line and marks the order paid in one
// transaction.  The order row is locked first; if another capture already
// settled it, nothing is written and AlreadyCompleted is reported.
func (s *Checkout) settle(ctx context.Context, order model.Order, captureID string, l *logrus.Entry) (*CaptureResult, error) {
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

	status, storedCapture, err := s.Orders.LockPaymentTx(ctx, tx, order.ID)
	if err != nil {
		return nil, Wrap(KindInternal, err, "could not lock order")
	}
	if status == model.PaymentCompleted {
		res := &CaptureResult{CaptureID: captureID, AlreadyCompleted: true}
		if storedCapture != nil {
			res.CaptureID = *storedCapture
		}
		order.PaymentStatus = model.PaymentCompleted
		order.Status = model.StatusCompleted
		order.CaptureID = &res.CaptureID
		res.Order = order
		return res, nil
	}

	items, err := s.Orders.ItemsTx(ctx, tx, order.OrderID)
	if err != nil {
		return nil, Wrap(KindInternal, err, "could not load order items")
	}
	res := &CaptureResult{CaptureID: captureID}
	for _, it := range items {
		err := s.Products.DecrementStockTx(ctx, tx, it.ProductID, it.Quantity)
		if errors.Is(err, repository.ErrInsufficientStock) {
			res.Shortages = append(res.Shortages, it.ProductID)
			l.WithFields(logrus.Fields{"order_id": order.OrderID, "product_id": it.ProductID, "quantity": it.Quantity}).
				Error("stock exhausted for a paid order")
			continue
		}
		if err != nil {
			return nil, Wrap(KindInternal, err, "could not update stock")
		}
	}
	if err := s.Orders.MarkPaidTx(ctx, tx, order.ID, captureID); err != nil {
		return nil, Wrap(KindInternal, err, "could not mark order paid")
	}
	if err := tx.Commit(); err != nil {
		return nil, Wrap(KindInternal, err, "could not commit capture")
	}
	committed = true

	order.PaymentStatus = model.PaymentCompleted
	order.Status = model.StatusCompleted
	order.CaptureID = &captureID
	order.Items = items
	res.Order = order
	return res, nil
}
