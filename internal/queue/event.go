// Package queue defines the order event payload exchanged over the message
// broker and the background consumer that records it.
package queue

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published on the orders queue.
const (
	OrderPlaced = "order.placed"
	OrderPaid   = "order.paid"
	OrdersSwept = "orders.swept"
)

// OrderEvent is published whenever an order is placed, paid or swept.  It
// contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.  For
// orders.swept, OrderID is empty and Count carries the number removed.
type OrderEvent struct {
	Type          string          `json:"type"`
	OrderID       string          `json:"order_id,omitempty"`
	UserID        uint64          `json:"user_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Count         int64           `json:"count,omitempty"`
	At            time.Time       `json:"at"`
}
