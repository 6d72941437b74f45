package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are rendered as JSON numbers, which is what the storefront reads.
	decimal.MarshalJSONWithoutQuotes = true
}

// Order lifecycle values stored in orders.status.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// Payment values stored in orders.payment_status.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
)

// Payment method tags.
const (
	MethodCash   = "cash"
	MethodPayPal = "paypal"
)

var orderStatuses = map[string]bool{
	StatusPending:   true,
	StatusCompleted: true,
	StatusShipped:   true,
	StatusDelivered: true,
	StatusCancelled: true,
}

// NormalizeStatus upper-cases s and reports whether it is a known order status.
func NormalizeStatus(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, orderStatuses[s]
}

// Order mirrors the `orders` table.  OrderID is the opaque identifier shared
// with order_products and the payment provider; ID is the numeric row key
// used in URLs.  Items, Address and the user fields are filled only by the
// read paths that join them.
type Order struct {
	ID              uint64          `json:"id"`
	OrderID         string          `json:"order_id"`
	UserID          uint64          `json:"user_id"`
	DeliveryAddress uint64          `json:"delivery_address"`
	SubTotal        decimal.Decimal `json:"sub_total_amt"`
	Total           decimal.Decimal `json:"total_amt"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	Status          string          `json:"status"`
	PaymentID       *string         `json:"payment_id"`
	CaptureID       *string         `json:"capture_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	UserName  string      `json:"user_name,omitempty"`
	UserEmail string      `json:"user_email,omitempty"`
	Address   *Address    `json:"address,omitempty"`
	Items     []OrderItem `json:"items,omitempty"`
}

// OrderItem mirrors `order_products`.  Price, discount, image and variant
// are copied from the cart at purchase time so the order stays stable when
// the product is edited later.
type OrderItem struct {
	ID          uint64          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   uint64          `json:"product_id"`
	Name        string          `json:"name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Image       *string         `json:"image"`
	MoreDetails *LineDetails    `json:"more_details"`
}

// LineDetails is the variant snapshot stored per line.
type LineDetails struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

// NewLineDetails returns nil when neither color nor size was chosen so the
// column stays NULL.
func NewLineDetails(color, size string) *LineDetails {
	color, size = strings.TrimSpace(color), strings.TrimSpace(size)
	if color == "" && size == "" {
		return nil
	}
	return &LineDetails{Color: color, Size: size}
}
