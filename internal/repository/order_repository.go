package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/storefront-api/internal/model"
)

// OrderRepo persists orders and their line items (order_products).  Methods
// suffixed Tx take the caller's transaction so checkout, capture and sweep
// can each run as one unit of work.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

const orderColumns = "o.id,o.order_id,o.user_id,o.delivery_address,o.sub_total_amt,o.total_amt," +
	"o.payment_method,o.payment_status,o.status,o.payment_id,o.capture_id,o.created_at,o.updated_at"

func orderDest(o *model.Order, paymentID, captureID *sql.NullString) []any {
	return []any{&o.ID, &o.OrderID, &o.UserID, &o.DeliveryAddress, &o.SubTotal, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus, &o.Status, paymentID, captureID, &o.CreatedAt, &o.UpdatedAt}
}

func scanOrder(row interface{ Scan(...any) error }) (model.Order, error) {
	var (
		o                    model.Order
		paymentID, captureID sql.NullString
	)
	err := row.Scan(orderDest(&o, &paymentID, &captureID)...)
	o.PaymentID, o.CaptureID = stringPtr(paymentID), stringPtr(captureID)
	return o, err
}

// CreateTx inserts the order header and fills o.ID.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx, `
INSERT INTO orders (order_id, user_id, delivery_address, sub_total_amt, total_amt,
                    payment_method, payment_status, status, payment_id)
VALUES (?,?,?,?,?,?,?,?,?)`,
		o.OrderID, o.UserID, o.DeliveryAddress, o.SubTotal, o.Total,
		o.PaymentMethod, o.PaymentStatus, o.Status, nullString(o.PaymentID))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// CreateItemsTx bulk inserts line items in a single statement.
func (r *OrderRepo) CreateItemsTx(ctx context.Context, tx *sql.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(items)*8)
	)
	sb.WriteString("INSERT INTO order_products (order_id, product_id, quantity, unit_price, discount, total_price, image, more_details) VALUES ")
	for i, it := range items {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		var details any
		if it.MoreDetails != nil {
			b, err := json.Marshal(it.MoreDetails)
			if err != nil {
				return err
			}
			details = string(b)
		}
		args = append(args, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.Discount,
			it.TotalPrice, nullString(it.Image), details)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

// SetPaymentID records the provider order id on a freshly created order.
func (r *OrderRepo) SetPaymentID(ctx context.Context, orderID, paymentID string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE orders SET payment_id = ? WHERE order_id = ?", paymentID, orderID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// GetByPaymentID finds the order created for a provider order id.
func (r *OrderRepo) GetByPaymentID(ctx context.Context, paymentID string) (model.Order, error) {
	o, err := scanOrder(r.DB.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders o WHERE o.payment_id = ? LIMIT 1", paymentID))
	return o, notFound(err)
}

// ItemsTx returns the line items of one order inside tx.
func (r *OrderRepo) ItemsTx(ctx context.Context, tx *sql.Tx, orderID string) ([]model.OrderItem, error) {
	return r.items(ctx, tx, []string{orderID})
}

func (r *OrderRepo) items(ctx context.Context, q dbtx, orderIDs []string) ([]model.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `
SELECT op.id, op.order_id, op.product_id, COALESCE(p.name, ''), op.quantity, op.unit_price,
       op.discount, op.total_price, op.image, op.more_details
  FROM order_products op
  LEFT JOIN products p ON p.id = op.product_id
 WHERE op.order_id IN (`+placeholders(len(args))+`)
 ORDER BY op.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OrderItem
	for rows.Next() {
		var (
			it      model.OrderItem
			image   sql.NullString
			details []byte
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice,
			&it.Discount, &it.TotalPrice, &image, &details); err != nil {
			return nil, err
		}
		it.Image = stringPtr(image)
		if len(details) > 0 && string(details) != "null" {
			var d model.LineDetails
			if json.Unmarshal(details, &d) == nil {
				it.MoreDetails = &d
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// LockPaymentTx locks the order row for the rest of tx and returns its
// payment status and capture id.
func (r *OrderRepo) LockPaymentTx(ctx context.Context, tx *sql.Tx, id uint64) (string, *string, error) {
	var (
		status  string
		capture sql.NullString
	)
	err := tx.QueryRowContext(ctx,
		"SELECT payment_status, capture_id FROM orders WHERE id = ? FOR UPDATE", id).Scan(&status, &capture)
	if err != nil {
		return "", nil, notFound(err)
	}
	if !capture.Valid {
		return status, nil, nil
	}
	return status, &capture.String, nil
}

// MarkPaidTx flips a captured order to COMPLETED and stores the capture id.
func (r *OrderRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64, captureID string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET payment_status = ?, status = ?, capture_id = ? WHERE id = ?",
		model.PaymentCompleted, model.StatusCompleted, captureID, id)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// List returns orders with buyer, address and items joined.  A nil userID
// lists every order (admin view); otherwise only that user's orders.
func (r *OrderRepo) List(ctx context.Context, userID *uint64) ([]model.Order, error) {
	query := joinedOrderQuery
	var args []any
	if userID != nil {
		query += " WHERE o.user_id = ?"
		args = append(args, *userID)
	}
	query += " ORDER BY o.created_at DESC, o.id DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanJoinedOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

const joinedOrderQuery = `
SELECT ` + orderColumns + `, COALESCE(u.name, ''), COALESCE(u.email, ''),
       a.id, a.address_line, a.city, a.state, a.pincode, a.country, a.mobile
  FROM orders o
  LEFT JOIN users u ON u.id = o.user_id
  LEFT JOIN addresses a ON a.id = o.delivery_address`

// scanJoinedOrder reads a row of joinedOrderQuery.  Address stays nil when
// the delivery address has been deleted.
func scanJoinedOrder(row interface{ Scan(...any) error }) (model.Order, error) {
	var (
		o                    model.Order
		paymentID, captureID sql.NullString
		addrID               sql.NullInt64
		line, city, state    sql.NullString
		pin, country, mobile sql.NullString
	)
	dest := append(orderDest(&o, &paymentID, &captureID),
		&o.UserName, &o.UserEmail, &addrID, &line, &city, &state, &pin, &country, &mobile)
	if err := row.Scan(dest...); err != nil {
		return o, err
	}
	o.PaymentID, o.CaptureID = stringPtr(paymentID), stringPtr(captureID)
	if addrID.Valid {
		o.Address = &model.Address{
			ID: uint64(addrID.Int64), UserID: o.UserID, AddressLine: line.String, City: city.String,
			State: state.String, Pincode: pin.String, Country: country.String, Mobile: mobile.String,
		}
	}
	return o, nil
}

func (r *OrderRepo) attachItems(ctx context.Context, orders []model.Order) error {
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].OrderID
	}
	items, err := r.items(ctx, r.DB, ids)
	if err != nil {
		return err
	}
	byOrder := make(map[string][]model.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].OrderID]
		if orders[i].Items == nil {
			orders[i].Items = []model.OrderItem{}
		}
	}
	return nil
}

// GetForUser loads one order with its items, only when userID owns it.
func (r *OrderRepo) GetForUser(ctx context.Context, id, userID uint64) (model.Order, error) {
	o, err := scanJoinedOrder(r.DB.QueryRowContext(ctx,
		joinedOrderQuery+" WHERE o.id = ? AND o.user_id = ?", id, userID))
	if err != nil {
		return o, notFound(err)
	}
	list := []model.Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return o, err
	}
	return list[0], nil
}

// UpdateStatusForUser sets status on the caller's own order.
func (r *OrderRepo) UpdateStatusForUser(ctx context.Context, id, userID uint64, status string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE orders SET status = ? WHERE id = ? AND user_id = ?", status, id, userID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// AdminUpdate sets status and total on any order.
func (r *OrderRepo) AdminUpdate(ctx context.Context, id uint64, status string, total decimal.Decimal) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE orders SET status = ?, total_amt = ? WHERE id = ?", status, total, id)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// Delete removes an order and its line items in one transaction.
func (r *OrderRepo) Delete(ctx context.Context, id uint64) error {
	return r.deleteWhere(ctx, "id = ?", id)
}

// DeleteByOrderID removes an order by its opaque id; used to roll back an
// order whose payment could not be initiated.
func (r *OrderRepo) DeleteByOrderID(ctx context.Context, orderID string) error {
	return r.deleteWhere(ctx, "order_id = ?", orderID)
}

func (r *OrderRepo) deleteWhere(ctx context.Context, cond string, arg any) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var orderID string
	if err := tx.QueryRowContext(ctx, "SELECT order_id FROM orders WHERE "+cond+" FOR UPDATE", arg).
		Scan(&orderID); err != nil {
		return notFound(err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM order_products WHERE order_id = ?", orderID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE order_id = ?", orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SweepStale deletes provider-initiated orders that were never paid and
// are older than cutoff, together with their line items.  Orders without a
// payment id (cash) never match.  Returns the number of orders removed.
func (r *OrderRepo) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `
SELECT order_id FROM orders
 WHERE status = ? AND payment_status = ?
   AND payment_id IS NOT NULL AND payment_id <> ''
   AND created_at < ?
 FOR UPDATE`, model.StatusPending, model.PaymentPending, cutoff)
	if err != nil {
		return 0, err
	}
	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	in := placeholders(len(ids))
	if _, err := tx.ExecContext(ctx, "DELETE FROM order_products WHERE order_id IN ("+in+")", ids...); err != nil {
		return 0, fmt.Errorf("sweep items: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE order_id IN ("+in+")", ids...)
	if err != nil {
		return 0, fmt.Errorf("sweep orders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
