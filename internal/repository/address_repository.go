package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/storefront-api/internal/model"
)

// AddressRepo reads and writes delivery addresses.  Every method except
// GetByID is scoped to the owning user.
type AddressRepo struct{ DB *sql.DB }

func NewAddressRepo(db *sql.DB) *AddressRepo { return &AddressRepo{DB: db} }

// AddressPatch carries a partial update; nil fields keep their value.
type AddressPatch struct {
	AddressLine *string
	City        *string
	State       *string
	Pincode     *string
	Country     *string
	Mobile      *string
}

const addressColumns = "id,user_id,address_line,city,state,pincode,country,mobile,status,created_at,updated_at"

func scanAddress(row interface{ Scan(...any) error }) (model.Address, error) {
	var a model.Address
	err := row.Scan(&a.ID, &a.UserID, &a.AddressLine, &a.City, &a.State, &a.Pincode,
		&a.Country, &a.Mobile, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Create inserts a live address for a.UserID and fills a.ID.
func (r *AddressRepo) Create(ctx context.Context, a *model.Address) error {
	res, err := r.DB.ExecContext(ctx, `
INSERT INTO addresses (user_id, address_line, city, state, pincode, country, mobile, status)
VALUES (?,?,?,?,?,?,?,1)`,
		a.UserID, a.AddressLine, a.City, a.State, a.Pincode, a.Country, a.Mobile)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	a.Status = 1
	return nil
}

// ListActive returns the user's live addresses, newest first.
func (r *AddressRepo) ListActive(ctx context.Context, userID uint64) ([]model.Address, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = ? AND status = 1 ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetLiveForUser returns a live address only when userID owns it.
func (r *AddressRepo) GetLiveForUser(ctx context.Context, id, userID uint64) (model.Address, error) {
	a, err := scanAddress(r.DB.QueryRowContext(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE id = ? AND user_id = ? AND status = 1", id, userID))
	return a, notFound(err)
}

// GetByID returns an address regardless of status; used to render orders
// that point at an address the owner later deleted.
func (r *AddressRepo) GetByID(ctx context.Context, id uint64) (model.Address, error) {
	a, err := scanAddress(r.DB.QueryRowContext(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE id = ?", id))
	return a, notFound(err)
}

// Update applies p to the caller's address.  ErrNotFound when the row does
// not exist or belongs to someone else.
func (r *AddressRepo) Update(ctx context.Context, id, userID uint64, p AddressPatch) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, strings.TrimSpace(*v))
		}
	}
	add("address_line", p.AddressLine)
	add("city", p.City)
	add("state", p.State)
	add("pincode", p.Pincode)
	add("country", p.Country)
	add("mobile", p.Mobile)
	if len(sets) == 0 {
		// nothing to change: still report ownership
		_, err := r.GetLiveForUser(ctx, id, userID)
		return err
	}
	args = append(args, id, userID)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE addresses SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?", args...)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// SoftDelete marks the caller's address inactive.
func (r *AddressRepo) SoftDelete(ctx context.Context, id, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE addresses SET status = 0 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}
