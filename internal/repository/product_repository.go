package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/storefront-api/internal/model"
)

// ProductRepo provides CRUD over products plus the stock operations used
// by checkout.  JSON columns are decoded into model types on read and
// encoded on write.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productColumns = "id,name,image,category_id,unit,stock,price,discount,description,more_details,publish,created_at,updated_at"

func scanProduct(row interface{ Scan(...any) error }) (model.Product, error) {
	var (
		p             model.Product
		image, detail []byte
		desc          sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &image, &p.CategoryID, &p.Unit, &p.Stock, &p.Price,
		&p.Discount, &desc, &detail, &p.Publish, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.Image = model.DecodeImages(image)
	p.MoreDetails = model.DecodeDetails(detail)
	p.Description = desc.String
	return p, nil
}

// List returns every product, newest first.
func (r *ProductRepo) List(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID loads one product.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	return r.get(ctx, r.DB, id, false)
}

// GetForUpdateTx loads one product inside tx and locks its row until the
// transaction ends.
func (r *ProductRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Product, error) {
	return r.get(ctx, tx, id, true)
}

func (r *ProductRepo) get(ctx context.Context, q dbtx, id uint64, lock bool) (model.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	if lock {
		query += " FOR UPDATE"
	}
	p, err := scanProduct(q.QueryRowContext(ctx, query, id))
	return p, notFound(err)
}

func encodeProduct(p *model.Product) (image, details []byte, err error) {
	imgs := p.Image
	if imgs == nil {
		imgs = []string{}
	}
	if image, err = json.Marshal(imgs); err != nil {
		return nil, nil, err
	}
	if details, err = json.Marshal(p.MoreDetails); err != nil {
		return nil, nil, err
	}
	return image, details, nil
}

// Create inserts p and fills p.ID.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	image, details, err := encodeProduct(p)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
INSERT INTO products (name, image, category_id, unit, stock, price, discount, description, more_details, publish)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.Name, string(image), p.CategoryID, p.Unit, p.Stock, p.Price, p.Discount,
		p.Description, string(details), p.Publish)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// Update overwrites every editable column of product p.ID.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	image, details, err := encodeProduct(p)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE products SET name=?, image=?, category_id=?, unit=?, stock=?, price=?, discount=?,
       description=?, more_details=?, publish=?
 WHERE id=?`,
		p.Name, string(image), p.CategoryID, p.Unit, p.Stock, p.Price, p.Discount,
		p.Description, string(details), p.Publish, p.ID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// Delete removes a product row.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// DecrementStockTx subtracts qty from the product's stock only when enough
// units remain.  A zero row count means the guard failed and is reported as
// ErrInsufficientStock so stock never goes negative under concurrency.
func (r *ProductRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, id uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?", qty, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientStock
	}
	return nil
}
