package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/storefront-api/internal/model"
)

var ErrCategoryExists = errors.New("category already exists")

type CategoryRepo struct{ DB *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{DB: db} }

// Create inserts a category; names are unique.
func (r *CategoryRepo) Create(ctx context.Context, name, image string) (model.Category, error) {
	name = strings.TrimSpace(name)
	res, err := r.DB.ExecContext(ctx, "INSERT INTO categories (name, image) VALUES (?, ?)", name, image)
	if err != nil {
		if isDuplicate(err) {
			return model.Category{}, ErrCategoryExists
		}
		return model.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Category{}, err
	}
	var c model.Category
	err = r.DB.QueryRowContext(ctx,
		"SELECT id, name, image, created_at FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Image, &c.CreatedAt)
	return c, err
}

// List returns all categories by name.
func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name, image, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Image, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
