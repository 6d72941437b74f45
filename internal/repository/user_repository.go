package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,password,name,role,mobile,avatar,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u              model.User
		mobile, avatar sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Role, &mobile, &avatar, &u.CreatedAt, &u.UpdatedAt)
	u.Mobile, u.Avatar = stringPtr(mobile), stringPtr(avatar)
	return u, err
}

// Create inserts user with a bcrypt hash of password and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, name string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password, name, role) VALUES (?,?,?,?)",
		email, hash, name, model.RoleUser)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// GetRole reads only the role column.  The admin gate calls this on every
// privileged request instead of trusting anything carried in the token.
func (r *UserRepo) GetRole(ctx context.Context, id uint64) (string, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, "SELECT role FROM users WHERE id=? LIMIT 1", id).Scan(&role)
	return role, notFound(err)
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile sets name and, when non-nil, avatar and mobile.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name string, avatar, mobile *string) error {
	sets := []string{"name = ?"}
	args := []any{name}
	if avatar != nil {
		sets = append(sets, "avatar = ?")
		args = append(args, *avatar)
	}
	if mobile != nil {
		sets = append(sets, "mobile = ?")
		args = append(args, *mobile)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET password = ? WHERE id = ?", hash, id)
	return err
}

// AdminUpdate changes name, email and optionally role of any user.
func (r *UserRepo) AdminUpdate(ctx context.Context, id uint64, name, email string, role *string) error {
	q := "UPDATE users SET name = ?, email = ?"
	args := []any{name, strings.ToLower(strings.TrimSpace(email))}
	if role != nil {
		q += ", role = ?"
		args = append(args, *role)
	}
	q += " WHERE id = ?"
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err == nil && !ok {
		return ErrNotFound
	}
	return err
}
