package model

import "time"

// Role values stored in users.role.  Only ADMIN unlocks the admin endpoints.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table.  Password holds a bcrypt hash; rows created before hashing was
// introduced may still carry the plain value until the next login.
type User struct {
	ID        uint64    `json:"id"`         // users.id
	Email     string    `json:"email"`      // users.email
	Password  string    `json:"-"`          // users.password (bcrypt hash)
	Name      string    `json:"name"`       // users.name
	Role      string    `json:"role"`       // users.role (USER or ADMIN)
	Mobile    *string   `json:"mobile"`     // users.mobile (nullable)
	Avatar    *string   `json:"avatar"`     // users.avatar (nullable)
	CreatedAt time.Time `json:"created_at"` // users.created_at
	UpdatedAt time.Time `json:"updated_at"` // users.updated_at
}

// IsAdmin reports whether the user holds the privileged role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
