package model

import "time"

// Address is a delivery address owned by exactly one user.  Status is 1 for
// live rows and 0 once the owner deletes it; rows are never physically
// removed so historical orders keep resolving their address.
type Address struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Pincode     string    `json:"pincode"`
	Country     string    `json:"country"`
	Mobile      string    `json:"mobile"`
	Status      int       `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
