package users

import "time"

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Identity is what a verified session resolves to: the two fields the rest
// of the system needs about the caller.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// UserSummary is the admin listing row, including scan activity totals.
type UserSummary struct {
	ID                   string     `json:"id"`
	Username             string     `json:"username"`
	Email                string     `json:"email"`
	Role                 string     `json:"role"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	LastLogin            *time.Time `json:"last_login,omitempty"`
	TotalScans           int        `json:"total_scans"`
	TotalProductsScanned int        `json:"total_products_scanned"`
}
