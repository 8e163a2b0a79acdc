package types

import (
	"time"

	"github.com/google/uuid"
)

// UserRole is the authorization level of an account.
type UserRole string

const (
	RolePlayer    UserRole = "player"
	RoleDeveloper UserRole = "developer"
	RoleAdmin     UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RolePlayer, RoleDeveloper, RoleAdmin:
		return true
	}
	return false
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the user's email address. Unique across accounts.
	Email string `json:"email" db:"email"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level within the system.
	Role UserRole `json:"role" db:"role"`

	// WalletBalance is the account's store credit.
	WalletBalance float64 `json:"wallet_balance" db:"wallet_balance"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserUpdate carries a partial account update. Nil fields are left untouched.
// Password, when set, is the new plaintext to be hashed by the service layer.
type UserUpdate struct {
	Email    *string   `json:"email,omitempty"`
	Username *string   `json:"username,omitempty"`
	Password *string   `json:"password,omitempty"`
	Role     *UserRole `json:"role,omitempty"`
}
