package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/identity"
)

// Operator represents a dashboard account holder.
type Operator struct {
	ID           uuid.UUID     `json:"id"           db:"id"`
	Email        string        `json:"email"        db:"email"`
	PasswordHash string        `json:"-"            db:"password_hash"`
	DisplayName  string        `json:"display_name" db:"display_name"`
	Role         identity.Role `json:"role"         db:"role"`
	Active       bool          `json:"active"       db:"active"`
	CreatedAt    time.Time     `json:"created_at"   db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"   db:"updated_at"`
}
