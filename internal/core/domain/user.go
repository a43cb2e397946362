package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an entry in the user directory. Email is the wallet owner key.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// OwnerKey returns the key that identifies the user's wallet.
func (u *User) OwnerKey() string {
	return u.Email
}
