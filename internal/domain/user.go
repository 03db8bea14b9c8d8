package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the resolved authentication result carried by a connection
// session for its whole lifetime.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// OnlineUser is the presence record kept in Redis per room.
type OnlineUser struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}
