package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered marketplace user. Address is the identity the
// ledger and the item registry know the user by.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose
	Address      Address   `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
}
