package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds one owner's balance and loyalty points. Only the ledger mutates it.
type Wallet struct {
	ID         uuid.UUID       `json:"id"`
	OwnerKey   string          `json:"owner_key"`
	Balance    decimal.Decimal `json:"balance"`
	Points     int64           `json:"points"`
	LastUpdate time.Time       `json:"last_update"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewWallet returns an empty wallet for ownerKey.
func NewWallet(ownerKey string, now time.Time) *Wallet {
	return &Wallet{
		ID:         uuid.New(),
		OwnerKey:   ownerKey,
		Balance:    decimal.Zero,
		Points:     0,
		LastUpdate: now,
		CreatedAt:  now,
	}
}

// Debit subtracts amount and adds the accrued points.
func (w *Wallet) Debit(amount decimal.Decimal, points int64, now time.Time) {
	w.Balance = w.Balance.Sub(amount)
	w.Points += points
	w.LastUpdate = now
}

// Credit adds amount. Points are untouched.
func (w *Wallet) Credit(amount decimal.Decimal, now time.Time) {
	w.Balance = w.Balance.Add(amount)
	w.LastUpdate = now
}
