package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType is the direction of a ledger movement.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// LedgerEntry is an append-only journal row written with every wallet mutation.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	WalletID     uuid.UUID       `json:"wallet_id"`
	OwnerKey     string          `json:"owner_key"`
	Type         EntryType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Points       int64           `json:"points"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	RequestID    *string         `json:"request_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
