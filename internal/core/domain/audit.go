package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister          AuditAction = "REGISTER"
	AuditActionLogin             AuditAction = "LOGIN"
	AuditActionCredit            AuditAction = "CREDIT"
	AuditActionPurchase          AuditAction = "PURCHASE"
	AuditActionRemoveAlbum       AuditAction = "REMOVE_ALBUM"
	AuditActionWalletCreated     AuditAction = "WALLET_CREATED"
	AuditActionDebitApplied      AuditAction = "DEBIT_APPLIED"
	AuditActionCreditApplied     AuditAction = "CREDIT_APPLIED"
	AuditActionDebitDropped      AuditAction = "DEBIT_DROPPED"
	AuditActionDebitDeadLettered AuditAction = "DEBIT_DEAD_LETTERED"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	OwnerKey     string      `json:"owner_key,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewAuditLog stamps an entry with a fresh id and the current time.
func NewAuditLog(action AuditAction, resourceType, resourceID string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    time.Now().UTC(),
	}
}
