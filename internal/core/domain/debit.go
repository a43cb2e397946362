package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Routing for debit requests on the broker.
const (
	DebitExchange   = "wallet.events"
	DebitRoutingKey = "wallet.debit.requested"
	DebitQueue      = "wallet.debit"
)

var (
	ErrMissingOwner      = errors.New("ownerKey is required")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrMalformedMessage  = errors.New("malformed debit request")
)

// DebitRequest is the message published after a purchase and consumed by the debit worker.
// RequestID is optional; when present it makes the debit idempotent.
type DebitRequest struct {
	OwnerKey  string          `json:"ownerKey"`
	Amount    decimal.Decimal `json:"amount"`
	RequestID string          `json:"requestId,omitempty"`
}

// Validate checks the required fields.
func (r DebitRequest) Validate() error {
	if strings.TrimSpace(r.OwnerKey) == "" {
		return ErrMissingOwner
	}
	return ValidateAmount(r.Amount)
}

// ParseDebitRequest decodes and validates a message body.
func ParseDebitRequest(body []byte) (DebitRequest, error) {
	var req DebitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return DebitRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := req.Validate(); err != nil {
		return DebitRequest{}, err
	}
	return req, nil
}
