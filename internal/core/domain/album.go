package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Album is a catalog item bought by an owner. Buying it publishes a debit for Value.
type Album struct {
	ID         uuid.UUID       `json:"id"`
	OwnerKey   string          `json:"owner_key"`
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	ArtistName string          `json:"artist_name"`
	ImageURL   string          `json:"image_url,omitempty"`
	Value      decimal.Decimal `json:"value"`
	CreatedAt  time.Time       `json:"created_at"`
}
