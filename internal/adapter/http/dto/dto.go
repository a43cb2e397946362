package dto

import (
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// --- Auth ---

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=128" sanitize:"-"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"`
}

// --- Wallet ---

type WalletResponse struct {
	ID         string          `json:"id"`
	OwnerKey   string          `json:"owner_key"`
	Balance    decimal.Decimal `json:"balance"`
	Points     int64           `json:"points"`
	LastUpdate time.Time       `json:"last_update"`
}

// NewWalletResponse maps a wallet snapshot to its JSON shape.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:         w.ID.String(),
		OwnerKey:   w.OwnerKey,
		Balance:    w.Balance,
		Points:     w.Points,
		LastUpdate: w.LastUpdate,
	}
}

type EntryListQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type EntryResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Points       int64           `json:"points"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	RequestID    *string         `json:"request_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type EntryListResponse struct {
	Items      []EntryResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// NewEntryListResponse builds one page of the statement.
func NewEntryListResponse(entries []domain.LedgerEntry, total int64, page, pageSize int) EntryListResponse {
	items := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, EntryResponse{
			ID:           e.ID.String(),
			Type:         string(e.Type),
			Amount:       e.Amount,
			Points:       e.Points,
			BalanceAfter: e.BalanceAfter,
			RequestID:    e.RequestID,
			CreatedAt:    e.CreatedAt,
		})
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return EntryListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// --- Albums ---

// PurchaseRequest is the body of POST /api/v1/albums. Value arrives as a JSON string or number.
type PurchaseRequest struct {
	ExternalID string          `json:"external_id" binding:"required,max=100,safe_id"`
	Name       string          `json:"name" binding:"required,max=200"`
	ArtistName string          `json:"artist_name" binding:"omitempty,max=200"`
	ImageURL   string          `json:"image_url" binding:"omitempty,max=2048,safe_url" sanitize:"trim"`
	Value      decimal.Decimal `json:"value" binding:"required,gt=0"`
}

type AlbumResponse struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	ArtistName string          `json:"artist_name,omitempty"`
	ImageURL   string          `json:"image_url,omitempty"`
	Value      decimal.Decimal `json:"value"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewAlbumResponse maps an album to its JSON shape.
func NewAlbumResponse(a *domain.Album) AlbumResponse {
	return AlbumResponse{
		ID:         a.ID.String(),
		ExternalID: a.ExternalID,
		Name:       a.Name,
		ArtistName: a.ArtistName,
		ImageURL:   a.ImageURL,
		Value:      a.Value,
		CreatedAt:  a.CreatedAt,
	}
}
