package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const creditConfirmation = "Credits added successfully to wallet"

// WalletHandler handles wallet-related endpoints for the authenticated owner.
type WalletHandler struct {
	ledger    ports.WalletLedger
	statement ports.StatementService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.WalletLedger, statement ports.StatementService) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		statement: statement,
	}
}

// GetMine handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetMine(c *gin.Context) {
	ownerKey, ok := middleware.OwnerKey(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), ownerKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWalletResponse(wallet))
}

// Credit handles POST /api/v1/wallets/me/credit/:amount.
func (h *WalletHandler) Credit(c *gin.Context) {
	ownerKey, ok := middleware.OwnerKey(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	amount, err := decimal.NewFromString(c.Param("amount"))
	if err != nil {
		response.Error(c, apperror.Validation("amount must be a decimal number"))
		return
	}

	if _, err := h.ledger.Credit(c.Request.Context(), ownerKey, amount); err != nil {
		response.Error(c, err)
		return
	}

	response.Text(c, creditConfirmation)
}

// ListEntries handles GET /api/v1/wallets/me/entries.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	ownerKey, ok := middleware.OwnerKey(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var q dto.EntryListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	entries, total, err := h.statement.ListEntries(c.Request.Context(), ownerKey, q.Page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewEntryListResponse(entries, total, q.Page, q.PageSize))
}
