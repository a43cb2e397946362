package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AlbumHandler handles the owner's album collection.
type AlbumHandler struct {
	purchases ports.PurchaseService
}

// NewAlbumHandler creates a new AlbumHandler.
func NewAlbumHandler(purchases ports.PurchaseService) *AlbumHandler {
	return &AlbumHandler{purchases: purchases}
}

// Purchase handles POST /api/v1/albums. The debit is applied asynchronously,
// so the response is 202 and the wallet may not reflect it yet.
func (h *AlbumHandler) Purchase(c *gin.Context) {
	ownerKey, ok := middleware.OwnerKey(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	album, err := h.purchases.Purchase(c.Request.Context(), ownerKey, ports.PurchaseRequest{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		ArtistName: req.ArtistName,
		ImageURL:   req.ImageURL,
		Value:      req.Value,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, album.ID.String())
	response.Accepted(c, dto.NewAlbumResponse(album))
}

// Collection handles GET /api/v1/albums.
func (h *AlbumHandler) Collection(c *gin.Context) {
	ownerKey, ok := middleware.OwnerKey(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	albums, err := h.purchases.Collection(c.Request.Context(), ownerKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AlbumResponse, 0, len(albums))
	for i := range albums {
		items = append(items, dto.NewAlbumResponse(&albums[i]))
	}
	response.OK(c, items)
}

// Remove handles DELETE /api/v1/albums/:id. The debit is not refunded.
func (h *AlbumHandler) Remove(c *gin.Context) {
	ownerKey, ok := middleware.OwnerKey(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	albumID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("album id must be a UUID"))
		return
	}

	if err := h.purchases.Remove(c.Request.Context(), ownerKey, albumID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
