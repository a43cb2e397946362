package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PurchaseServiceImpl implements ports.PurchaseService. The wallet is never touched here;
// the debit travels through the broker and is applied by the consumer.
type PurchaseServiceImpl struct {
	albumRepo ports.AlbumRepository
	publisher ports.DebitPublisher
	log       zerolog.Logger
}

// NewPurchaseService creates a new PurchaseServiceImpl.
func NewPurchaseService(albumRepo ports.AlbumRepository, publisher ports.DebitPublisher, log zerolog.Logger) *PurchaseServiceImpl {
	return &PurchaseServiceImpl{
		albumRepo: albumRepo,
		publisher: publisher,
		log:       log,
	}
}

// Purchase records the album and publishes a debit for its value.
// The album id doubles as the debit request id, so a republished purchase is applied once.
func (s *PurchaseServiceImpl) Purchase(ctx context.Context, ownerKey string, req ports.PurchaseRequest) (*domain.Album, error) {
	if err := domain.ValidateAmount(req.Value); err != nil {
		return nil, amountErr(err)
	}
	if strings.TrimSpace(req.ExternalID) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("external_id and name are required")
	}

	exists, err := s.albumRepo.ExistsForOwner(ctx, ownerKey, req.ExternalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check album: %w", err))
	}
	if exists {
		return nil, apperror.ErrDuplicateAlbum()
	}

	album := &domain.Album{
		ID:         uuid.New(),
		OwnerKey:   ownerKey,
		ExternalID: req.ExternalID,
		Name:       req.Name,
		ArtistName: req.ArtistName,
		ImageURL:   req.ImageURL,
		Value:      req.Value,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.albumRepo.Create(ctx, album); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, apperror.ErrDuplicateAlbum()
		}
		return nil, apperror.InternalError(fmt.Errorf("create album: %w", err))
	}

	debit := domain.DebitRequest{
		OwnerKey:  ownerKey,
		Amount:    album.Value,
		RequestID: album.ID.String(),
	}
	if err := s.publisher.PublishDebit(ctx, debit); err != nil {
		// Without the debit the purchase would be free; undo it.
		if delErr := s.albumRepo.Delete(context.WithoutCancel(ctx), album.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("album_id", album.ID.String()).Msg("failed to remove album after publish failure")
		}
		return nil, apperror.ErrQueueUnavailable(fmt.Errorf("publish debit: %w", err))
	}

	s.log.Info().
		Str("owner_key", ownerKey).
		Str("album_id", album.ID.String()).
		Str("value", album.Value.String()).
		Msg("album purchased, debit published")

	return album, nil
}

// Collection lists the owner's albums.
func (s *PurchaseServiceImpl) Collection(ctx context.Context, ownerKey string) ([]domain.Album, error) {
	albums, err := s.albumRepo.ListByOwner(ctx, ownerKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list albums: %w", err))
	}
	return albums, nil
}

// Remove deletes one of the owner's albums. Albums of other owners look absent.
func (s *PurchaseServiceImpl) Remove(ctx context.Context, ownerKey string, albumID uuid.UUID) error {
	album, err := s.albumRepo.GetByID(ctx, albumID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get album: %w", err))
	}
	if album == nil || album.OwnerKey != ownerKey {
		return apperror.ErrNotFound("album")
	}

	if err := s.albumRepo.Delete(ctx, albumID); err != nil {
		return apperror.InternalError(fmt.Errorf("delete album: %w", err))
	}
	return nil
}
