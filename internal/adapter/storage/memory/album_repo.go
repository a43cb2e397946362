package memory

import (
	"context"
	"fmt"
	"sort"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// AlbumRepo implements ports.AlbumRepository on a Store.
type AlbumRepo struct {
	store *Store
}

// NewAlbumRepo creates a new AlbumRepo.
func NewAlbumRepo(s *Store) *AlbumRepo {
	return &AlbumRepo{store: s}
}

func (r *AlbumRepo) Create(ctx context.Context, a *domain.Album) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.albums {
		if existing.OwnerKey == a.OwnerKey && existing.ExternalID == a.ExternalID {
			return fmt.Errorf("insert album: %w: owner_key, external_id", ports.ErrDuplicateKey)
		}
	}
	cp := *a
	s.albums[a.ID] = &cp
	return nil
}

func (r *AlbumRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Album, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.albums[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *AlbumRepo) ExistsForOwner(ctx context.Context, ownerKey, externalID string) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.albums {
		if a.OwnerKey == ownerKey && a.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (r *AlbumRepo) ListByOwner(ctx context.Context, ownerKey string) ([]domain.Album, error) {
	s := r.store
	s.mu.RLock()
	var albums []domain.Album
	for _, a := range s.albums {
		if a.OwnerKey == ownerKey {
			albums = append(albums, *a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(albums, func(i, j int) bool {
		return albums[i].CreatedAt.After(albums[j].CreatedAt)
	})
	return albums, nil
}

func (r *AlbumRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.albums, id)
	return nil
}
