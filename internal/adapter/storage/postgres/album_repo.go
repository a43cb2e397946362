package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const albumColumnList = `id, owner_key, external_id, name, artist_name, image_url, value, created_at`

// AlbumRepo implements ports.AlbumRepository.
type AlbumRepo struct {
	pool Pool
}

// NewAlbumRepo creates a new AlbumRepo.
func NewAlbumRepo(pool Pool) *AlbumRepo {
	return &AlbumRepo{pool: pool}
}

// Create records a purchased album.
func (r *AlbumRepo) Create(ctx context.Context, a *domain.Album) error {
	query := `INSERT INTO albums (` + albumColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.OwnerKey, a.ExternalID, a.Name, a.ArtistName, a.ImageURL, a.Value, a.CreatedAt,
	)
	if err != nil {
		return wrapInsertErr("insert album", err)
	}
	return nil
}

// GetByID fetches an album by its UUID.
func (r *AlbumRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Album, error) {
	query := `SELECT ` + albumColumnList + ` FROM albums WHERE id = $1`

	a := &domain.Album{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.OwnerKey, &a.ExternalID, &a.Name, &a.ArtistName, &a.ImageURL, &a.Value, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get album by id: %w", err)
	}
	return a, nil
}

// ExistsForOwner reports whether ownerKey already bought the catalog item externalID.
func (r *AlbumRepo) ExistsForOwner(ctx context.Context, ownerKey, externalID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM albums WHERE owner_key = $1 AND external_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, ownerKey, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check album exists: %w", err)
	}
	return exists, nil
}

// ListByOwner returns the owner's collection, newest first.
func (r *AlbumRepo) ListByOwner(ctx context.Context, ownerKey string) ([]domain.Album, error) {
	query := `SELECT ` + albumColumnList + ` FROM albums WHERE owner_key = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	var albums []domain.Album
	for rows.Next() {
		a := domain.Album{}
		err := rows.Scan(
			&a.ID, &a.OwnerKey, &a.ExternalID, &a.Name, &a.ArtistName, &a.ImageURL, &a.Value, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan album row: %w", err)
		}
		albums = append(albums, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate album rows: %w", err)
	}
	return albums, nil
}

// Delete removes an album. Deleting a missing album is not an error.
func (r *AlbumRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	return nil
}
