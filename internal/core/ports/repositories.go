package ports

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateKey is wrapped by repositories when an insert hits a unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrLockTimeout is wrapped when a row lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock wait timed out")

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
// Lookups return (nil, nil) when no wallet exists for the owner.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByOwner(ctx context.Context, ownerKey string) (*domain.Wallet, error)
	GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerKey string) (*domain.Wallet, error)
	Save(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// EntryRepository is the append-only journal of wallet movements.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ExistsByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (bool, error)
	ListByOwner(ctx context.Context, ownerKey string, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// UserRepository defines persistence operations for the user directory.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AlbumRepository stores purchased albums per owner.
type AlbumRepository interface {
	Create(ctx context.Context, album *domain.Album) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Album, error)
	ExistsForOwner(ctx context.Context, ownerKey, externalID string) (bool, error)
	ListByOwner(ctx context.Context, ownerKey string) ([]domain.Album, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
