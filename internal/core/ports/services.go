package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// ProcessedDebitCache remembers applied debit request ids (fast path in front of the journal).
type ProcessedDebitCache interface {
	Seen(ctx context.Context, requestID string) (bool, error)
	Remember(ctx context.Context, requestID string, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// WalletLedger is the single authority for mutating wallet balance and points.
type WalletLedger interface {
	Debit(ctx context.Context, req domain.DebitRequest) (*domain.Wallet, error)
	Credit(ctx context.Context, ownerKey string, amount decimal.Decimal) (*domain.Wallet, error)
	GetWallet(ctx context.Context, ownerKey string) (*domain.Wallet, error)
	CreateWallet(ctx context.Context, ownerKey string) (*domain.Wallet, error)
}

// UserCreatedHandler reacts to a new user in the directory.
type UserCreatedHandler interface {
	OnUserCreated(ctx context.Context, user *domain.User) error
}

// OwnerResolver translates an authenticated identity into a wallet owner key.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, userID uuid.UUID) (string, error)
}

// AuthService defines user registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}

// PurchaseService records album purchases and publishes the matching debit.
type PurchaseService interface {
	Purchase(ctx context.Context, ownerKey string, req PurchaseRequest) (*domain.Album, error)
	Collection(ctx context.Context, ownerKey string) ([]domain.Album, error)
	Remove(ctx context.Context, ownerKey string, albumID uuid.UUID) error
}

// PurchaseRequest holds validated input for an album purchase.
type PurchaseRequest struct {
	ExternalID string
	Name       string
	ArtistName string
	ImageURL   string
	Value      decimal.Decimal
}

// StatementService lists journal entries for an owner.
type StatementService interface {
	ListEntries(ctx context.Context, ownerKey string, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
