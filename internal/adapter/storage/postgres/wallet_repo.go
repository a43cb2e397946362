package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const walletColumnList = `id, owner_key, balance, points, last_update, created_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet. A second wallet for the same owner hits the owner_key constraint.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerKey, w.Balance, w.Points, w.LastUpdate, w.CreatedAt,
	)
	if err != nil {
		return wrapInsertErr("insert wallet", err)
	}
	return nil
}

// GetByOwner fetches a wallet without locking it.
func (r *WalletRepo) GetByOwner(ctx context.Context, ownerKey string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumnList + ` FROM wallets WHERE owner_key = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, ownerKey))
}

// GetByOwnerForUpdate fetches a wallet with SELECT ... FOR UPDATE inside a transaction.
// The row stays locked until the transaction ends. A wait longer than the
// transaction's lock_timeout returns ports.ErrLockTimeout.
func (r *WalletRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerKey string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumnList + ` FROM wallets WHERE owner_key = $1 FOR UPDATE`
	w, err := scanWallet(tx.QueryRow(ctx, query, ownerKey))
	if err != nil {
		return nil, wrapLockErr(err)
	}
	return w, nil
}

// Save writes back balance, points and last_update within a transaction.
func (r *WalletRepo) Save(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, points = $2, last_update = $3 WHERE id = $4`

	tag, err := tx.Exec(ctx, query, w.Balance, w.Points, w.LastUpdate, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.OwnerKey, &w.Balance, &w.Points, &w.LastUpdate, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
