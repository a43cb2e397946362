package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository on a Store.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{store: s}
}

func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owners[w.OwnerKey]; ok {
		return fmt.Errorf("insert wallet: %w: owner_key", ports.ErrDuplicateKey)
	}
	cp := *w
	s.wallets[w.ID] = &cp
	s.owners[w.OwnerKey] = w.ID
	return nil
}

func (r *WalletRepo) GetByOwner(ctx context.Context, ownerKey string) (*domain.Wallet, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletByOwner(ownerKey), nil
}

// GetByOwnerForUpdate takes the owner's lock for the life of tx, then reads the
// wallet as tx sees it.
func (r *WalletRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerKey string) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, ownerKey); err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	s := r.store
	s.mu.RLock()
	w := s.walletByOwner(ownerKey)
	s.mu.RUnlock()
	if w == nil {
		return nil, nil
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if staged, ok := mt.wallets[w.ID]; ok {
		cp := *staged
		return &cp, nil
	}
	return w, nil
}

// Save stages the wallet in tx. It is written to the store on Commit.
func (r *WalletRepo) Save(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.RLock()
	_, ok := s.wallets[w.ID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return pgx.ErrTxClosed
	}
	cp := *w
	mt.wallets[w.ID] = &cp
	return nil
}

// walletByOwner returns a copy. Callers hold s.mu.
func (s *Store) walletByOwner(ownerKey string) *domain.Wallet {
	id, ok := s.owners[ownerKey]
	if !ok {
		return nil
	}
	cp := *s.wallets[id]
	return &cp
}
