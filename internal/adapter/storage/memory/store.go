// Package memory is a process-local storage driver. It keeps the same
// locking contract as the PostgreSQL driver: a wallet read for update stays
// locked until the owning transaction commits or rolls back.
package memory

import (
	"context"
	"errors"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds every table of the memory driver.
type Store struct {
	mu         sync.RWMutex
	wallets    map[uuid.UUID]*domain.Wallet
	owners     map[string]uuid.UUID
	entries    []domain.LedgerEntry
	requestIDs map[string]struct{} // committed plus reserved by open transactions
	users      map[uuid.UUID]*domain.User
	albums     map[uuid.UUID]*domain.Album
	audit      []domain.AuditLog

	lockMu sync.Mutex
	locks  map[string]*ownerLock
}

// ownerLock is a one-slot semaphore. refs counts holders and waiters; the
// entry is dropped from Store.locks when it reaches zero.
type ownerLock struct {
	ch   chan struct{}
	refs int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		wallets:    make(map[uuid.UUID]*domain.Wallet),
		owners:     make(map[string]uuid.UUID),
		requestIDs: make(map[string]struct{}),
		users:      make(map[uuid.UUID]*domain.User),
		albums:     make(map[uuid.UUID]*domain.Album),
		locks:      make(map[string]*ownerLock),
	}
}

func (s *Store) acquireRef(owner string) *ownerLock {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[owner]
	if !ok {
		l = &ownerLock{ch: make(chan struct{}, 1)}
		s.locks[owner] = l
	}
	l.refs++
	return l
}

func (s *Store) releaseRef(owner string, l *ownerLock) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, owner)
	}
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor over s.
func NewTransactor(s *Store) *Transactor {
	return &Transactor{store: s}
}

// Begin opens a transaction. Writes made through it become visible on Commit.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:   t.store,
		held:    make(map[string]*ownerLock),
		wallets: make(map[uuid.UUID]*domain.Wallet),
	}, nil
}

// memTx stages writes and holds owner locks. Only Commit and Rollback are
// meaningful; the embedded pgx.Tx is nil and must not be called.
type memTx struct {
	pgx.Tx

	store    *Store
	mu       sync.Mutex
	done     bool
	held     map[string]*ownerLock
	wallets  map[uuid.UUID]*domain.Wallet
	entries  []domain.LedgerEntry
	reserved []string
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, errForeignTx
	}
	return mt, nil
}

// lock blocks until the owner's lock is free or ctx ends. Re-locking an owner
// already held by this transaction is a no-op.
func (tx *memTx) lock(ctx context.Context, owner string) error {
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if _, ok := tx.held[owner]; ok {
		tx.mu.Unlock()
		return nil
	}
	tx.mu.Unlock()

	l := tx.store.acquireRef(owner)
	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		tx.store.releaseRef(owner, l)
		return ctx.Err()
	}

	tx.mu.Lock()
	tx.held[owner] = l
	tx.mu.Unlock()
	return nil
}

// Commit publishes staged writes and releases every owner lock.
func (tx *memTx) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}

	s := tx.store
	s.mu.Lock()
	for id, w := range tx.wallets {
		cp := *w
		s.wallets[id] = &cp
	}
	s.entries = append(s.entries, tx.entries...)
	s.mu.Unlock()

	tx.finish()
	return nil
}

// Rollback discards staged writes and releases locks. Calling it after Commit is a no-op.
func (tx *memTx) Rollback(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil
	}

	if len(tx.reserved) > 0 {
		s := tx.store
		s.mu.Lock()
		for _, id := range tx.reserved {
			delete(s.requestIDs, id)
		}
		s.mu.Unlock()
	}

	tx.finish()
	return nil
}

func (tx *memTx) finish() {
	for owner, l := range tx.held {
		<-l.ch
		tx.store.releaseRef(owner, l)
	}
	tx.held = nil
	tx.wallets = nil
	tx.entries = nil
	tx.reserved = nil
	tx.done = true
}
