package memory

import (
	"context"
	"fmt"
	"sort"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// EntryRepo implements ports.EntryRepository on a Store.
type EntryRepo struct {
	store *Store
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(s *Store) *EntryRepo {
	return &EntryRepo{store: s}
}

// Create stages an entry in tx. A request id already committed or reserved by
// another open transaction is rejected with ports.ErrDuplicateKey.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return pgx.ErrTxClosed
	}

	if e.RequestID != nil {
		s := r.store
		s.mu.Lock()
		if _, taken := s.requestIDs[*e.RequestID]; taken {
			s.mu.Unlock()
			return fmt.Errorf("insert ledger entry: %w: request_id", ports.ErrDuplicateKey)
		}
		s.requestIDs[*e.RequestID] = struct{}{}
		s.mu.Unlock()
		mt.reserved = append(mt.reserved, *e.RequestID)
	}

	mt.entries = append(mt.entries, *e)
	return nil
}

func (r *EntryRepo) ExistsByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.requestIDs[requestID]
	return ok, nil
}

// ListByOwner returns one page of entries, newest first.
func (r *EntryRepo) ListByOwner(ctx context.Context, ownerKey string, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	s := r.store
	s.mu.RLock()
	var matched []domain.LedgerEntry
	for _, e := range s.entries {
		if e.OwnerKey == ownerKey {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	// Entries are appended in commit order; reverse it, then order by time.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
