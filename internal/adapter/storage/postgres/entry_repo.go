package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const entryColumnList = `id, wallet_id, owner_key, entry_type, amount, points, balance_after, request_id, created_at`

// EntryRepo implements ports.EntryRepository over the ledger_entries journal.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create appends a journal row within a database transaction.
// A repeated request_id hits the unique constraint and is reported as ports.ErrDuplicateKey.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + entryColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.OwnerKey, e.Type,
		e.Amount, e.Points, e.BalanceAfter, e.RequestID, e.CreatedAt,
	)
	if err != nil {
		return wrapInsertErr("insert ledger entry", err)
	}
	return nil
}

// ExistsByRequestID reports whether a debit with this request id was already journaled.
func (r *EntryRepo) ExistsByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE request_id = $1)`

	var exists bool
	if err := tx.QueryRow(ctx, query, requestID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check request id: %w", err)
	}
	return exists, nil
}

// ListByOwner returns one page of an owner's entries, newest first, plus the total count.
func (r *EntryRepo) ListByOwner(ctx context.Context, ownerKey string, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE owner_key = $1`, ownerKey).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + entryColumnList + ` FROM ledger_entries
		WHERE owner_key = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerKey, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		err := rows.Scan(
			&e.ID, &e.WalletID, &e.OwnerKey, &e.Type,
			&e.Amount, &e.Points, &e.BalanceAfter, &e.RequestID, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, total, nil
}
