package service

import (
	"context"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// statementService implements ports.StatementService.
type statementService struct {
	entryRepo  ports.EntryRepository
	walletRepo ports.WalletRepository
}

// NewStatementService creates a new statement service.
func NewStatementService(entryRepo ports.EntryRepository, walletRepo ports.WalletRepository) ports.StatementService {
	return &statementService{
		entryRepo:  entryRepo,
		walletRepo: walletRepo,
	}
}

// ListEntries returns a page of the owner's journal, newest first.
func (s *statementService) ListEntries(ctx context.Context, ownerKey string, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, ownerKey)
	if err != nil {
		return nil, 0, apperror.ErrStorageUnavailable(err)
	}
	if wallet == nil {
		return nil, 0, apperror.ErrNotFound("wallet")
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	entries, total, err := s.entryRepo.ListByOwner(ctx, ownerKey, page, pageSize)
	if err != nil {
		return nil, 0, apperror.ErrStorageUnavailable(err)
	}
	return entries, total, nil
}
