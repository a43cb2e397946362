package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerOptions holds the wallet rules chosen at startup.
type LedgerOptions struct {
	// AllowNegativeBalance keeps debits permissive; false fails a debit that would go below zero.
	AllowNegativeBalance bool
	// Location decides which calendar day "today" is for accrual. Nil means UTC.
	Location *time.Location
	// DedupTTL is how long applied request ids stay in the fast-path cache.
	DedupTTL time.Duration
}

// LedgerService implements ports.WalletLedger and ports.UserCreatedHandler.
type LedgerService struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.EntryRepository
	transactor ports.DBTransactor
	dedupCache ports.ProcessedDebitCache // nil disables the fast path
	auditSvc   ports.AuditService
	policy     domain.AccrualPolicy
	opts       LedgerOptions
	now        func() time.Time
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	entryRepo ports.EntryRepository,
	transactor ports.DBTransactor,
	dedupCache ports.ProcessedDebitCache,
	auditSvc ports.AuditService,
	policy domain.AccrualPolicy,
	opts LedgerOptions,
	log zerolog.Logger,
) *LedgerService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &LedgerService{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		transactor: transactor,
		dedupCache: dedupCache,
		auditSvc:   auditSvc,
		policy:     policy,
		opts:       opts,
		now:        time.Now,
		log:        log,
	}
}

// WithClock replaces the time source. Used by tests that pin the weekday.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// Debit subtracts req.Amount from the owner's wallet and accrues today's points.
// The wallet row stays locked from read to commit.
func (s *LedgerService) Debit(ctx context.Context, req domain.DebitRequest) (*domain.Wallet, error) {
	if err := req.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if req.RequestID != "" && s.dedupCache != nil {
		seen, err := s.dedupCache.Seen(ctx, req.RequestID)
		if err != nil {
			s.log.Warn().Err(err).Str("request_id", req.RequestID).Msg("dedup cache check failed, falling through to journal")
		}
		if seen {
			return nil, apperror.ErrDuplicateDebit()
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByOwnerForUpdate(ctx, dbTx, req.OwnerKey)
	if err != nil {
		return nil, lockErr(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if req.RequestID != "" {
		applied, err := s.entryRepo.ExistsByRequestID(ctx, dbTx, req.RequestID)
		if err != nil {
			return nil, apperror.ErrStorageUnavailable(fmt.Errorf("check request id: %w", err))
		}
		if applied {
			return nil, apperror.ErrDuplicateDebit()
		}
	}

	if !s.opts.AllowNegativeBalance && wallet.Balance.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := domain.ValidateBalance(wallet.Balance.Sub(req.Amount)); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	now := s.now()
	points := s.policy.PointsForDay(now.In(s.opts.Location).Weekday())
	wallet.Debit(req.Amount, points, now.UTC())

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("save wallet: %w", err))
	}

	entry := newEntry(wallet, domain.EntryTypeDebit, req.Amount, points)
	if req.RequestID != "" {
		rid := req.RequestID
		entry.RequestID = &rid
	}
	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, apperror.ErrDuplicateDebit()
		}
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("create entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	if req.RequestID != "" && s.dedupCache != nil {
		if err := s.dedupCache.Remember(ctx, req.RequestID, s.opts.DedupTTL); err != nil {
			s.log.Warn().Err(err).Str("request_id", req.RequestID).Msg("failed to cache applied request id")
		}
	}

	s.audit(ctx, domain.AuditActionDebitApplied, wallet, entry)

	s.log.Info().
		Str("owner_key", wallet.OwnerKey).
		Str("amount", req.Amount.String()).
		Int64("points", points).
		Str("balance", wallet.Balance.String()).
		Str("request_id", req.RequestID).
		Msg("debit applied")

	return wallet, nil
}

// Credit adds amount to the owner's wallet. Points are not touched.
func (s *LedgerService) Credit(ctx context.Context, ownerKey string, amount decimal.Decimal) (*domain.Wallet, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, amountErr(err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByOwnerForUpdate(ctx, dbTx, ownerKey)
	if err != nil {
		return nil, lockErr(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if err := domain.ValidateBalance(wallet.Balance.Add(amount)); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	wallet.Credit(amount, s.now().UTC())

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("save wallet: %w", err))
	}

	entry := newEntry(wallet, domain.EntryTypeCredit, amount, 0)
	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("create entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	s.audit(ctx, domain.AuditActionCreditApplied, wallet, entry)

	s.log.Info().
		Str("owner_key", ownerKey).
		Str("amount", amount.String()).
		Str("balance", wallet.Balance.String()).
		Msg("credit applied")

	return wallet, nil
}

// GetWallet returns the current snapshot for ownerKey.
func (s *LedgerService) GetWallet(ctx context.Context, ownerKey string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, ownerKey)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// CreateWallet opens an empty wallet for ownerKey. A second wallet for the same owner is rejected.
func (s *LedgerService) CreateWallet(ctx context.Context, ownerKey string) (*domain.Wallet, error) {
	if strings.TrimSpace(ownerKey) == "" {
		return nil, apperror.Validation(domain.ErrMissingOwner.Error())
	}

	existing, err := s.walletRepo.GetByOwner(ctx, ownerKey)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("check wallet: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateWallet()
	}

	wallet := domain.NewWallet(ownerKey, s.now().UTC())
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, apperror.ErrDuplicateWallet()
		}
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("create wallet: %w", err))
	}

	entry := domain.NewAuditLog(domain.AuditActionWalletCreated, "wallet", wallet.ID.String())
	entry.OwnerKey = ownerKey
	s.auditSvc.Log(ctx, entry)

	s.log.Info().Str("owner_key", ownerKey).Str("wallet_id", wallet.ID.String()).Msg("wallet created")

	return wallet, nil
}

// OnUserCreated opens the wallet for a newly registered user.
func (s *LedgerService) OnUserCreated(ctx context.Context, user *domain.User) error {
	_, err := s.CreateWallet(ctx, user.OwnerKey())
	return err
}

func (s *LedgerService) audit(ctx context.Context, action domain.AuditAction, wallet *domain.Wallet, entry *domain.LedgerEntry) {
	log := domain.NewAuditLog(action, "ledger_entry", entry.ID.String())
	log.OwnerKey = wallet.OwnerKey
	log.Details = fmt.Sprintf(`{"amount":"%s","points":%d,"balance_after":"%s"}`,
		entry.Amount.String(), entry.Points, entry.BalanceAfter.String())
	s.auditSvc.Log(ctx, log)
}

// amountErr keeps the generic message for non-positive amounts.
func amountErr(err error) error {
	if errors.Is(err, domain.ErrNonPositiveAmount) {
		return apperror.ErrInvalidAmount()
	}
	return apperror.Validation(err.Error())
}

// lockErr maps a failed row lock to SYS_002 when it timed out and SYS_004 otherwise.
func lockErr(err error) error {
	if errors.Is(err, ports.ErrLockTimeout) {
		return apperror.ErrLockTimeout(err)
	}
	return apperror.ErrStorageUnavailable(fmt.Errorf("lock wallet: %w", err))
}

func newEntry(wallet *domain.Wallet, typ domain.EntryType, amount decimal.Decimal, points int64) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		OwnerKey:     wallet.OwnerKey,
		Type:         typ,
		Amount:       amount,
		Points:       points,
		BalanceAfter: wallet.Balance,
		CreatedAt:    wallet.LastUpdate,
	}
}
