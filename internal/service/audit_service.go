package service

import (
	"context"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// AuditServiceImpl implements ports.AuditService.
type AuditServiceImpl struct {
	repo ports.AuditRepository
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAuditService creates a new audit service.
// If repo is nil, audit logs are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget). After Close
// has started, entries are still logged but no longer persisted.
func (s *AuditServiceImpl) Log(ctx context.Context, entry *domain.AuditLog) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logEntry(entry)
		s.log.Warn().Str("action", string(entry.Action)).Msg("audit service closed, entry not persisted")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	persistCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()

		s.logEntry(entry)
		if s.repo == nil {
			return
		}

		writeCtx, cancel := context.WithTimeout(persistCtx, 5*time.Second)
		defer cancel()
		if err := s.repo.Create(writeCtx, entry); err != nil {
			s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
		}
	}()
}

func (s *AuditServiceImpl) logEntry(entry *domain.AuditLog) {
	s.log.Info().
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("owner_key", entry.OwnerKey).
		Str("ip", entry.IPAddress).
		Msg("audit")
}

// Close stops accepting writes and waits for pending ones until ctx expires.
func (s *AuditServiceImpl) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
