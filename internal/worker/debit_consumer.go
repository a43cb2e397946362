package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// Config controls consumer parallelism and retry limits.
type Config struct {
	// Concurrency is the number of lanes. Messages for one owner always use the same lane.
	Concurrency int
	// MaxDeliveries is the attempt at which a transient failure is dead-lettered instead of requeued.
	MaxDeliveries int
	// ShutdownTimeout bounds how long Run waits for in-flight debits after cancellation.
	ShutdownTimeout time.Duration
}

type job struct {
	delivery ports.Delivery
	req      domain.DebitRequest
}

// DebitConsumer applies debit requests from a DeliverySource to the ledger.
type DebitConsumer struct {
	source  ports.DeliverySource
	ledger  ports.WalletLedger
	audit   ports.AuditService
	metrics *Metrics
	cfg     Config
	log     zerolog.Logger
}

// NewDebitConsumer creates a consumer. metrics may be nil.
func NewDebitConsumer(
	source ports.DeliverySource,
	ledger ports.WalletLedger,
	audit ports.AuditService,
	metrics *Metrics,
	cfg Config,
	log zerolog.Logger,
) *DebitConsumer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxDeliveries < 1 {
		cfg.MaxDeliveries = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &DebitConsumer{
		source:  source,
		ledger:  ledger,
		audit:   audit,
		metrics: metrics,
		cfg:     cfg,
		log:     log,
	}
}

// Run consumes until ctx is cancelled or the source closes. After cancellation it stops
// pulling, requeues dispatched messages that have not started, and waits up to
// ShutdownTimeout for in-flight debits. Returns nil on a clean shutdown.
func (c *DebitConsumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(ctx)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	// In-flight debits must not be aborted by shutdown.
	applyCtx := context.WithoutCancel(ctx)

	lanes := make([]chan job, c.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan job, 1)
		wg.Add(1)
		go func(lane <-chan job) {
			defer wg.Done()
			for j := range lane {
				if ctx.Err() != nil {
					c.settleRequeue(j.delivery, "shutdown")
					continue
				}
				c.process(applyCtx, j)
			}
		}(lanes[i])
	}

	c.log.Info().Int("lanes", c.cfg.Concurrency).Int("max_deliveries", c.cfg.MaxDeliveries).Msg("debit consumer started")

	runErr := c.dispatch(ctx, deliveries, lanes)

	for _, lane := range lanes {
		close(lane)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.log.Info().Msg("debit consumer stopped")
	case <-time.After(c.cfg.ShutdownTimeout):
		c.log.Error().Dur("timeout", c.cfg.ShutdownTimeout).Msg("debit consumer shutdown timed out with debits in flight")
		if runErr == nil {
			runErr = errors.New("debit consumer shutdown timed out")
		}
	}

	return runErr
}

func (c *DebitConsumer) dispatch(ctx context.Context, deliveries <-chan ports.Delivery, lanes []chan job) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ports.ErrSourceClosed
			}

			req, err := domain.ParseDebitRequest(d.Body())
			if err != nil {
				c.drop(d, domain.DebitRequest{}, err)
				c.metrics.observe(OutcomeDropped, time.Time{})
				continue
			}

			lane := lanes[laneFor(req.OwnerKey, len(lanes))]
			select {
			case lane <- job{delivery: d, req: req}:
			case <-ctx.Done():
				c.settleRequeue(d, "shutdown")
				return nil
			}
		}
	}
}

func (c *DebitConsumer) process(ctx context.Context, j job) {
	c.metrics.InFlight.Inc()
	defer c.metrics.InFlight.Dec()

	started := time.Now()
	_, err := c.ledger.Debit(ctx, j.req)
	c.metrics.observe(c.settle(j, err), started)
}

// settle acknowledges the delivery according to the debit result and returns the outcome label.
func (c *DebitConsumer) settle(j job, err error) string {
	d := j.delivery
	log := c.log.With().
		Str("owner_key", j.req.OwnerKey).
		Str("request_id", j.req.RequestID).
		Int("attempt", d.Attempt()).
		Logger()

	switch {
	case err == nil:
		c.ack(d, log)
		return OutcomeApplied

	case apperror.HasCode(err, apperror.CodeDuplicateDebit):
		log.Info().Msg("debit already applied, acknowledging duplicate")
		c.ack(d, log)
		return OutcomeDuplicate

	case !apperror.IsTransient(err):
		c.drop(d, j.req, err)
		return OutcomeDropped

	case d.Attempt() >= c.cfg.MaxDeliveries:
		log.Error().Err(err).Msg("debit failed on final attempt, dead-lettering")
		if dlErr := d.DeadLetter(); dlErr != nil {
			log.Error().Err(dlErr).Msg("failed to dead-letter message")
		}
		c.auditDebit(domain.AuditActionDebitDeadLettered, j.req, err)
		return OutcomeDeadLettered

	default:
		log.Warn().Err(err).Msg("transient debit failure, requeueing")
		c.settleRequeue(d, "transient")
		return OutcomeRequeued
	}
}

func (c *DebitConsumer) drop(d ports.Delivery, req domain.DebitRequest, cause error) {
	c.log.Warn().
		Err(cause).
		Str("owner_key", req.OwnerKey).
		Str("request_id", req.RequestID).
		Int("attempt", d.Attempt()).
		Msg("dropping debit message")
	c.ack(d, c.log)
	c.auditDebit(domain.AuditActionDebitDropped, req, cause)
}

func (c *DebitConsumer) ack(d ports.Delivery, log zerolog.Logger) {
	if err := d.Ack(); err != nil {
		log.Error().Err(err).Msg("failed to ack message")
	}
}

func (c *DebitConsumer) settleRequeue(d ports.Delivery, reason string) {
	if err := d.Requeue(); err != nil {
		c.log.Error().Err(err).Str("reason", reason).Msg("failed to requeue message")
	}
}

func (c *DebitConsumer) auditDebit(action domain.AuditAction, req domain.DebitRequest, cause error) {
	if c.audit == nil {
		return
	}
	entry := domain.NewAuditLog(action, "debit_request", req.RequestID)
	entry.OwnerKey = req.OwnerKey
	entry.Details = fmt.Sprintf(`{"amount":%q,"error":%q}`, req.Amount.String(), cause.Error())
	c.audit.Log(context.Background(), entry)
}

func laneFor(ownerKey string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ownerKey))
	return int(h.Sum32() % uint32(n))
}
