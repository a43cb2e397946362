// Package app wires configuration into the storage, broker and service graph
// shared by the api and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/queue/memqueue"
	"wallet-ledger/internal/adapter/queue/rabbitmq"
	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/adapter/storage/mongodb"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/internal/worker"
	"wallet-ledger/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App holds the wired services and the infrastructure they run on.
type App struct {
	Ledger    *service.LedgerService
	Auth      *service.AuthServiceImpl
	Purchases *service.PurchaseServiceImpl
	Statement ports.StatementService
	Audit     *service.AuditServiceImpl
	Tokens    *service.JWTTokenService

	Publisher ports.DebitPublisher
	Source    ports.DeliverySource

	// RateLimits is nil when Redis is disabled.
	RateLimits     *redisStorage.RateLimitStore
	HealthCheckers []ports.HealthChecker

	cfg     *config.Config
	log     zerolog.Logger
	closers []func(context.Context) error
}

type repositories struct {
	wallets    ports.WalletRepository
	entries    ports.EntryRepository
	users      ports.UserRepository
	albums     ports.AlbumRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
}

// Build connects every configured driver and assembles the services.
// On error, whatever was opened is closed again.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	if err := a.build(ctx); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	repos, err := a.openStorage(ctx)
	if err != nil {
		return err
	}

	if err := a.openAudit(ctx, repos); err != nil {
		return err
	}

	var dedup ports.ProcessedDebitCache
	if a.cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, a.cfg.Redis, a.log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
		dedup = redisStorage.NewDebitCache(rdb)
		a.RateLimits = redisStorage.NewRateLimitStore(rdb)
		a.HealthCheckers = append(a.HealthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	if err := a.openBroker(); err != nil {
		return err
	}

	loc, err := a.cfg.Ledger.Location()
	if err != nil {
		return err
	}
	policy := domain.DefaultAccrualPolicy()
	table, err := a.cfg.Ledger.PointsTable()
	if err != nil {
		return err
	}
	if table != nil {
		policy = domain.NewAccrualPolicy(table)
	}

	a.Ledger = service.NewLedgerService(
		repos.wallets,
		repos.entries,
		repos.transactor,
		dedup,
		a.Audit,
		policy,
		service.LedgerOptions{
			AllowNegativeBalance: a.cfg.Ledger.AllowNegativeBalance,
			Location:             loc,
			DedupTTL:             a.cfg.Ledger.DedupTTL,
		},
		logger.Component(a.log, "ledger"),
	)
	a.Tokens = service.NewJWTTokenService(a.cfg.JWT.Secret, a.cfg.JWT.Expiry, a.cfg.JWT.Issuer)
	hasher := service.NewArgon2HashService()
	if a.cfg.Storage.Driver == "memory" {
		hasher = service.NewArgon2HashServiceWithParams(service.LocalArgon2Params)
	}
	a.Auth = service.NewAuthService(repos.users, hasher, a.Tokens, logger.Component(a.log, "auth"), a.Ledger)
	a.Purchases = service.NewPurchaseService(repos.albums, a.Publisher, logger.Component(a.log, "purchases"))
	a.Statement = service.NewStatementService(repos.entries, repos.wallets)

	return nil
}

func (a *App) openStorage(ctx context.Context) (repositories, error) {
	switch a.cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		a.log.Warn().Msg("using in-memory storage; all data is lost on exit")
		return repositories{
			wallets:    memory.NewWalletRepo(store),
			entries:    memory.NewEntryRepo(store),
			users:      memory.NewUserRepo(store),
			albums:     memory.NewAlbumRepo(store),
			audit:      memory.NewAuditRepo(store),
			transactor: memory.NewTransactor(store),
		}, nil
	default:
		pool, err := pgStorage.NewPool(ctx, a.cfg.Database, a.log)
		if err != nil {
			return repositories{}, fmt.Errorf("connect postgres: %w", err)
		}
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		a.HealthCheckers = append(a.HealthCheckers, pgStorage.NewHealthCheck(pool))

		if a.cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool, a.log); err != nil {
				return repositories{}, err
			}
		}

		return repositories{
			wallets:    pgStorage.NewWalletRepo(pool),
			entries:    pgStorage.NewEntryRepo(pool),
			users:      pgStorage.NewUserRepo(pool),
			albums:     pgStorage.NewAlbumRepo(pool),
			audit:      pgStorage.NewAuditRepo(pool),
			transactor: pgStorage.NewTransactor(pool, a.cfg.Database.LockTimeout),
		}, nil
	}
}

// openAudit picks the audit sink. "postgres" means the primary store, whichever driver that is.
func (a *App) openAudit(ctx context.Context, repos repositories) error {
	var repo ports.AuditRepository
	switch a.cfg.Audit.Driver {
	case "mongo":
		client, err := mongodb.NewClient(ctx, a.cfg.Mongo, a.log)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.onClose(client.Disconnect)
		a.HealthCheckers = append(a.HealthCheckers, mongodb.NewHealthCheck(client))
		repo = mongodb.NewAuditRepo(client, a.cfg.Mongo.Database)
	case "log":
		repo = nil
	default:
		repo = repos.audit
	}

	a.Audit = service.NewAuditService(repo, logger.Component(a.log, "audit"))
	a.onClose(a.Audit.Close)
	return nil
}

func (a *App) openBroker() error {
	if a.cfg.AMQP.Driver == "memory" {
		q := memqueue.New()
		if !a.cfg.Worker.Embedded {
			a.log.Warn().Msg("memory broker without an embedded worker: published debits are never applied")
		}
		a.Publisher = q
		a.Source = q
		return nil
	}

	conn, err := rabbitmq.Dial(a.cfg.AMQP, a.log)
	if err != nil {
		return err
	}
	a.onClose(func(context.Context) error { return conn.Close() })
	a.HealthCheckers = append(a.HealthCheckers, rabbitmq.NewHealthCheck(conn))

	pubCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	err = rabbitmq.Declare(pubCh, rabbitmq.Topology{
		Exchange:        a.cfg.AMQP.Exchange,
		RoutingKey:      a.cfg.AMQP.RoutingKey,
		Queue:           a.cfg.AMQP.Queue,
		DeadLetterQueue: a.cfg.AMQP.DeadLetterQ,
		DeliveryLimit:   a.cfg.Worker.MaxDeliveries + 2,
	})
	if err != nil {
		return err
	}
	a.Publisher = rabbitmq.NewPublisher(pubCh, a.cfg.AMQP.Exchange, a.cfg.AMQP.RoutingKey, logger.Component(a.log, "rabbitmq"))

	// Consumers get their own channel so a slow ack path never blocks publishing.
	consCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	a.Source = rabbitmq.NewSource(consCh, a.cfg.AMQP.Queue, consumerTag(a.cfg.AMQP.ConnectionName), a.cfg.Worker.Prefetch, logger.Component(a.log, "rabbitmq"))
	return nil
}

// NewConsumer builds the debit consumer over the configured source.
func (a *App) NewConsumer(reg prometheus.Registerer) *worker.DebitConsumer {
	return worker.NewDebitConsumer(
		a.Source,
		a.Ledger,
		a.Audit,
		worker.NewMetrics(reg),
		worker.Config{
			Concurrency:     a.cfg.Worker.Concurrency,
			MaxDeliveries:   a.cfg.Worker.MaxDeliveries,
			ShutdownTimeout: a.cfg.Worker.ShutdownTimeout,
		},
		logger.Component(a.log, "debit_consumer"),
	)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func consumerTag(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return prefix
	}
	return prefix + "@" + host
}
