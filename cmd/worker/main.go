package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/app"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("worker", cfg.Log.Level, cfg.Log.Pretty)

	if cfg.AMQP.Driver == "memory" {
		log.Fatal().Msg("the standalone worker needs amqp.driver=rabbitmq; use worker.embedded with the memory broker")
	}

	log.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Int("max_deliveries", cfg.Worker.MaxDeliveries).
		Str("queue", cfg.AMQP.Queue).
		Msg("Starting Wallet Ledger debit worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise dependencies")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	consumer := a.NewConsumer(reg)

	gin.SetMode(gin.ReleaseMode)
	ops := gin.New()
	ops.GET("/health", httpHandler.HealthCheck(a.HealthCheckers...))
	ops.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	srv := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           ops,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Worker.MetricsAddr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// A consumer that stops on its own (broker gone) takes the process down with it.
		if err := consumer.Run(gctx); err != nil {
			return err
		}
		if ctx.Err() == nil {
			return errors.New("debit source closed unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
		exitCode = 1
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	if err := a.Close(closeCtx); err != nil {
		log.Error().Err(err).Msg("Failed to release resources")
	}
	cancel()

	log.Info().Msg("Worker exited")
	os.Exit(exitCode)
}
