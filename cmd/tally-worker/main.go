// tally-worker runs the recurring scheduler without the HTTP API. It
// shares the same data backend as the server and is meant for
// deployments where catch-up runs as a separate process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/config"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(log.Config{
		Level:     log.DefaultConfig().Level,
		Component: log.ComponentWorker,
		JSON:      cfg.LogJSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := backend.NewFactory(logger).Create(backend.Config{
		Type:          backend.Type(cfg.DataBackend),
		DataDirectory: cfg.DataDir,
		SQLiteDBPath:  cfg.SQLiteDBPath,
	})
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("close backend", log.FieldError, err)
		}
	}()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("messaging unavailable, continuing without event publishing", log.FieldError, err)
			amqpClient = nil
		}
	}

	svc := services.New(result.Persister, amqpClient, logger)
	svc.SetBackfillLimit(cfg.BackfillLimit)
	if cfg.ReconcileFloor != "" {
		floor, err := core.ParseDate(cfg.ReconcileFloor)
		if err != nil {
			return fmt.Errorf("parse reconcile floor: %w", err)
		}
		svc.SetReconcileFloor(floor)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("close service", log.FieldError, err)
		}
	}()

	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	logger.Info("starting recurring worker",
		log.FieldBackend, cfg.DataBackend,
		"interval", cfg.WorkerInterval.String(),
	)

	w := worker.NewRecurringWorker(svc, cfg.WorkerInterval, logger)
	if err := w.Run(ctx); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
