package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/config"
	"tally/internal/core"
	apphttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/worker"
)

var cli struct {
	Serve   serveCmd   `cmd:"" default:"1" help:"Run the HTTP API and the recurring scheduler."`
	CatchUp catchUpCmd `cmd:"" name:"catchup" help:"Run a single catch-up pass and exit."`
	Backup  backupCmd  `cmd:"" help:"Write a backup of the current data and exit."`
}

func main() {
	kctx := kong.Parse(&cli)
	kctx.FatalIfErrorf(kctx.Run())
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	svc     *services.Service
	cleanup backend.CleanupFunc
}

// bootstrap loads configuration, opens the persistence backend, wires
// the optional AMQP publisher and loads state into memory.
func bootstrap(ctx context.Context) (*app, error) {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level:     log.DefaultConfig().Level,
		Component: log.ComponentApp,
		JSON:      cfg.LogJSON,
	})

	result, err := backend.NewFactory(logger).Create(backend.Config{
		Type:          backend.Type(cfg.DataBackend),
		DataDirectory: cfg.DataDir,
		SQLiteDBPath:  cfg.SQLiteDBPath,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize backend: %w", err)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("messaging unavailable, continuing without event publishing", log.FieldError, err)
			amqpClient = nil
		}
	} else {
		logger.Info("messaging disabled, no AMQP URL configured")
	}

	svc := services.New(result.Persister, amqpClient, logger)
	svc.SetBackfillLimit(cfg.BackfillLimit)
	if cfg.ReconcileFloor != "" {
		floor, err := core.ParseDate(cfg.ReconcileFloor)
		if err != nil {
			result.Cleanup()
			return nil, fmt.Errorf("parse reconcile floor: %w", err)
		}
		svc.SetReconcileFloor(floor)
	}

	if err := svc.Load(ctx); err != nil {
		result.Cleanup()
		return nil, fmt.Errorf("load state: %w", err)
	}

	return &app{cfg: cfg, logger: logger, svc: svc, cleanup: result.Cleanup}, nil
}

func (a *app) close() {
	if err := a.svc.Close(); err != nil {
		a.logger.Error("close service", log.FieldError, err)
	}
	if err := a.cleanup(); err != nil {
		a.logger.Error("close backend", log.FieldError, err)
	}
}

type serveCmd struct{}

func (serveCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv := apphttp.NewServer(":"+a.cfg.Port, a.svc, a.logger)
	w := worker.NewRecurringWorker(a.svc, a.cfg.WorkerInterval, a.logger)

	a.logger.Info("starting server",
		"port", a.cfg.Port,
		log.FieldBackend, a.cfg.DataBackend,
		"worker_interval", a.cfg.WorkerInterval.String(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

type catchUpCmd struct{}

func (catchUpCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.svc.CatchUp(ctx)
	if err != nil {
		return fmt.Errorf("catch-up: %w", err)
	}
	fmt.Printf("templates=%d generated=%d truncated=%d\n",
		result.Templates, result.Generated, result.Truncated)
	return nil
}

type backupCmd struct{}

func (backupCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	location, err := a.svc.Backup(ctx)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	fmt.Println(location)
	return nil
}
