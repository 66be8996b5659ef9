// Package worker drives scheduled catch-up runs. A run on startup
// covers whatever was missed while the process was down; the ticker
// keeps cursors current on long-running deployments that cross
// midnight or sleep through due dates.
package worker

import (
	"context"
	"fmt"
	"time"

	"tally/internal/log"
	"tally/internal/recurring"
)

// CatchUpRunner is the slice of the service the worker drives.
type CatchUpRunner interface {
	CatchUp(ctx context.Context) (recurring.CatchUpResult, error)
}

// RecurringWorker periodically generates overdue occurrences.
type RecurringWorker struct {
	runner   CatchUpRunner
	interval time.Duration
	logger   *log.Logger
}

// NewRecurringWorker builds a worker ticking at the given interval.
func NewRecurringWorker(runner CatchUpRunner, interval time.Duration, logger *log.Logger) *RecurringWorker {
	return &RecurringWorker{
		runner:   runner,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run performs a startup catch-up, then repeats on the interval until
// the context is cancelled.
func (w *RecurringWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "recurring worker starting",
		log.FieldOperation, log.OpStartup,
		"interval", w.interval.String(),
	)

	if err := w.runOnce(ctx); err != nil {
		return fmt.Errorf("startup catch-up: %w", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "recurring worker stopping",
				log.FieldOperation, log.OpShutdown,
			)
			return ctx.Err()
		case <-ticker.C:
			if err := w.runOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "scheduled catch-up failed",
					log.FieldError, err.Error(),
				)
			}
		}
	}
}

func (w *RecurringWorker) runOnce(ctx context.Context) error {
	result, err := w.runner.CatchUp(ctx)
	if err != nil {
		return err
	}
	if result.Generated > 0 {
		w.logger.InfoContext(ctx, "catch-up run generated occurrences",
			log.FieldOperation, log.OpCatchUp,
			log.FieldCount, result.Generated,
			"templates", result.Templates,
		)
	}
	return nil
}
