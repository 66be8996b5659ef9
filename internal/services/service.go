// Package services orchestrates the ledger, template store, scheduler
// and persistence behind a single mutex. Every mutation is flushed to
// the backend before the lock is released, so the persisted state
// always reflects the last completed operation.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/categories"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"
	"tally/internal/recurring"
)

// Service is the application facade used by the HTTP server, the CLI
// and the worker.
type Service struct {
	mu         sync.Mutex
	ledger     *ledger.Ledger
	store      *recurring.Store
	scheduler  *recurring.Scheduler
	reconciler *recurring.Reconciler
	registry   *categories.Registry
	persister  backend.Persister
	amqpClient *amqp.Client
	logger     *log.Logger

	now   func() core.Date
	newID func() string
}

// New wires the service together. The AMQP client may be nil, in which
// case event publishing is skipped.
func New(persister backend.Persister, amqpClient *amqp.Client, logger *log.Logger) *Service {
	l := ledger.New()
	store := recurring.NewStore()
	scheduler := recurring.NewScheduler(l, logger)
	return &Service{
		ledger:     l,
		store:      store,
		scheduler:  scheduler,
		reconciler: recurring.NewReconciler(store, scheduler, logger),
		registry:   categories.NewDefault(),
		persister:  persister,
		amqpClient: amqpClient,
		logger:     logger.WithComponent(log.ComponentLedger),
		now:        func() core.Date { return core.Today(time.Now()) },
		newID:      uuid.NewString,
	}
}

// SetBackfillLimit forwards the per-template occurrence cap to the
// scheduler.
func (s *Service) SetBackfillLimit(n int) {
	s.scheduler.SetMaxPerTemplate(n)
}

// SetReconcileFloor forwards the earliest backfill date to the
// reconciler.
func (s *Service) SetReconcileFloor(floor core.Date) {
	s.reconciler.SetFloor(floor)
}

// Load pulls the full state from the persistence backend.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.persister.LoadTransactions()
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	tpls, err := s.persister.LoadTemplates()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	income, expense, err := s.persister.LoadCategories()
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	s.ledger.Replace(txs)
	s.store.Replace(tpls)
	if len(income) > 0 || len(expense) > 0 {
		s.registry = categories.New(income, expense)
	}

	s.logger.InfoContext(ctx, "state loaded",
		log.FieldOperation, log.OpStartup,
		"transactions", len(txs),
		"templates", len(tpls),
	)
	return nil
}

// TransactionInput carries the fields for a new manual entry.
type TransactionInput struct {
	Kind        core.Kind
	Date        core.Date
	Description string
	AmountCents int64
	Category    string
}

// RecordTransaction validates and appends a manual entry.
func (s *Service) RecordTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	tx := core.Transaction{
		ID:          s.newID(),
		Kind:        in.Kind,
		Date:        in.Date,
		Description: in.Description,
		Amount:      core.Money{Cents: in.AmountCents},
		Category:    in.Category,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureCategory(ctx, tx.Kind, tx.Category)

	s.ledger.Append(tx)
	s.flushTransactions(ctx)

	msg := amqp.NewLedgerEventMessage(amqp.EventTransactionRecorded)
	msg.TransactionID = tx.ID
	s.publish(ctx, msg)

	s.logger.InfoContext(ctx, "transaction recorded",
		log.FieldOperation, log.OpCreate,
		log.FieldTxID, tx.ID,
		log.FieldAmountCents, tx.Amount.Cents,
		log.FieldCategory, tx.Category,
	)
	return tx, nil
}

// RemoveTransaction deletes an entry by id.
func (s *Service) RemoveTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ledger.RemoveByID(id) {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	s.flushTransactions(ctx)

	msg := amqp.NewLedgerEventMessage(amqp.EventTransactionRemoved)
	msg.TransactionID = id
	s.publish(ctx, msg)

	s.logger.InfoContext(ctx, "transaction removed",
		log.FieldOperation, log.OpDelete,
		log.FieldTxID, id,
	)
	return nil
}

// GetTransaction returns a single entry by id.
func (s *Service) GetTransaction(id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.FindByID(id)
}

// RecentTransactions returns up to limit entries, newest first.
// A non-positive limit returns everything.
func (s *Service) RecentTransactions(limit int) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = s.ledger.Len()
	}
	return s.ledger.Recent(limit)
}

// TransactionsInRange returns entries dated within [from, to].
func (s *Service) TransactionsInRange(from, to core.Date) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Range(from, to)
}

// Balance returns income minus expenses over the whole ledger.
func (s *Service) Balance() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Balance()
}

// MonthSummary returns the per-month report.
func (s *Service) MonthSummary(year, month int) core.MonthSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.MonthSummary(year, month)
}

// ensureCategory registers a category as a side effect of it being
// used, so classifying a transaction never fails on an unseen name.
// Caller holds the mutex.
func (s *Service) ensureCategory(ctx context.Context, kind core.Kind, name string) {
	if !s.registry.Add(kind, name) {
		return
	}
	s.logger.InfoContext(ctx, "category registered on first use",
		log.FieldCategory, name,
		log.FieldKind, string(kind),
	)
	s.flushCategories(ctx)
}

// Categories returns the category names for a kind.
func (s *Service) Categories(kind core.Kind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.For(kind)
}

// AddCategory registers a new category name.
func (s *Service) AddCategory(ctx context.Context, kind core.Kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registry.Add(kind, name) {
		return fmt.Errorf("category %q: already registered or empty", name)
	}
	s.flushCategories(ctx)
	return nil
}

// RemoveCategory drops a category name.
func (s *Service) RemoveCategory(ctx context.Context, kind core.Kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registry.Remove(kind, name) {
		return fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	s.flushCategories(ctx)
	return nil
}

// TemplateInput carries the fields for a new or updated template.
type TemplateInput struct {
	Description string
	AmountCents int64
	Category    string
	Frequency   core.Frequency
	StartDate   core.Date
}

// CreateTemplate registers a recurring template. The cursor starts at
// the start date; nothing is generated until the next catch-up run.
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (core.RecurringTemplate, error) {
	tpl := core.RecurringTemplate{
		ID:          s.newID(),
		Amount:      core.Money{Cents: in.AmountCents},
		Description: in.Description,
		Category:    in.Category,
		Frequency:   s.normalizeFrequency(ctx, in.Frequency),
		StartDate:   in.StartDate,
		NextDue:     in.StartDate,
		Active:      true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureCategory(ctx, core.KindExpense, tpl.Category)
	if err := s.store.Add(tpl); err != nil {
		return core.RecurringTemplate{}, err
	}
	s.flushTemplates(ctx)

	s.logger.InfoContext(ctx, "template created",
		log.FieldOperation, log.OpCreate,
		log.FieldTemplateID, tpl.ID,
		log.FieldFrequency, string(tpl.Frequency),
		log.FieldDueDate, tpl.NextDue.String(),
	)
	return tpl, nil
}

// normalizeFrequency falls back to monthly on an unrecognized value.
// Bad frequency input is never fatal.
func (s *Service) normalizeFrequency(ctx context.Context, freq core.Frequency) core.Frequency {
	if freq.Valid() {
		return freq
	}
	s.logger.WarnContext(ctx, "unrecognized frequency, defaulting to monthly",
		log.FieldFrequency, string(freq),
	)
	return core.Monthly
}

// UpdateTemplate rewrites a template's descriptive fields. The cursor
// is left alone so past occurrences keep their meaning; changing the
// start date below the cursor does not regenerate history.
func (s *Service) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, err := s.store.Get(id)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", id, err)
	}
	s.ensureCategory(ctx, core.KindExpense, in.Category)

	tpl.Description = in.Description
	tpl.Amount = core.Money{Cents: in.AmountCents}
	tpl.Category = in.Category
	tpl.Frequency = s.normalizeFrequency(ctx, in.Frequency)
	if !in.StartDate.IsZero() {
		tpl.StartDate = in.StartDate
		if tpl.NextDue.Before(in.StartDate.Time) {
			tpl.NextDue = in.StartDate
		}
	}

	if err := s.store.Update(tpl); err != nil {
		return core.RecurringTemplate{}, err
	}
	s.flushTemplates(ctx)
	return tpl, nil
}

// DeleteTemplate removes a template. Its generated transactions stay in
// the ledger.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(id); err != nil {
		return fmt.Errorf("template %s: %w", id, err)
	}
	s.flushTemplates(ctx)

	s.logger.InfoContext(ctx, "template deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTemplateID, id,
	)
	return nil
}

// GetTemplate returns a template by id.
func (s *Service) GetTemplate(id string) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(id)
}

// ListTemplates returns every template.
func (s *Service) ListTemplates() []core.RecurringTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

// SetTemplateActive pauses or resumes a template. Resuming does not
// move the cursor; the next catch-up generates everything the pause
// skipped, which is the price of never losing an occurrence.
func (s *Service) SetTemplateActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetActive(id, active); err != nil {
		return fmt.Errorf("template %s: %w", id, err)
	}
	s.flushTemplates(ctx)

	s.logger.InfoContext(ctx, "template active flag changed",
		log.FieldOperation, log.OpUpdate,
		log.FieldTemplateID, id,
		"active", active,
	)
	return nil
}

// RecurringSummary aggregates the template set.
func (s *Service) RecurringSummary() core.RecurringSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Summary()
}

// UpcomingTemplates returns templates due within the next n days.
func (s *Service) UpcomingTemplates(days int) []core.RecurringTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := s.now()
	return s.store.DueWithin(today, today.AddDays(days))
}

// PendingOccurrences reports what the next catch-up would generate.
func (s *Service) PendingOccurrences() []recurring.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler.PendingSince(s.now())
}

// CatchUp generates every overdue occurrence across all templates and
// flushes the result. Safe to call repeatedly.
func (s *Service) CatchUp(ctx context.Context) (recurring.CatchUpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.reconciler.CatchUp(s.now())
	if result.Generated > 0 {
		s.flushTransactions(ctx)
		s.flushTemplates(ctx)

		msg := amqp.NewLedgerEventMessage(amqp.EventOccurrencesCaughtUp)
		msg.Count = result.Generated
		s.publish(ctx, msg)
	}
	return result, err
}

// ProcessTemplate generates overdue occurrences for one template only.
func (s *Service) ProcessTemplate(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, err := s.store.Get(id)
	if err != nil {
		return 0, fmt.Errorf("template %s: %w", id, err)
	}
	n, err := s.scheduler.ProcessOverdue(&tpl, s.now())
	if n > 0 {
		if uerr := s.store.Update(tpl); uerr != nil && err == nil {
			err = uerr
		}
		s.flushTransactions(ctx)
		s.flushTemplates(ctx)
	}
	return n, err
}

// Backup asks the backend for a point-in-time copy.
func (s *Service) Backup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persister.Backup()
}

// Close flushes nothing further and releases the backend.
func (s *Service) Close() error {
	if s.amqpClient != nil {
		s.amqpClient.Close()
	}
	return s.persister.Close()
}

// Flush failures are logged, not returned: the in-memory state is the
// source of truth for the session and the next successful flush
// rewrites the full set anyway.
func (s *Service) flushTransactions(ctx context.Context) {
	if err := s.persister.SaveTransactions(s.ledger.All()); err != nil {
		s.logger.ErrorContext(ctx, "flush transactions failed",
			log.FieldOperation, log.OpFlush,
			log.FieldError, err.Error(),
		)
	}
}

func (s *Service) flushTemplates(ctx context.Context) {
	if err := s.persister.SaveTemplates(s.store.All()); err != nil {
		s.logger.ErrorContext(ctx, "flush templates failed",
			log.FieldOperation, log.OpFlush,
			log.FieldError, err.Error(),
		)
	}
}

func (s *Service) flushCategories(ctx context.Context) {
	income, expense := s.registry.Snapshot()
	if err := s.persister.SaveCategories(income, expense); err != nil {
		s.logger.ErrorContext(ctx, "flush categories failed",
			log.FieldOperation, log.OpFlush,
			log.FieldError, err.Error(),
		)
	}
}

func (s *Service) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishLedgerEvent(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"event", msg.Event,
			log.FieldError, err.Error(),
		)
	}
}
