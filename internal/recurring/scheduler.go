package recurring

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/log"
)

// ErrBackfillTruncated is returned when a catch-up run hits the
// per-template occurrence cap before reaching today.
var ErrBackfillTruncated = errors.New("backfill truncated at occurrence cap")

// DefaultMaxPerTemplate bounds how many occurrences a single catch-up
// run may generate for one template. A cursor years in the past on a
// daily template would otherwise flood the ledger.
const DefaultMaxPerTemplate = 1000

// LedgerAppender is the slice of the ledger the scheduler writes to.
type LedgerAppender interface {
	Append(tx core.Transaction)
	HasGenerated(recurringID string, date core.Date) bool
}

// Scheduler turns due templates into ledger transactions and advances
// their due-date cursors.
type Scheduler struct {
	ledger         LedgerAppender
	logger         *log.Logger
	maxPerTemplate int
	newID          func() string
}

// NewScheduler builds a scheduler with the default occurrence cap.
func NewScheduler(ledger LedgerAppender, logger *log.Logger) *Scheduler {
	return &Scheduler{
		ledger:         ledger,
		logger:         logger.WithComponent(log.ComponentRecurring),
		maxPerTemplate: DefaultMaxPerTemplate,
		newID:          uuid.NewString,
	}
}

// SetMaxPerTemplate overrides the per-template occurrence cap.
// Non-positive values restore the default.
func (s *Scheduler) SetMaxPerTemplate(n int) {
	if n <= 0 {
		n = DefaultMaxPerTemplate
	}
	s.maxPerTemplate = n
}

// IsDue reports whether the template owes an occurrence on or before
// the given date. Inactive and inert templates are never due.
func (s *Scheduler) IsDue(tpl core.RecurringTemplate, date core.Date) bool {
	if !tpl.Active || tpl.Inert() || tpl.NextDue.IsZero() {
		return false
	}
	return tpl.NextDue.OnOrBefore(date)
}

// ProcessOnDate generates at most one occurrence for the template,
// dated at its current cursor, and advances the cursor one period.
// It reports whether an occurrence was recorded. The template is
// mutated in place; the caller persists it.
func (s *Scheduler) ProcessOnDate(tpl *core.RecurringTemplate, date core.Date) bool {
	if !s.IsDue(*tpl, date) {
		return false
	}
	recorded := s.record(tpl)
	tpl.NextDue = Step(tpl.NextDue, tpl.Frequency)
	return recorded
}

// ProcessOverdue generates every occurrence the template owes up to and
// including today, advancing the cursor once per occurrence. On return
// the cursor is strictly after today unless the cap was hit, in which
// case the generated occurrences are returned alongside
// ErrBackfillTruncated and the cursor stays on the first ungenerated
// period.
func (s *Scheduler) ProcessOverdue(tpl *core.RecurringTemplate, today core.Date) (int, error) {
	if tpl.Inert() || !tpl.Active {
		return 0, nil
	}
	if tpl.NextDue.IsZero() {
		return 0, fmt.Errorf("template %s: %w", tpl.ID, core.ErrInvalidDate)
	}

	generated := 0
	for tpl.NextDue.OnOrBefore(today) {
		if generated >= s.maxPerTemplate {
			s.logger.Warn("catch-up stopped at occurrence cap",
				log.FieldTemplateID, tpl.ID,
				log.FieldCount, generated,
				log.FieldDueDate, tpl.NextDue.String(),
			)
			return generated, fmt.Errorf("template %s: %w", tpl.ID, ErrBackfillTruncated)
		}
		if s.record(tpl) {
			generated++
		}
		next := Step(tpl.NextDue, tpl.Frequency)
		if !next.After(tpl.NextDue.Time) {
			return generated, fmt.Errorf("template %s: cursor did not advance from %s", tpl.ID, tpl.NextDue)
		}
		tpl.NextDue = next
	}

	if generated > 0 {
		s.logger.Info("generated overdue occurrences",
			log.FieldTemplateID, tpl.ID,
			log.FieldDescription, tpl.Description,
			log.FieldCount, generated,
			log.FieldDueDate, tpl.NextDue.String(),
		)
	}
	return generated, nil
}

// record appends the occurrence dated at the template's current cursor,
// skipping dates the ledger has already seen for this template.
func (s *Scheduler) record(tpl *core.RecurringTemplate) bool {
	if s.ledger.HasGenerated(tpl.ID, tpl.NextDue) {
		s.logger.Debug("occurrence already recorded",
			log.FieldTemplateID, tpl.ID,
			log.FieldDueDate, tpl.NextDue.String(),
		)
		return false
	}
	s.ledger.Append(core.Transaction{
		ID:          s.newID(),
		Kind:        core.KindRecurringExpense,
		Date:        tpl.NextDue,
		Description: tpl.Description,
		Amount:      tpl.Amount,
		Category:    tpl.Category,
		RecurringID: tpl.ID,
	})
	return true
}
