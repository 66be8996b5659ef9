package recurring

import (
	"errors"

	"tally/internal/core"
	"tally/internal/log"
)

// DefaultFloor is the earliest date a reconciler will generate
// occurrences for, guarding against templates loaded with corrupt or
// ancient cursors.
var DefaultFloor = core.NewDate(2020, 1, 1)

// CatchUpResult summarizes one reconciliation pass.
type CatchUpResult struct {
	Templates int `json:"templates"` // templates examined
	Generated int `json:"generated"` // occurrences appended to the ledger
	Truncated int `json:"truncated"` // templates stopped at the occurrence cap
}

// Pending describes the occurrences a template currently owes.
type Pending struct {
	Template core.RecurringTemplate `json:"template"`
	Dates    []core.Date            `json:"dates"`
}

// Reconciler brings every template's cursor up to date, generating the
// occurrences missed while the process was not running.
type Reconciler struct {
	store     *Store
	scheduler *Scheduler
	logger    *log.Logger
	floor     core.Date
}

// NewReconciler builds a reconciler with the default floor.
func NewReconciler(store *Store, scheduler *Scheduler, logger *log.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		scheduler: scheduler,
		logger:    logger.WithComponent(log.ComponentRecurring),
		floor:     DefaultFloor,
	}
}

// SetFloor overrides the earliest generated date. Zero restores the
// default.
func (r *Reconciler) SetFloor(floor core.Date) {
	if floor.IsZero() {
		floor = DefaultFloor
	}
	r.floor = floor
}

// CatchUp processes every active template up to today. Templates whose
// cursor sits below the floor are advanced to the first period on or
// after it without generating anything. Errors on one template do not
// stop the others; the joined error is returned after the full pass.
func (r *Reconciler) CatchUp(today core.Date) (CatchUpResult, error) {
	var result CatchUpResult
	var errs []error

	for _, tpl := range r.store.Active() {
		result.Templates++
		if tpl.NextDue.IsZero() {
			tpl.NextDue = tpl.StartDate
		}
		r.advanceToFloor(&tpl)

		n, err := r.scheduler.ProcessOverdue(&tpl, today)
		result.Generated += n
		if err != nil {
			if errors.Is(err, ErrBackfillTruncated) {
				result.Truncated++
			}
			errs = append(errs, err)
		}
		if err := r.store.Update(tpl); err != nil {
			errs = append(errs, err)
		}
	}

	r.logger.Info("reconciliation pass complete",
		log.FieldCount, result.Generated,
		"templates", result.Templates,
		"truncated", result.Truncated,
	)
	return result, errors.Join(errs...)
}

// PendingSince reports, without mutating anything, the occurrence dates
// each active template owes up to today. Templates with nothing due are
// omitted.
func (r *Reconciler) PendingSince(today core.Date) []Pending {
	var out []Pending
	for _, tpl := range r.store.Active() {
		if tpl.NextDue.IsZero() {
			tpl.NextDue = tpl.StartDate
		}
		r.advanceToFloor(&tpl)

		var dates []core.Date
		cursor := tpl.NextDue
		for cursor.OnOrBefore(today) && len(dates) < r.scheduler.maxPerTemplate {
			dates = append(dates, cursor)
			next := Step(cursor, tpl.Frequency)
			if !next.After(cursor.Time) {
				break
			}
			cursor = next
		}
		if len(dates) > 0 {
			out = append(out, Pending{Template: tpl, Dates: dates})
		}
	}
	return out
}

func (r *Reconciler) advanceToFloor(tpl *core.RecurringTemplate) {
	if tpl.NextDue.OnOrAfter(r.floor) {
		return
	}
	from := tpl.NextDue
	for tpl.NextDue.Before(r.floor.Time) {
		next := Step(tpl.NextDue, tpl.Frequency)
		if !next.After(tpl.NextDue.Time) {
			return
		}
		tpl.NextDue = next
	}
	r.logger.Warn("cursor below floor, skipped ahead",
		log.FieldTemplateID, tpl.ID,
		"from", from.String(),
		"to", tpl.NextDue.String(),
	)
}
