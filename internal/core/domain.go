package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	FourWeekly Frequency = "fourweekly"
	Monthly    Frequency = "monthly"
	Quarterly  Frequency = "quarterly"
	Yearly     Frequency = "yearly"
)

const (
	KindIncome           Kind = "income"
	KindExpense          Kind = "expense"
	KindRecurringExpense Kind = "recurring_expense"
)

type (
	// Frequency is the step rule of a recurring template. Month and year
	// steps are calendar-aware, not fixed-day-count.
	Frequency string

	// Kind tags a transaction as income, a manually entered expense, or an
	// expense generated from a recurring template.
	Kind string

	// Date is a timezone-less calendar date. The time-of-day portion is
	// always midnight UTC.
	Date struct {
		time.Time
	}

	// Money is a fixed-point amount in cents.
	Money struct {
		Cents int64 `json:"cents"`
	}

	Transaction struct {
		ID          string `json:"id"`
		Kind        Kind   `json:"kind"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		// RecurringID back-references the template that generated this
		// transaction. Empty on manual entries. Lookup only: the template
		// does not own its generated transactions.
		RecurringID string `json:"recurring_id,omitempty"`
	}

	RecurringTemplate struct {
		ID          string    `json:"id"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Frequency   Frequency `json:"frequency"`
		StartDate   Date      `json:"start_date"`
		// NextDue is the cursor: the next occurrence not yet generated.
		// The only mutable scheduling state.
		NextDue Date `json:"next_due"`
		Active  bool `json:"active"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrNotFound         = errors.New("not found")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today truncates t to its calendar date.
func Today(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// OnOrBefore reports d <= other at day granularity.
func (d Date) OnOrBefore(other Date) bool {
	return !d.After(other.Time)
}

// OnOrAfter reports d >= other at day granularity.
func (d Date) OnOrAfter(other Date) bool {
	return !d.Before(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	*d = Date{Time: t}
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseFrequency normalizes a frequency string. Unknown values report
// ok=false and fall back to Monthly so a bad selection never breaks a
// template; callers log the substitution.
func ParseFrequency(s string) (Frequency, bool) {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, true
	case Weekly:
		return Weekly, true
	case FourWeekly:
		return FourWeekly, true
	case Monthly:
		return Monthly, true
	case Quarterly:
		return Quarterly, true
	case Yearly:
		return Yearly, true
	default:
		return Monthly, false
	}
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, FourWeekly, Monthly, Quarterly, Yearly:
		return true
	default:
		return false
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindRecurringExpense:
		return true
	default:
		return false
	}
}

// IsExpense reports whether the kind counts against the expense side of the
// balance. Generated recurring expenses are expenses.
func (k Kind) IsExpense() bool {
	return k == KindExpense || k == KindRecurringExpense
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Inert reports whether the template is still under construction: without a
// frequency or a start date it never steps and never produces occurrences.
func (rt RecurringTemplate) Inert() bool {
	return !rt.Frequency.Valid() || rt.StartDate.IsZero()
}

func (rt RecurringTemplate) Validate() error {
	if err := rt.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !rt.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rt.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(rt.Category) == "" {
		return ErrEmptyCategory
	}
	if !rt.NextDue.IsZero() && rt.NextDue.Before(rt.StartDate.Time) {
		return errors.New("next due date before start date")
	}
	return nil
}
