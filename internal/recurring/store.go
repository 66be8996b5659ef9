package recurring

import (
	"sort"

	"tally/internal/core"
)

// Store is the in-memory template collection. Like the ledger it is
// serialized by the service layer rather than internally.
type Store struct {
	templates []core.RecurringTemplate
}

// NewStore returns an empty template store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps the full template set, used when loading from a
// persistence backend.
func (s *Store) Replace(tpls []core.RecurringTemplate) {
	s.templates = make([]core.RecurringTemplate, len(tpls))
	copy(s.templates, tpls)
}

// Add appends a template after validation.
func (s *Store) Add(tpl core.RecurringTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	s.templates = append(s.templates, tpl)
	return nil
}

// Update replaces the stored template with the same id.
func (s *Store) Update(tpl core.RecurringTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	for i := range s.templates {
		if s.templates[i].ID == tpl.ID {
			s.templates[i] = tpl
			return nil
		}
	}
	return core.ErrNotFound
}

// Remove deletes the template with the given id.
func (s *Store) Remove(id string) error {
	for i := range s.templates {
		if s.templates[i].ID == id {
			s.templates = append(s.templates[:i], s.templates[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

// Get returns the template with the given id.
func (s *Store) Get(id string) (core.RecurringTemplate, error) {
	for _, tpl := range s.templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return core.RecurringTemplate{}, core.ErrNotFound
}

// SetActive flips the active flag on the template with the given id.
func (s *Store) SetActive(id string, active bool) error {
	for i := range s.templates {
		if s.templates[i].ID == id {
			s.templates[i].Active = active
			return nil
		}
	}
	return core.ErrNotFound
}

// Len returns the number of stored templates.
func (s *Store) Len() int {
	return len(s.templates)
}

// All returns a copy of every template in insertion order.
func (s *Store) All() []core.RecurringTemplate {
	out := make([]core.RecurringTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

// Active returns the active, non-inert templates.
func (s *Store) Active() []core.RecurringTemplate {
	var out []core.RecurringTemplate
	for _, tpl := range s.templates {
		if tpl.Active && !tpl.Inert() {
			out = append(out, tpl)
		}
	}
	return out
}

// DueWithin returns active templates whose cursor falls within
// [from, to], sorted by due date with insertion order breaking ties.
func (s *Store) DueWithin(from, to core.Date) []core.RecurringTemplate {
	var out []core.RecurringTemplate
	for _, tpl := range s.Active() {
		if tpl.NextDue.OnOrAfter(from) && tpl.NextDue.OnOrBefore(to) {
			out = append(out, tpl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextDue.Before(out[j].NextDue.Time)
	})
	return out
}

// Summary aggregates the template set for reporting. Estimated monthly
// cost scales each frequency to a month: daily times 30, weekly times
// 4, four-weekly and monthly as-is, quarterly and yearly divided down.
func (s *Store) Summary() core.RecurringSummary {
	sum := core.RecurringSummary{
		ByFrequency: map[core.Frequency]core.Money{},
	}
	byCat := map[string]int64{}

	for _, tpl := range s.templates {
		sum.Total++
		if !tpl.Active {
			continue
		}
		sum.Active++
		byCat[tpl.Category] += tpl.Amount.Cents
		sum.ByFrequency[tpl.Frequency] = sum.ByFrequency[tpl.Frequency].Add(tpl.Amount)
		sum.EstimatedMonthly = sum.EstimatedMonthly.Add(monthlyEquivalent(tpl))
	}

	sum.ByCategory = make([]core.CategoryAmount, 0, len(byCat))
	for name, cents := range byCat {
		sum.ByCategory = append(sum.ByCategory, core.CategoryAmount{
			Name:   name,
			Amount: core.Money{Cents: cents},
		})
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		if sum.ByCategory[i].Amount.Cents != sum.ByCategory[j].Amount.Cents {
			return sum.ByCategory[i].Amount.Cents > sum.ByCategory[j].Amount.Cents
		}
		return sum.ByCategory[i].Name < sum.ByCategory[j].Name
	})
	return sum
}

func monthlyEquivalent(tpl core.RecurringTemplate) core.Money {
	switch tpl.Frequency {
	case core.Daily:
		return tpl.Amount.Mul(30)
	case core.Weekly:
		return tpl.Amount.Mul(4)
	case core.Quarterly:
		return tpl.Amount.Div(3)
	case core.Yearly:
		return tpl.Amount.Div(12)
	default:
		return tpl.Amount
	}
}
