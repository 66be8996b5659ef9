// Package ledger keeps the chronological record of transactions and
// answers the aggregate queries the reporting surfaces need.
package ledger

import (
	"sort"

	"tally/internal/core"
)

// Ledger is an in-memory transaction log. It is not safe for concurrent
// use; the service layer serializes access.
type Ledger struct {
	transactions []core.Transaction
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Replace swaps the full transaction set, used when loading from a
// persistence backend.
func (l *Ledger) Replace(txs []core.Transaction) {
	l.transactions = make([]core.Transaction, len(txs))
	copy(l.transactions, txs)
}

// Append adds a transaction to the log.
func (l *Ledger) Append(tx core.Transaction) {
	l.transactions = append(l.transactions, tx)
}

// RemoveByID deletes the transaction with the given id and reports
// whether it was present.
func (l *Ledger) RemoveByID(id string) bool {
	for i, tx := range l.transactions {
		if tx.ID == id {
			l.transactions = append(l.transactions[:i], l.transactions[i+1:]...)
			return true
		}
	}
	return false
}

// FindByID returns the transaction with the given id.
func (l *Ledger) FindByID(id string) (core.Transaction, error) {
	for _, tx := range l.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

// Len returns the number of recorded transactions.
func (l *Ledger) Len() int {
	return len(l.transactions)
}

// All returns a copy of every transaction in insertion order.
func (l *Ledger) All() []core.Transaction {
	out := make([]core.Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// Range returns the transactions dated within [from, to], inclusive,
// sorted by date then insertion order.
func (l *Ledger) Range(from, to core.Date) []core.Transaction {
	var out []core.Transaction
	for _, tx := range l.transactions {
		if tx.Date.OnOrAfter(from) && tx.Date.OnOrBefore(to) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}

// Recent returns up to n transactions, newest first by date with later
// insertions winning ties.
func (l *Ledger) Recent(n int) []core.Transaction {
	out := l.All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Date.Before(out[i].Date.Time)
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// HasGenerated reports whether a transaction generated from the given
// template already exists on the given date. The scheduler uses it to
// keep catch-up runs idempotent.
func (l *Ledger) HasGenerated(recurringID string, date core.Date) bool {
	for _, tx := range l.transactions {
		if tx.RecurringID == recurringID && tx.Date.Equal(date.Time) {
			return true
		}
	}
	return false
}

// Balance returns income minus expenses over the whole ledger.
func (l *Ledger) Balance() core.Money {
	var total core.Money
	for _, tx := range l.transactions {
		if tx.Kind.IsExpense() {
			total.Cents -= tx.Amount.Cents
		} else {
			total.Cents += tx.Amount.Cents
		}
	}
	return total
}

// MonthlyIncome sums income transactions in the given month.
func (l *Ledger) MonthlyIncome(year int, month int) core.Money {
	return l.monthTotal(year, month, false)
}

// MonthlyExpenses sums expense and recurring-expense transactions in
// the given month.
func (l *Ledger) MonthlyExpenses(year int, month int) core.Money {
	return l.monthTotal(year, month, true)
}

func (l *Ledger) monthTotal(year, month int, expense bool) core.Money {
	var total core.Money
	for _, tx := range l.transactions {
		if !inMonth(tx, year, month) || tx.Kind.IsExpense() != expense {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total
}

// MonthSummary builds the per-month report with per-category breakdowns
// sorted by amount descending.
func (l *Ledger) MonthSummary(year int, month int) core.MonthSummary {
	income := map[string]int64{}
	expenses := map[string]int64{}
	for _, tx := range l.transactions {
		if !inMonth(tx, year, month) {
			continue
		}
		if tx.Kind.IsExpense() {
			expenses[tx.Category] += tx.Amount.Cents
		} else {
			income[tx.Category] += tx.Amount.Cents
		}
	}

	s := core.MonthSummary{
		Year:          year,
		Month:         month,
		IncomeByCat:   byAmountDesc(income),
		ExpensesByCat: byAmountDesc(expenses),
	}
	for _, c := range s.IncomeByCat {
		s.Income = s.Income.Add(c.Amount)
	}
	for _, c := range s.ExpensesByCat {
		s.Expenses = s.Expenses.Add(c.Amount)
	}
	s.Net = core.Money{Cents: s.Income.Cents - s.Expenses.Cents}
	return s
}

func inMonth(tx core.Transaction, year, month int) bool {
	return tx.Date.Year() == year && int(tx.Date.Month()) == month
}

func byAmountDesc(totals map[string]int64) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, cents := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
