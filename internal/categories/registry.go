// Package categories holds the per-kind category sets offered for
// classifying transactions. A Registry instance is owned by the service
// layer rather than shared process-wide, so tests and future multi-user
// code can carry independent sets.
package categories

import (
	"sort"
	"strings"

	"tally/internal/core"
)

// DefaultIncome and DefaultExpense seed a fresh registry.
var (
	DefaultIncome = []string{
		"Salary",
		"Freelance",
		"Investment",
		"Gift",
		"Allowance",
	}
	DefaultExpense = []string{
		"Groceries",
		"Transport",
		"Entertainment",
		"Utilities",
		"Healthcare",
		"Clothing",
		"Restaurants",
		"Education",
	}
)

// Registry maps each transaction kind to its known category names.
// Lookup is case-insensitive; stored names keep their original casing.
type Registry struct {
	income  []string
	expense []string
}

// NewDefault returns a registry seeded with the built-in sets.
func NewDefault() *Registry {
	return New(DefaultIncome, DefaultExpense)
}

// New builds a registry from explicit sets, dropping blanks and duplicates.
func New(income, expense []string) *Registry {
	r := &Registry{}
	for _, c := range income {
		r.Add(core.KindIncome, c)
	}
	for _, c := range expense {
		r.Add(core.KindExpense, c)
	}
	return r
}

// For returns a copy of the category names for the given kind.
// Recurring expenses share the expense set.
func (r *Registry) For(kind core.Kind) []string {
	src := r.set(kind)
	out := make([]string, len(*src))
	copy(out, *src)
	return out
}

// Contains reports whether name is registered for the given kind,
// ignoring case.
func (r *Registry) Contains(kind core.Kind, name string) bool {
	for _, c := range *r.set(kind) {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Add registers a category name for the given kind. Blank names and
// case-insensitive duplicates are ignored. It reports whether the name
// was added.
func (r *Registry) Add(kind core.Kind, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || r.Contains(kind, name) {
		return false
	}
	set := r.set(kind)
	*set = append(*set, name)
	return true
}

// Remove drops a category name from the given kind's set, ignoring
// case. It reports whether anything was removed.
func (r *Registry) Remove(kind core.Kind, name string) bool {
	set := r.set(kind)
	for i, c := range *set {
		if strings.EqualFold(c, name) {
			*set = append((*set)[:i], (*set)[i+1:]...)
			return true
		}
	}
	return false
}

// Sorted returns the kind's categories in lexical order.
func (r *Registry) Sorted(kind core.Kind) []string {
	out := r.For(kind)
	sort.Strings(out)
	return out
}

// Snapshot returns both sets for persistence.
func (r *Registry) Snapshot() (income, expense []string) {
	return r.For(core.KindIncome), r.For(core.KindExpense)
}

func (r *Registry) set(kind core.Kind) *[]string {
	if kind == core.KindIncome {
		return &r.income
	}
	return &r.expense
}
