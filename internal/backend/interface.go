// Package backend selects and constructs the persistence layer.
package backend

import (
	"tally/internal/core"
)

// Persister is the storage contract the service layer writes through.
// Saves replace the full set; loads return everything.
type Persister interface {
	LoadTransactions() ([]core.Transaction, error)
	SaveTransactions([]core.Transaction) error

	LoadTemplates() ([]core.RecurringTemplate, error)
	SaveTemplates([]core.RecurringTemplate) error

	LoadCategories() (income, expense []string, err error)
	SaveCategories(income, expense []string) error

	// Backup writes a point-in-time copy and returns its location.
	Backup() (string, error)

	Close() error
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// Result carries the constructed persister and its cleanup.
type Result struct {
	Persister Persister
	Cleanup   CleanupFunc
}

// Type names a persistence backend.
type Type string

const (
	JSONBackend   Type = "jsonfile"
	SQLiteBackend Type = "sqlite"
)

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// IsValid reports whether the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case JSONBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// Types returns every valid backend type.
func Types() []Type {
	return []Type{JSONBackend, SQLiteBackend}
}
