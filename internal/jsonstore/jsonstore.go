// Package jsonstore persists the full application state as three JSON
// documents in a data directory. Every save rewrites the whole file,
// which keeps the format trivially inspectable and diffable.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/log"
)

const (
	transactionsFile = "transactions.json"
	templatesFile    = "templates.json"
	categoriesFile   = "categories.json"
	backupDir        = "backups"
)

type categoriesDoc struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
}

// Store reads and writes application state under a single directory.
type Store struct {
	dir    string
	logger *log.Logger
}

// New creates the data directory if needed and returns a store over it.
func New(dir string, logger *log.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("jsonstore: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create data directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

// LoadTransactions reads the transaction log. A missing file yields an
// empty slice, not an error.
func (s *Store) LoadTransactions() ([]core.Transaction, error) {
	var txs []core.Transaction
	if err := s.readJSON(transactionsFile, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// SaveTransactions rewrites the transaction log.
func (s *Store) SaveTransactions(txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	return s.writeJSON(transactionsFile, txs)
}

// LoadTemplates reads the recurring templates.
func (s *Store) LoadTemplates() ([]core.RecurringTemplate, error) {
	var tpls []core.RecurringTemplate
	if err := s.readJSON(templatesFile, &tpls); err != nil {
		return nil, err
	}
	return tpls, nil
}

// SaveTemplates rewrites the recurring templates.
func (s *Store) SaveTemplates(tpls []core.RecurringTemplate) error {
	if tpls == nil {
		tpls = []core.RecurringTemplate{}
	}
	return s.writeJSON(templatesFile, tpls)
}

// LoadCategories reads the category sets. A missing file yields nil
// slices so the caller can fall back to defaults.
func (s *Store) LoadCategories() (income, expense []string, err error) {
	var doc categoriesDoc
	if err := s.readJSON(categoriesFile, &doc); err != nil {
		return nil, nil, err
	}
	return doc.Income, doc.Expense, nil
}

// SaveCategories rewrites the category sets.
func (s *Store) SaveCategories(income, expense []string) error {
	return s.writeJSON(categoriesFile, categoriesDoc{Income: income, Expense: expense})
}

// Backup copies the current data files into a timestamped directory
// under backups/ and returns its path. Missing data files are skipped.
func (s *Store) Backup() (string, error) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	dest := filepath.Join(s.dir, backupDir, stamp)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("jsonstore: create backup directory: %w", err)
	}

	copied := 0
	for _, name := range []string{transactionsFile, templatesFile, categoriesFile} {
		if err := copyFile(filepath.Join(s.dir, name), filepath.Join(dest, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("jsonstore: back up %s: %w", name, err)
		}
		copied++
	}

	s.logger.Info("backup written",
		log.FieldOperation, log.OpBackup,
		"path", dest,
		log.FieldCount, copied,
	)
	return dest, nil
}

// Close satisfies the persister interface; the store holds no handles.
func (s *Store) Close() error {
	return nil
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("jsonstore: read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonstore: decode %s: %w", name, err)
	}
	return nil
}

// writeJSON writes to a temp file in the same directory and renames it
// over the target, so readers never observe a half-written document.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonstore: temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonstore: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonstore: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("jsonstore: replace %s: %w", name, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
