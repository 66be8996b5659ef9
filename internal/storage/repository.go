// Package storage implements the SQLite persistence backend. State is
// written through in full on every save, mirroring the JSON backend, so
// the database is a durable snapshot rather than an event log.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists application state in a single SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// NewSQLiteRepository opens the database, creating the file and parent
// directory as needed, and runs pending migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		path:   dbPath,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadTransactions reads the full transaction log in insertion order.
func (r *SQLiteRepository) LoadTransactions() ([]core.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, kind, date, description, amount_cents, category, recurring_id
		FROM transactions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var kind, date string
		if err := rows.Scan(&tx.ID, &kind, &date, &tx.Description,
			&tx.Amount.Cents, &tx.Category, &tx.RecurringID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.Kind(kind)
		if tx.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// SaveTransactions replaces the stored transaction log.
func (r *SQLiteRepository) SaveTransactions(txs []core.Transaction) error {
	return r.replaceAll("transactions", func(dbtx *sql.Tx) error {
		stmt, err := dbtx.Prepare(`
			INSERT INTO transactions (id, kind, date, description, amount_cents, category, recurring_id, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, tx := range txs {
			if _, err := stmt.Exec(tx.ID, string(tx.Kind), tx.Date.String(),
				tx.Description, tx.Amount.Cents, tx.Category, tx.RecurringID, i); err != nil {
				return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
			}
		}
		return nil
	})
}

// LoadTemplates reads the recurring templates in insertion order.
func (r *SQLiteRepository) LoadTemplates() ([]core.RecurringTemplate, error) {
	rows, err := r.db.Query(`
		SELECT id, amount_cents, description, category, frequency, start_date, next_due, active
		FROM recurring_templates ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var tpls []core.RecurringTemplate
	for rows.Next() {
		var tpl core.RecurringTemplate
		var freq, start, due string
		var active int
		if err := rows.Scan(&tpl.ID, &tpl.Amount.Cents, &tpl.Description,
			&tpl.Category, &freq, &start, &due, &active); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl.Frequency = core.Frequency(freq)
		tpl.Active = active != 0
		if start != "" {
			if tpl.StartDate, err = core.ParseDate(start); err != nil {
				return nil, fmt.Errorf("template %s start date: %w", tpl.ID, err)
			}
		}
		if due != "" {
			if tpl.NextDue, err = core.ParseDate(due); err != nil {
				return nil, fmt.Errorf("template %s next due: %w", tpl.ID, err)
			}
		}
		tpls = append(tpls, tpl)
	}
	return tpls, rows.Err()
}

// SaveTemplates replaces the stored templates.
func (r *SQLiteRepository) SaveTemplates(tpls []core.RecurringTemplate) error {
	return r.replaceAll("recurring_templates", func(dbtx *sql.Tx) error {
		stmt, err := dbtx.Prepare(`
			INSERT INTO recurring_templates (id, amount_cents, description, category, frequency, start_date, next_due, active, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, tpl := range tpls {
			active := 0
			if tpl.Active {
				active = 1
			}
			if _, err := stmt.Exec(tpl.ID, tpl.Amount.Cents, tpl.Description,
				tpl.Category, string(tpl.Frequency), dateOrEmpty(tpl.StartDate),
				dateOrEmpty(tpl.NextDue), active, i); err != nil {
				return fmt.Errorf("insert template %s: %w", tpl.ID, err)
			}
		}
		return nil
	})
}

// LoadCategories reads both category sets.
func (r *SQLiteRepository) LoadCategories() (income, expense []string, err error) {
	rows, err := r.db.Query(`SELECT kind, name FROM categories ORDER BY kind, position`)
	if err != nil {
		return nil, nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return nil, nil, fmt.Errorf("scan category: %w", err)
		}
		if core.Kind(kind) == core.KindIncome {
			income = append(income, name)
		} else {
			expense = append(expense, name)
		}
	}
	return income, expense, rows.Err()
}

// SaveCategories replaces both category sets.
func (r *SQLiteRepository) SaveCategories(income, expense []string) error {
	return r.replaceAll("categories", func(dbtx *sql.Tx) error {
		stmt, err := dbtx.Prepare(`INSERT INTO categories (kind, name, position) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, name := range income {
			if _, err := stmt.Exec(string(core.KindIncome), name, i); err != nil {
				return fmt.Errorf("insert income category %q: %w", name, err)
			}
		}
		for i, name := range expense {
			if _, err := stmt.Exec(string(core.KindExpense), name, i); err != nil {
				return fmt.Errorf("insert expense category %q: %w", name, err)
			}
		}
		return nil
	})
}

// Backup writes a consistent copy of the database next to it, named
// with a UTC timestamp, and returns the copy's path.
func (r *SQLiteRepository) Backup() (string, error) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	dest := fmt.Sprintf("%s.%s.bak", r.path, stamp)
	if _, err := r.db.Exec(`VACUUM INTO ?`, dest); err != nil {
		return "", fmt.Errorf("vacuum into backup: %w", err)
	}
	r.logger.Info("backup written",
		log.FieldOperation, log.OpBackup,
		"path", dest,
	)
	return dest, nil
}

// replaceAll clears a table and repopulates it inside one transaction.
func (r *SQLiteRepository) replaceAll(table string, insert func(*sql.Tx) error) error {
	dbtx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.Exec("DELETE FROM " + table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insert(dbtx); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

func dateOrEmpty(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
