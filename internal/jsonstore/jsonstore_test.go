package jsonstore

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/log"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), log.New(log.Config{Level: slog.LevelError}))
	require.NoError(t, err)
	return s
}

func TestEmptyDirectoryLoadsEmpty(t *testing.T) {
	s := testStore(t)

	txs, err := s.LoadTransactions()
	require.NoError(t, err)
	assert.Empty(t, txs)

	tpls, err := s.LoadTemplates()
	require.NoError(t, err)
	assert.Empty(t, tpls)

	income, expense, err := s.LoadCategories()
	require.NoError(t, err)
	assert.Nil(t, income)
	assert.Nil(t, expense)
}

func TestTransactionsRoundTrip(t *testing.T) {
	s := testStore(t)
	txs := []core.Transaction{
		{
			ID:          "t1",
			Kind:        core.KindExpense,
			Date:        core.NewDate(2024, 3, 5),
			Description: "Groceries",
			Amount:      core.Money{Cents: 4500},
			Category:    "Groceries",
		},
		{
			ID:          "t2",
			Kind:        core.KindRecurringExpense,
			Date:        core.NewDate(2024, 3, 15),
			Description: "Rent",
			Amount:      core.Money{Cents: 120000},
			Category:    "Utilities",
			RecurringID: "r1",
		},
	}

	require.NoError(t, s.SaveTransactions(txs))
	got, err := s.LoadTransactions()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[1].ID)
	assert.Equal(t, "r1", got[1].RecurringID)
	assert.True(t, got[0].Date.Equal(core.NewDate(2024, 3, 5).Time))
}

func TestTemplatesRoundTrip(t *testing.T) {
	s := testStore(t)
	tpls := []core.RecurringTemplate{{
		ID:          "r1",
		Amount:      core.Money{Cents: 5000},
		Description: "Gym",
		Category:    "Healthcare",
		Frequency:   core.Monthly,
		StartDate:   core.NewDate(2024, 1, 15),
		NextDue:     core.NewDate(2024, 5, 15),
		Active:      true,
	}}

	require.NoError(t, s.SaveTemplates(tpls))
	got, err := s.LoadTemplates()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.Monthly, got[0].Frequency)
	assert.True(t, got[0].NextDue.Equal(core.NewDate(2024, 5, 15).Time))
}

func TestCategoriesRoundTrip(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveCategories([]string{"Salary"}, []string{"Groceries", "Transport"}))

	income, expense, err := s.LoadCategories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Salary"}, income)
	assert.Equal(t, []string{"Groceries", "Transport"}, expense)
}

func TestSaveOverwrites(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveTransactions([]core.Transaction{{ID: "t1"}, {ID: "t2"}}))
	require.NoError(t, s.SaveTransactions([]core.Transaction{{ID: "t3"}}))

	got, err := s.LoadTransactions()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t3", got[0].ID)
}

func TestCorruptFileErrors(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, transactionsFile), []byte("{not json"), 0o644))

	_, err := s.LoadTransactions()
	assert.Error(t, err)
}

func TestBackup(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveTransactions([]core.Transaction{{ID: "t1"}}))
	require.NoError(t, s.SaveTemplates(nil))

	dest, err := s.Backup()
	require.NoError(t, err)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	// categories.json was never written, so only two files get copied.
	assert.Len(t, entries, 2)

	data, err := os.ReadFile(filepath.Join(dest, transactionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "t1")
}
