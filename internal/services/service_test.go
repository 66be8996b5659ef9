package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"tally/internal/core"
	"tally/internal/log"
)

type fakePersister struct {
	txs       []core.Transaction
	tpls      []core.RecurringTemplate
	income    []string
	expense   []string
	saveCount int
	failSaves bool
}

func (f *fakePersister) LoadTransactions() ([]core.Transaction, error) { return f.txs, nil }
func (f *fakePersister) LoadTemplates() ([]core.RecurringTemplate, error) {
	return f.tpls, nil
}
func (f *fakePersister) LoadCategories() ([]string, []string, error) {
	return f.income, f.expense, nil
}

func (f *fakePersister) SaveTransactions(txs []core.Transaction) error {
	f.saveCount++
	if f.failSaves {
		return errors.New("disk full")
	}
	f.txs = txs
	return nil
}

func (f *fakePersister) SaveTemplates(tpls []core.RecurringTemplate) error {
	f.saveCount++
	if f.failSaves {
		return errors.New("disk full")
	}
	f.tpls = tpls
	return nil
}

func (f *fakePersister) SaveCategories(income, expense []string) error {
	f.saveCount++
	f.income, f.expense = income, expense
	return nil
}

func (f *fakePersister) Backup() (string, error) { return "/tmp/backup", nil }
func (f *fakePersister) Close() error            { return nil }

func testService(t *testing.T, p *fakePersister) *Service {
	t.Helper()
	s := New(p, nil, log.New(log.Config{Level: slog.LevelError}))
	s.now = func() core.Date { return core.NewDate(2024, 4, 20) }
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestRecordTransaction(t *testing.T) {
	p := &fakePersister{}
	s := testService(t, p)

	tx, err := s.RecordTransaction(context.Background(), TransactionInput{
		Kind:        core.KindExpense,
		Date:        core.NewDate(2024, 4, 10),
		Description: "Weekly shop",
		AmountCents: 5400,
		Category:    "Groceries",
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if tx.ID == "" {
		t.Error("expected generated id")
	}

	// Write-through: the persister saw the new entry.
	if len(p.txs) != 1 || p.txs[0].ID != tx.ID {
		t.Errorf("persisted transactions = %+v", p.txs)
	}
}

func TestRecordTransactionRegistersNewCategory(t *testing.T) {
	p := &fakePersister{}
	s := testService(t, p)

	_, err := s.RecordTransaction(context.Background(), TransactionInput{
		Kind:        core.KindExpense,
		Date:        core.NewDate(2024, 4, 10),
		Description: "Aquarium filter",
		AmountCents: 100,
		Category:    "Pets",
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	found := false
	for _, c := range s.Categories(core.KindExpense) {
		if c == "Pets" {
			found = true
		}
	}
	if !found {
		t.Error("expected the category to be registered on first use")
	}
	// The expanded category set was flushed.
	if len(p.expense) == 0 {
		t.Error("expected categories persisted")
	}
}

func TestRecordTransactionRejectsInvalidInput(t *testing.T) {
	s := testService(t, &fakePersister{})

	_, err := s.RecordTransaction(context.Background(), TransactionInput{
		Kind:        core.KindExpense,
		Date:        core.NewDate(2024, 4, 10),
		Description: "Zero",
		AmountCents: 0,
		Category:    "Groceries",
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestRemoveTransaction(t *testing.T) {
	p := &fakePersister{}
	s := testService(t, p)

	tx, err := s.RecordTransaction(context.Background(), TransactionInput{
		Kind:        core.KindIncome,
		Date:        core.NewDate(2024, 4, 1),
		Description: "Paycheck",
		AmountCents: 250000,
		Category:    "Salary",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveTransaction(context.Background(), tx.ID); err != nil {
		t.Fatalf("RemoveTransaction: %v", err)
	}
	if len(p.txs) != 0 {
		t.Error("persisted transaction set should be empty after removal")
	}
	if err := s.RemoveTransaction(context.Background(), tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second removal = %v, want ErrNotFound", err)
	}
}

func TestPersistenceFailureDoesNotRollBack(t *testing.T) {
	p := &fakePersister{failSaves: true}
	s := testService(t, p)

	tx, err := s.RecordTransaction(context.Background(), TransactionInput{
		Kind:        core.KindExpense,
		Date:        core.NewDate(2024, 4, 10),
		Description: "Bus ticket",
		AmountCents: 250,
		Category:    "Transport",
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if _, err := s.GetTransaction(tx.ID); err != nil {
		t.Error("transaction should remain in memory despite flush failure")
	}
}

func TestCreateTemplateAndCatchUp(t *testing.T) {
	p := &fakePersister{}
	s := testService(t, p)

	tpl, err := s.CreateTemplate(context.Background(), TemplateInput{
		Description: "Gym membership",
		AmountCents: 5000,
		Category:    "Healthcare",
		Frequency:   core.Monthly,
		StartDate:   core.NewDate(2024, 1, 15),
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if !tpl.NextDue.Equal(tpl.StartDate.Time) {
		t.Error("new template cursor should start at the start date")
	}
	// Creation alone generates nothing.
	if len(s.RecentTransactions(0)) != 0 {
		t.Fatal("no transactions expected before catch-up")
	}

	result, err := s.CatchUp(context.Background())
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if result.Generated != 4 {
		t.Fatalf("generated %d occurrences, want 4 through 2024-04-20", result.Generated)
	}

	got, err := s.GetTemplate(tpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.NextDue.Equal(core.NewDate(2024, 5, 15).Time) {
		t.Errorf("cursor after catch-up = %s, want 2024-05-15", got.NextDue)
	}

	// Both the ledger and the cursor were flushed.
	if len(p.txs) != 4 {
		t.Errorf("persisted %d transactions", len(p.txs))
	}
	if len(p.tpls) != 1 || !p.tpls[0].NextDue.Equal(got.NextDue.Time) {
		t.Errorf("persisted templates = %+v", p.tpls)
	}

	// Reload from the persister and verify nothing regenerates.
	s2 := testService(t, p)
	result, err = s2.CatchUp(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Generated != 0 {
		t.Errorf("restart catch-up generated %d, want 0", result.Generated)
	}
}

func TestCreateTemplateClampsBadFrequency(t *testing.T) {
	s := testService(t, &fakePersister{})

	tpl, err := s.CreateTemplate(context.Background(), TemplateInput{
		Description: "Mystery cadence",
		AmountCents: 900,
		Category:    "Utilities",
		Frequency:   core.Frequency("fortnightly-ish"),
		StartDate:   core.NewDate(2024, 4, 1),
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if tpl.Frequency != core.Monthly {
		t.Errorf("frequency = %s, want monthly fallback", tpl.Frequency)
	}
}

func TestPauseAndResumeTemplate(t *testing.T) {
	s := testService(t, &fakePersister{})

	tpl, err := s.CreateTemplate(context.Background(), TemplateInput{
		Description: "Streaming",
		AmountCents: 1500,
		Category:    "Entertainment",
		Frequency:   core.Monthly,
		StartDate:   core.NewDate(2024, 1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetTemplateActive(context.Background(), tpl.ID, false); err != nil {
		t.Fatal(err)
	}

	result, err := s.CatchUp(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Generated != 0 {
		t.Fatalf("paused template generated %d occurrences", result.Generated)
	}

	// Resuming picks up everything missed since the start date.
	if err := s.SetTemplateActive(context.Background(), tpl.ID, true); err != nil {
		t.Fatal(err)
	}
	result, err = s.CatchUp(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Generated != 4 {
		t.Errorf("resume generated %d, want 4 (jan through apr)", result.Generated)
	}
}

func TestProcessTemplate(t *testing.T) {
	s := testService(t, &fakePersister{})

	tpl, err := s.CreateTemplate(context.Background(), TemplateInput{
		Description: "Rent",
		AmountCents: 120000,
		Category:    "Utilities",
		Frequency:   core.Monthly,
		StartDate:   core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.ProcessTemplate(context.Background(), tpl.ID)
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	if n != 2 {
		t.Errorf("generated %d, want 2 (march and april)", n)
	}
	if _, err := s.ProcessTemplate(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing template = %v", err)
	}
}

func TestCategoryManagement(t *testing.T) {
	p := &fakePersister{}
	s := testService(t, p)

	if err := s.AddCategory(context.Background(), core.KindExpense, "Pets"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if len(p.expense) == 0 {
		t.Error("categories should be flushed after add")
	}

	if _, err := s.RecordTransaction(context.Background(), TransactionInput{
		Kind:        core.KindExpense,
		Date:        core.NewDate(2024, 4, 1),
		Description: "Dog food",
		AmountCents: 2300,
		Category:    "Pets",
	}); err != nil {
		t.Errorf("transaction in new category: %v", err)
	}

	if err := s.RemoveCategory(context.Background(), core.KindExpense, "Nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("RemoveCategory missing = %v", err)
	}
}

func TestLoadRestoresCustomCategories(t *testing.T) {
	p := &fakePersister{income: []string{"Royalties"}, expense: []string{"Boats"}}
	s := testService(t, p)

	if got := s.Categories(core.KindIncome); len(got) != 1 || got[0] != "Royalties" {
		t.Errorf("income categories = %v", got)
	}
}

func TestSummaries(t *testing.T) {
	s := testService(t, &fakePersister{})

	mustRecord := func(in TransactionInput) {
		t.Helper()
		if _, err := s.RecordTransaction(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}
	mustRecord(TransactionInput{Kind: core.KindIncome, Date: core.NewDate(2024, 4, 1), Description: "Pay", AmountCents: 300000, Category: "Salary"})
	mustRecord(TransactionInput{Kind: core.KindExpense, Date: core.NewDate(2024, 4, 3), Description: "Shop", AmountCents: 7000, Category: "Groceries"})

	if got := s.Balance(); got.Cents != 293000 {
		t.Errorf("Balance = %d", got.Cents)
	}
	sum := s.MonthSummary(2024, 4)
	if sum.Net.Cents != 293000 {
		t.Errorf("Net = %d", sum.Net.Cents)
	}
}
