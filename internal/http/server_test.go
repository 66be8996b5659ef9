package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/jsonstore"
	"tally/internal/log"
	"tally/internal/services"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(log.Config{Level: slog.LevelError})
	store, err := jsonstore.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("jsonstore: %v", err)
	}
	svc := services.New(store, nil, logger)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return NewServer(":0", svc, logger)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateTransactionValidationAndSuccess(t *testing.T) {
	srv := testServer(t)

	// Invalid amount
	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"kind": "expense", "date": "2024-03-01", "description": "x", "amount": "abc", "category": "Groceries",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// A new category is registered on first use, not rejected.
	rr = doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"kind": "expense", "date": "2024-03-01", "description": "x", "amount": "1.23", "category": "Hobbies",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for new category, got %d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/categories?kind=expense", nil)
	if !strings.Contains(rr.Body.String(), "Hobbies") {
		t.Fatalf("expected category registered, got %s", rr.Body.String())
	}

	// Malformed date
	rr = doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"kind": "expense", "date": "01/03/2024", "description": "x", "amount": "1.23", "category": "Groceries",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad date, got %d", rr.Code)
	}

	// Success
	rr = doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"kind": "expense", "date": "2024-03-01", "description": "coffee", "amount": "3.50", "category": "Restaurants",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var tx core.Transaction
	decodeInto(t, rr, &tx)
	if tx.ID == "" || tx.Amount.Cents != 350 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := testServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"kind": "income", "date": "2024-03-01", "description": "salary", "amount": "2500.00", "category": "Salary",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	var tx core.Transaction
	decodeInto(t, rr, &tx)

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions/"+tx.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions?from=2024-03-01&to=2024-03-31", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var listed []core.Transaction
	decodeInto(t, rr, &listed)
	if len(listed) != 1 {
		t.Fatalf("expected 1 transaction in range, got %d", len(listed))
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+tx.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions/"+tx.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestBalanceAndSummaryReflectMutations(t *testing.T) {
	srv := testServer(t)

	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"kind": "income", "date": "2024-03-01", "description": "salary", "amount": "1000.00", "category": "Salary",
	})

	// Prime the summary cache, then mutate and check it was purged.
	rr := doJSON(t, srv, http.MethodGet, "/api/summary?year=2024&month=3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	var before core.MonthSummary
	decodeInto(t, rr, &before)
	if before.Income.Cents != 100000 {
		t.Fatalf("expected income 100000, got %d", before.Income.Cents)
	}

	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]string{
		"kind": "expense", "date": "2024-03-02", "description": "food", "amount": "40.00", "category": "Groceries",
	})

	rr = doJSON(t, srv, http.MethodGet, "/api/summary?year=2024&month=3", nil)
	var after core.MonthSummary
	decodeInto(t, rr, &after)
	if after.Expenses.Cents != 4000 {
		t.Fatalf("stale summary after mutation: %+v", after)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/balance", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("balance status=%d", rr.Code)
	}
	var bal struct {
		Balance core.Money `json:"balance"`
		Display string     `json:"display"`
	}
	decodeInto(t, rr, &bal)
	if bal.Balance.Cents != 96000 {
		t.Fatalf("expected balance 96000, got %d", bal.Balance.Cents)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	srv := testServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/categories?kind=expense", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var names []string
	decodeInto(t, rr, &names)
	if len(names) == 0 {
		t.Fatal("expected default expense categories")
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"kind": "expense", "name": "Pets"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status=%d: %s", rr.Code, rr.Body.String())
	}

	// Duplicate add fails.
	rr = doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"kind": "expense", "name": "pets"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/categories", map[string]string{"kind": "expense", "name": "Pets"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/categories", map[string]string{"kind": "expense", "name": "Pets"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 removing missing category, got %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"kind": "bogus", "name": "x"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad kind, got %d", rr.Code)
	}
}

func TestRecurringTemplateLifecycle(t *testing.T) {
	srv := testServer(t)
	start := core.Today(time.Now()).Format("2006-01-02")

	rr := doJSON(t, srv, http.MethodPost, "/api/recurring", map[string]string{
		"description": "rent", "amount": "800.00", "category": "Utilities",
		"frequency": "monthly", "start_date": start,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d: %s", rr.Code, rr.Body.String())
	}
	var tpl core.RecurringTemplate
	decodeInto(t, rr, &tpl)
	if !tpl.Active {
		t.Fatal("new template should be active")
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/recurring", nil)
	var tpls []core.RecurringTemplate
	decodeInto(t, rr, &tpls)
	if len(tpls) != 1 {
		t.Fatalf("expected 1 template, got %d", len(tpls))
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/recurring/"+tpl.ID, map[string]string{
		"description": "rent", "amount": "850.00", "category": "Utilities",
		"frequency": "monthly", "start_date": start,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d: %s", rr.Code, rr.Body.String())
	}
	var updated core.RecurringTemplate
	decodeInto(t, rr, &updated)
	if updated.Amount.Cents != 85000 {
		t.Fatalf("expected amount 85000 after update, got %d", updated.Amount.Cents)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/recurring/"+tpl.ID+"/active", map[string]bool{"active": false})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/recurring/"+tpl.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/recurring/"+tpl.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestCatchUpGeneratesOccurrences(t *testing.T) {
	srv := testServer(t)
	start := core.Today(time.Now()).AddDays(-2).Format("2006-01-02")

	rr := doJSON(t, srv, http.MethodPost, "/api/recurring", map[string]string{
		"description": "coffee sub", "amount": "2.00", "category": "Restaurants",
		"frequency": "daily", "start_date": start,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/recurring/pending", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pending status=%d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "coffee sub") {
		t.Fatalf("expected pending occurrences, got %s", body)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/recurring/catchup", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("catchup status=%d: %s", rr.Code, rr.Body.String())
	}
	var result struct {
		Generated int `json:"generated"`
	}
	decodeInto(t, rr, &result)
	if result.Generated != 3 {
		t.Fatalf("expected 3 generated, got %d", result.Generated)
	}

	// Second run is a no-op.
	rr = doJSON(t, srv, http.MethodPost, "/api/recurring/catchup", nil)
	decodeInto(t, rr, &result)
	if result.Generated != 0 {
		t.Fatalf("expected idempotent catch-up, got %d", result.Generated)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions?limit=10", nil)
	var txs []core.Transaction
	decodeInto(t, rr, &txs)
	if len(txs) != 3 {
		t.Fatalf("expected 3 generated transactions, got %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Kind != core.KindRecurringExpense {
			t.Fatalf("expected recurring_expense kind, got %s", tx.Kind)
		}
	}
}

func TestUpcomingValidation(t *testing.T) {
	srv := testServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/api/recurring/upcoming?days=0", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for days=0, got %d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/recurring/upcoming?days=30", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("upcoming status=%d", rr.Code)
	}
}

func TestBackupEndpoint(t *testing.T) {
	srv := testServer(t)
	rr := doJSON(t, srv, http.MethodPost, "/api/backup", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("backup status=%d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decodeInto(t, rr, &resp)
	if resp["location"] == "" {
		t.Fatal("expected backup location")
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := testServer(t)
	var last int
	for i := 0; i < writeRequestsPerMinute+5; i++ {
		rr := doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{
			"kind": "expense", "name": fmt.Sprintf("cat-%d", i),
		})
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	srv := testServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"kind":"expense","bogus":true}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}
