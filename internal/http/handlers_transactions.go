package http

import (
	"net/http"
	"strconv"

	"tally/internal/core"
	"tally/internal/services"
)

type createTransactionRequest struct {
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date: expected YYYY-MM-DD")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	tx, err := s.svc.RecordTransaction(r.Context(), services.TransactionInput{
		Kind:        core.Kind(req.Kind),
		Date:        date,
		Description: sanitizeInput(req.Description),
		AmountCents: cents,
		Category:    sanitizeInput(req.Category),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.summaryCache.Purge()
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	if fromStr != "" || toStr != "" {
		from, err := core.ParseDate(fromStr)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid from date")
			return
		}
		to, err := core.ParseDate(toStr)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid to date")
			return
		}
		writeJSON(w, http.StatusOK, s.svc.TransactionsInRange(from, to))
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	writeJSON(w, http.StatusOK, s.svc.RecentTransactions(limit))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.GetTransaction(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	s.summaryCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, _ *http.Request) {
	balance := s.svc.Balance()
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": balance,
		"display": balance.String(),
	})
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	key := summaryKey(year, month)

	if summary, found := s.summaryCache.Get(key); found {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summary := s.svc.MonthSummary(year, month)
	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func summaryKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}
