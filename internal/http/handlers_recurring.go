package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
)

type templateRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
}

func (s *Server) templateInput(w http.ResponseWriter, r *http.Request) (services.TemplateInput, bool) {
	var req templateRequest
	if !decodeBody(w, r, &req) {
		return services.TemplateInput{}, false
	}

	freq, ok := core.ParseFrequency(req.Frequency)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid frequency")
		return services.TemplateInput{}, false
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid start date: expected YYYY-MM-DD")
		return services.TemplateInput{}, false
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return services.TemplateInput{}, false
	}

	return services.TemplateInput{
		Description: sanitizeInput(req.Description),
		AmountCents: cents,
		Category:    sanitizeInput(req.Category),
		Frequency:   freq,
		StartDate:   start,
	}, true
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.templateInput(w, r)
	if !ok {
		return
	}
	tpl, err := s.svc.CreateTemplate(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListTemplates())
}

func (s *Server) handleRecurringSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.RecurringSummary())
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days := parseIntQuery(r, "days", 7)
	if days < 1 || days > 365 {
		writeError(w, http.StatusUnprocessableEntity, "days must be between 1 and 365")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.UpcomingTemplates(days))
}

func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.PendingOccurrences())
}

func (s *Server) handleCatchUp(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).InfoContext(r.Context(), "manual catch-up requested")
	result, err := s.svc.CatchUp(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Generated > 0 {
		s.summaryCache.Purge()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.svc.GetTemplate(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.templateInput(w, r)
	if !ok {
		return
	}
	tpl, err := s.svc.UpdateTemplate(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetTemplateActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.SetTemplateActive(r.Context(), r.PathValue("id"), req.Active); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProcessTemplate(w http.ResponseWriter, r *http.Request) {
	generated, err := s.svc.ProcessTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if generated > 0 {
		s.summaryCache.Purge()
	}
	writeJSON(w, http.StatusOK, map[string]int{"generated": generated})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).InfoContext(r.Context(), "backup requested")
	location, err := s.svc.Backup(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"location": location})
}
