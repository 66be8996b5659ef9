package http

import (
	"net/http"

	"tally/internal/core"
)

type categoryRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		writeJSON(w, http.StatusOK, map[string][]string{
			"income":  s.svc.Categories(core.KindIncome),
			"expense": s.svc.Categories(core.KindExpense),
		})
		return
	}
	if !kind.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "invalid kind")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Categories(kind))
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind := core.Kind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "invalid kind")
		return
	}
	if err := s.svc.AddCategory(r.Context(), kind, sanitizeInput(req.Name)); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind := core.Kind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "invalid kind")
		return
	}
	if err := s.svc.RemoveCategory(r.Context(), kind, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
