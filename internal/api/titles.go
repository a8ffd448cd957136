package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/tripsync/internal/calendar"
	"github.com/neexbeast/tripsync/internal/schedule"
)

// CreateTitle handles POST /api/v1/titles.
func (h *Handlers) CreateTitle(w http.ResponseWriter, r *http.Request) {
	var req schedule.CreationRequest
	if !decode(w, r, &req) {
		return
	}

	title, err := h.titles.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, "title")
		return
	}
	writeJSON(w, http.StatusCreated, title)
}

// ListTitles handles GET /api/v1/titles.
func (h *Handlers) ListTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := h.titles.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, "titles")
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

// GetTitle handles GET /api/v1/titles/{id}; the trip comes with its entries.
func (h *Handlers) GetTitle(w http.ResponseWriter, r *http.Request) {
	title, err := h.titles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "title")
		return
	}
	writeJSON(w, http.StatusOK, title)
}

// DeleteTitle handles DELETE /api/v1/titles/{id}. A selected trip that is
// deleted stops being selected.
func (h *Handlers) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.titles.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err, "title")
		return
	}
	if sel, ok := h.selection.Get(); ok && sel.ID == id {
		h.selection.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportTitle handles GET /api/v1/titles/{id}/calendar.ics.
func (h *Handlers) ExportTitle(w http.ResponseWriter, r *http.Request) {
	title, err := h.titles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "title")
		return
	}

	doc, err := calendar.Export(title, h.now())
	if err != nil {
		h.writeError(w, r, err, "title")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", title.ID+".ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// SelectTitle handles PUT /api/v1/selection/title/{id}. The trip is loaded
// with its entries and shared as an immutable snapshot.
func (h *Handlers) SelectTitle(w http.ResponseWriter, r *http.Request) {
	title, err := h.titles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "title")
		return
	}
	h.selection.Set(title)
	writeJSON(w, http.StatusOK, title)
}

// SelectedTitle handles GET /api/v1/selection/title.
func (h *Handlers) SelectedTitle(w http.ResponseWriter, _ *http.Request) {
	title, ok := h.selection.Get()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no title selected"))
		return
	}
	writeJSON(w, http.StatusOK, title)
}
