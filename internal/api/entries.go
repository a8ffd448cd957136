package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/tripsync/internal/schedule"
)

const streamKeepAlive = 25 * time.Second

// ListEntries handles GET /api/v1/entries. With ?title_id= only that trip's
// entries are returned.
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	all := h.entries.Entries()
	titleID := r.URL.Query().Get("title_id")

	out := make([]schedule.Entry, 0, len(all))
	for _, e := range all {
		if titleID == "" || e.TitleID == titleID {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// AddEntry handles POST /api/v1/entries. The store assigns the id; the
// entry is enriched in the background afterwards.
func (h *Handlers) AddEntry(w http.ResponseWriter, r *http.Request) {
	var e schedule.Entry
	if !decode(w, r, &e) {
		return
	}
	e.ID = ""

	added, err := h.entries.Add(r.Context(), e)
	if err != nil {
		h.writeError(w, r, err, "entry")
		return
	}
	if h.enrich != nil {
		h.enrich.Trigger(added)
	}
	writeJSON(w, http.StatusCreated, added)
}

// UpdateEntry handles PUT /api/v1/entries. An entry without an id is
// matched on location and date, and added when nothing matches.
func (h *Handlers) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var e schedule.Entry
	if !decode(w, r, &e) {
		return
	}

	updated, err := h.entries.Update(r.Context(), e)
	if err != nil {
		h.writeError(w, r, err, "entry")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetEntry handles GET /api/v1/entries/{id}.
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entries.FindByID(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("entry not found"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry handles DELETE /api/v1/entries/{id}.
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.entries.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, "entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectEntry handles PUT /api/v1/selection/entry/{id}.
func (h *Handlers) SelectEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entries.FindByID(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("entry not found"))
		return
	}
	h.entries.Select(e)
	writeJSON(w, http.StatusOK, e)
}

// SelectedEntry handles GET /api/v1/selection/entry.
func (h *Handlers) SelectedEntry(w http.ResponseWriter, _ *http.Request) {
	e, ok := h.entries.Selected()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no entry selected"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// StreamEntries handles GET /api/v1/entries/stream. Every change to the
// list is sent as a server-sent "entries" event carrying the full list.
func (h *Handlers) StreamEntries(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.log.Error("entry stream: flushing unsupported", "err", err)
		return
	}

	updates := h.entries.Watch(r.Context())
	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case list, ok := <-updates:
			if !ok {
				return
			}
			if list == nil {
				list = []schedule.Entry{}
			}
			data, err := json.Marshal(list)
			if err != nil {
				h.log.Error("entry stream: encoding failed", "err", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: entries\ndata: %s\n\n", data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
