package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/neexbeast/tripsync/internal/schedule"
)

const maxBodyBytes = 1 << 20

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	entries     EntrySync
	titles      TitleStore
	selection   TitleSelection
	recommender PlaceRecommender
	enrich      EntryEnricher
	log         *slog.Logger
	now         func() time.Time
}

// NewHandlers constructs Handlers. enrich may be nil, in which case added
// entries are stored as given.
func NewHandlers(entries EntrySync, titles TitleStore, selection TitleSelection, recommender PlaceRecommender, enrich EntryEnricher, log *slog.Logger) *Handlers {
	return &Handlers{
		entries:     entries,
		titles:      titles,
		selection:   selection,
		recommender: recommender,
		enrich:      enrich,
		log:         log,
		now:         time.Now,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps domain errors to status codes: validation failures to
// 422, missing resources to 404 and everything else to a logged 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(validationMessage(err)))
	case errors.Is(err, schedule.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(what+" not found"))
	default:
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
	}
}

// validationMessage strips everything up to and including the sentinel's
// text, leaving the human-readable reason.
func validationMessage(err error) string {
	msg := err.Error()
	marker := schedule.ErrValidation.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}

// decode reads a JSON request body into dst, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("malformed request body: %v", err)))
		return false
	}
	return true
}

type transportationOption struct {
	Name  schedule.Transportation `json:"name"`
	Label string                  `json:"label"`
}

// ListTransportation handles GET /api/v1/transportation.
func (h *Handlers) ListTransportation(w http.ResponseWriter, _ *http.Request) {
	modes := schedule.Transportations()
	out := make([]transportationOption, 0, len(modes))
	for _, m := range modes {
		out = append(out, transportationOption{Name: m, Label: m.Label()})
	}
	writeJSON(w, http.StatusOK, out)
}

// Recommend handles GET /api/v1/recommendations?region=..&keyword=..
// keyword may repeat or hold a comma-separated list.
func (h *Handlers) Recommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region := strings.TrimSpace(q.Get("region"))
	if region == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("region is required"))
		return
	}

	var keywords []string
	for _, raw := range q["keyword"] {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	places, err := h.recommender.Search(r.Context(), region, keywords)
	if err != nil {
		h.writeError(w, r, err, "recommendations")
		return
	}
	writeJSON(w, http.StatusOK, places)
}

// HealthHandlerFunc returns an http.HandlerFunc that pings every named
// dependency; 200 if all answer, 503 otherwise.
func HealthHandlerFunc(checks map[string]Pinger, log *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		for _, name := range names {
			body[name] = "ok"
			if err := checks[name].Ping(ctx); err != nil {
				log.Error("health check: ping failed", "dependency", name, "err", err)
				body[name] = "error"
				status = http.StatusServiceUnavailable
			}
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}

		writeJSON(w, status, body)
	}
}
