package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// RouterOptions carries the settings NewRouter needs besides the handlers.
type RouterOptions struct {
	Token       string
	CORSOrigins []string
	// Checks are pinged by the health endpoint, keyed by the name reported.
	Checks map[string]Pinger
	// RequestsPerMinute is the per-IP rate limit. Zero means 60.
	RequestsPerMinute int
}

// NewRouter builds and returns the Chi router with all routes configured.
// The health endpoint is unauthenticated; everything else requires bearer auth.
func NewRouter(handlers *Handlers, opts RouterOptions, log *slog.Logger) *chi.Mux {
	limit := opts.RequestsPerMinute
	if limit == 0 {
		limit = 60
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(CORS(opts.CORSOrigins))
	r.Use(httprate.LimitByIP(limit, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(opts.Checks, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(opts.Token))

		r.Get("/api/v1/transportation", handlers.ListTransportation)
		r.Get("/api/v1/recommendations", handlers.Recommend)

		r.Route("/api/v1/entries", func(r chi.Router) {
			r.Get("/", handlers.ListEntries)
			r.Post("/", handlers.AddEntry)
			r.Put("/", handlers.UpdateEntry)
			r.Get("/stream", handlers.StreamEntries)
			r.Get("/{id}", handlers.GetEntry)
			r.Delete("/{id}", handlers.DeleteEntry)
		})

		r.Route("/api/v1/titles", func(r chi.Router) {
			r.Get("/", handlers.ListTitles)
			r.Post("/", handlers.CreateTitle)
			r.Get("/{id}", handlers.GetTitle)
			r.Delete("/{id}", handlers.DeleteTitle)
			r.Get("/{id}/calendar.ics", handlers.ExportTitle)
		})

		r.Route("/api/v1/selection", func(r chi.Router) {
			r.Get("/entry", handlers.SelectedEntry)
			r.Put("/entry/{id}", handlers.SelectEntry)
			r.Get("/title", handlers.SelectedTitle)
			r.Put("/title/{id}", handlers.SelectTitle)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
