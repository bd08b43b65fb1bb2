package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cantido/hematite/internal/api"
	"github.com/cantido/hematite/internal/auth"
	"github.com/cantido/hematite/internal/metrics"
)

// NewRouter wires the route table onto facade, authenticating every
// route except /health and /metrics.
func NewRouter(facade *api.Facade, verifier *auth.Verifier, m *metrics.Metrics, log *zap.Logger) http.Handler {
	s := &server{facade: facade, log: log, metrics: m}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(m))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusUnauthorized, document{Errors: []errorObject{{
				Status: "401",
				Title:  "unauthorized",
				Source: &errorSource{Header: "Authorization"},
			}}})
		}))

		r.Get("/streams", s.handleListStreams)
		r.Get("/streams/{id}", s.handleGetStream)
		r.Delete("/streams/{id}", s.handleDeleteStream)
		r.Get("/streams/{id}/events", s.handleGetEvents)
		r.Get("/streams/{id}/events/{revision}", s.handleGetEvent)
		r.Post("/streams/{id}/events", s.handleAppendEvents)
	})

	return r
}

// requestMetrics records one counter increment per completed request,
// keyed by route pattern, method, and status.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.RequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		})
	}
}
