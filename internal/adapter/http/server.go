package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/near-miss-analytics/internal/dashboard"
	"github.com/couchcryptid/near-miss-analytics/internal/domain"
	"github.com/couchcryptid/near-miss-analytics/internal/store"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Views answers the dashboard queries served under /api.
type Views interface {
	Snapshot() store.Snapshot
	Dashboard() dashboard.Dashboard
	Aggregate(field string, limit int) ([]domain.Bucket, error)
	Severity() []domain.Bucket
	Monthly() []domain.MonthlyPoint
	Yearly() []domain.YearlyPoint
}

// ReloadFunc reloads the dataset and returns the snapshot it published.
type ReloadFunc func(ctx context.Context) (store.Snapshot, error)

// Server exposes the dashboard API plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	views      Views
	reload     ReloadFunc
	logger     *slog.Logger
}

// NewServer creates an HTTP server. reload may be nil, in which case
// POST /api/reload answers 501.
func NewServer(addr string, ready sharedobs.ReadinessChecker, views Views, reload ReloadFunc, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		views:  views,
		reload: reload,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/severity", s.handleSeverity)
	mux.HandleFunc("GET /api/trend/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/trend/yearly", s.handleYearly)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	s.httpServer.Handler = s.withRequestID(mux)
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.views.Dashboard())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.views.Snapshot())
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field := q.Get("field")
	if field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	buckets, err := s.views.Aggregate(field, limit)
	if errors.Is(err, dashboard.ErrUnknownField) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("aggregate failed", "error", err, "field", field)
		writeError(w, http.StatusInternalServerError, "aggregate failed")
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleSeverity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.views.Severity())
}

func (s *Server) handleMonthly(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.views.Monthly())
}

func (s *Server) handleYearly(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.views.Yearly())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		writeError(w, http.StatusNotImplemented, "reload is not configured")
		return
	}
	snap, err := s.reload(r.Context())
	if err != nil {
		s.logger.Error("reload failed", "error", err, "request_id", requestID(r))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type requestIDKey struct{}

// withRequestID echoes or assigns X-Request-ID and logs each request.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
