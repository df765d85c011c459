// Package workerserver is the HTTP surface of a worker node. It exposes
// the retrieval and generation stages to the gateway, serves the health
// endpoint the membership prober heartbeats, and announces the node to the
// gateway on startup. A node whose collaborators failed their startup
// probes runs degraded: it simply offers fewer roles.
package workerserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/policybot/internal/configuration"
	"github.com/ahrav/policybot/internal/domain"
	"github.com/ahrav/policybot/internal/generation"
	"github.com/ahrav/policybot/internal/retrieval"
)

// Server hosts the stage endpoints for one worker node. A nil stage means
// the node does not offer that role.
type Server struct {
	cfg        configuration.WorkerConfig
	retrieval  *retrieval.Service
	generation *generation.Service
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// New creates a worker server. A nil gatherer uses the default Prometheus
// registry.
func New(cfg configuration.WorkerConfig, ret *retrieval.Service, gen *generation.Service, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		retrieval:  ret,
		generation: gen,
		gatherer:   gatherer,
		logger:     logger.With("component", "worker"),
	}
}

// Roles reports which stages this node actually offers, derived from the
// collaborators that survived startup.
func (s *Server) Roles() []domain.Role {
	var roles []domain.Role
	if s.retrieval != nil {
		roles = append(roles, domain.RoleRetrieval)
	}
	if s.generation != nil {
		roles = append(roles, domain.RoleGeneration)
	}
	return roles
}

// Handler returns the route table, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", methodOnly(http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("/v1/search", methodOnly(http.MethodPost, s.handleSearch))
	mux.HandleFunc("/v1/generate", methodOnly(http.MethodPost, s.handleGenerate))
	mux.Handle("/metrics", methodOnly(http.MethodGet, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP))
	return mux
}

// methodOnly restricts a route to one HTTP method, matching the
// method-pattern behavior of the Go 1.22+ ServeMux (GET also accepts
// HEAD; other methods get 405 with an Allow header).
func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("worker listening", "addr", s.cfg.Addr, "roles", s.Roles())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.retrieval == nil {
		http.Error(w, "retrieval role not offered", http.StatusServiceUnavailable)
		return
	}

	var req retrieval.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed search request", http.StatusBadRequest)
		return
	}

	q := domain.Query{ID: req.QueryID, Text: req.Query, SubmittedAt: time.Now()}

	// Stage failures already degrade to an empty slice; the gateway gets
	// a successful response either way.
	matches, err := s.retrieval.Search(r.Context(), q)
	if err != nil {
		s.logger.Warn("search degraded to empty matches",
			"query_id", req.QueryID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(retrieval.SearchResponse{Matches: matches}); err != nil {
		s.logger.Error("encoding search response failed", "error", err)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.generation == nil {
		http.Error(w, "generation role not offered", http.StatusServiceUnavailable)
		return
	}

	var req generation.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed generate request", http.StatusBadRequest)
		return
	}

	q := domain.Query{ID: req.QueryID, Text: req.Query, SubmittedAt: time.Now()}
	result := s.generation.Generate(r.Context(), q, req.Matches)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(generation.GenerateResponse{
		Text:      result.Text,
		ModelUsed: result.ModelUsed,
	}); err != nil {
		s.logger.Error("encoding generate response failed", "error", err)
	}
}
