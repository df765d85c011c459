package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/policybot/internal/domain"
)

// Announcer receives worker registrations. The membership prober
// implements it.
type Announcer interface {
	Announce(addr string, roles []domain.Role)
}

// RegisterRequest is the wire request workers send on startup.
type RegisterRequest struct {
	Addr  string   `json:"addr"`
	Roles []string `json:"roles"`
}

// Server is the gateway's HTTP surface: worker registration, health, and
// metrics.
type Server struct {
	addr      string
	announcer Announcer
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// NewServer creates the gateway HTTP server. A nil gatherer uses the
// default Prometheus registry.
func NewServer(addr string, announcer Announcer, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:      addr,
		announcer: announcer,
		gatherer:  gatherer,
		logger:    logger.With("component", "gateway-http"),
	}
}

// Handler returns the route table, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", methodOnly(http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("/register", methodOnly(http.MethodPost, s.handleRegister))
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

// Run serves until ctx is cancelled, then drains with a short grace
// period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway http listening", "addr", s.addr)
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

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed registration", http.StatusBadRequest)
		return
	}
	if req.Addr == "" || len(req.Roles) == 0 {
		http.Error(w, "addr and roles are required", http.StatusBadRequest)
		return
	}

	roles := make([]domain.Role, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, err := domain.ParseRole(raw)
		if err != nil {
			http.Error(w, "unknown role: "+raw, http.StatusBadRequest)
			return
		}
		roles = append(roles, role)
	}

	s.announcer.Announce(req.Addr, roles)
	w.WriteHeader(http.StatusNoContent)
}
