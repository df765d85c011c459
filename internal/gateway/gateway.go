// Package gateway is the caller-facing entry point: it validates submitted
// question text, spins up a per-query coordinator, and hands the caller a
// channel that yields exactly one answer. It also owns the bounded worker
// pool shared by all coordinators and the HTTP surface workers announce
// themselves on.
package gateway

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/policybot/internal/configuration"
	"github.com/ahrav/policybot/internal/coordinator"
	"github.com/ahrav/policybot/internal/domain"
)

// Gateway accepts queries and delivers answers, one channel per query.
type Gateway struct {
	cfg     configuration.GatewayConfig
	stages  coordinator.Stages
	pool    *WorkerPool
	clock   clockwork.Clock
	metrics *Metrics
	logger  *slog.Logger
}

// New creates a gateway. A nil clock gets the real one; a nil registerer
// uses the default Prometheus registry.
func New(cfg configuration.GatewayConfig, stages coordinator.Stages, clock clockwork.Clock, reg prometheus.Registerer, logger *slog.Logger) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:     cfg,
		stages:  stages,
		pool:    NewWorkerPool(int64(cfg.PoolSize), logger),
		clock:   clock,
		metrics: NewMetrics(reg),
		logger:  logger.With("component", "gateway"),
	}
}

// Submit starts a query. The returned channel yields exactly one Answer;
// invalid question text fails fast with no coordinator started.
func (g *Gateway) Submit(ctx context.Context, text string) (<-chan domain.Answer, error) {
	q, err := domain.NewQuery(text, g.clock.Now())
	if err != nil {
		return nil, err
	}
	g.metrics.submitted()
	g.logger.Info("query submitted", "query_id", q.ID)

	c := coordinator.New(q, g.stages, g.pool, coordinator.Config{
		GenerationDeadline: g.cfg.GenerationDeadline,
		RetrievalDeadline:  g.cfg.RetrievalDeadline,
	}, g.clock, g.logger)

	inner := c.Start(ctx)
	out := make(chan domain.Answer, 1)
	go func() {
		a := <-inner
		g.metrics.delivered(a)
		out <- a
	}()
	return out, nil
}
