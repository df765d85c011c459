package membership

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ahrav/policybot/internal/domain"
)

// ProberConfig tunes the heartbeat loop.
type ProberConfig struct {
	// Interval between probe rounds.
	Interval time.Duration
	// MaxFailures is the number of consecutive failed probes before a
	// worker is reported unreachable.
	MaxFailures int
	// RemoveAfter is the number of consecutive failed probes before an
	// unreachable worker is reported left and dropped entirely.
	RemoveAfter int
	// ProbeTimeout bounds each health request.
	ProbeTimeout time.Duration
}

// DefaultProberConfig mirrors the operational defaults: probe every 5s,
// unreachable after 3 misses, removed after 12 (one minute of silence).
func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		Interval:     5 * time.Second,
		MaxFailures:  3,
		RemoveAfter:  12,
		ProbeTimeout: 2 * time.Second,
	}
}

// probeState tracks one announced worker between rounds.
type probeState struct {
	roles       []domain.Role
	fails       int
	unreachable bool
}

// Prober heartbeats announced workers and feeds membership events to the
// monitor. Workers announce themselves once (via the gateway's /register
// endpoint); afterwards reachability is derived solely from probes, so a
// crashed worker is noticed without it saying goodbye.
type Prober struct {
	cfg    ProberConfig
	events chan<- Event
	clock  clockwork.Clock
	logger *slog.Logger

	check func(ctx context.Context, addr string) error

	mu      sync.Mutex
	workers map[string]*probeState
}

// NewProber creates a prober feeding events into the monitor's stream.
// A nil clock uses the real one; tests inject a fake.
func NewProber(cfg ProberConfig, events chan<- Event, clock clockwork.Clock, logger *slog.Logger) *Prober {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{
		cfg:     cfg,
		events:  events,
		clock:   clock,
		logger:  logger.With("component", "prober"),
		workers: make(map[string]*probeState),
	}
	p.check = p.httpHealthCheck
	return p
}

// Announce registers a worker address with its roles and emits the joined
// event. Re-announcing a known address resets its failure count, which is
// how a restarted worker rejoins.
func (p *Prober) Announce(addr string, roles []domain.Role) {
	p.mu.Lock()
	p.workers[addr] = &probeState{roles: roles}
	p.mu.Unlock()

	p.logger.Info("worker announced", "addr", addr, "roles", roles)
	p.events <- Event{Kind: EventJoined, Addr: addr, Roles: roles}
}

// SetCheckFunc overrides the health probe, for tests.
func (p *Prober) SetCheckFunc(check func(ctx context.Context, addr string) error) {
	p.check = check
}

// Run probes all announced workers every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("prober started", "interval", p.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("prober stopped")
			return
		case <-ticker.Chan():
			p.probeRound(ctx)
		}
	}
}

// probeRound checks every worker once and emits state-change events.
// Events for one address are always emitted in transition order because
// the round runs on a single goroutine.
func (p *Prober) probeRound(ctx context.Context) {
	p.mu.Lock()
	addrs := make([]string, 0, len(p.workers))
	for addr := range p.workers {
		addrs = append(addrs, addr)
	}
	p.mu.Unlock()

	for _, addr := range addrs {
		p.probeOne(ctx, addr)
	}
}

func (p *Prober) probeOne(ctx context.Context, addr string) {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	err := p.check(probeCtx, addr)
	cancel()

	p.mu.Lock()
	st, ok := p.workers[addr]
	if !ok {
		p.mu.Unlock()
		return
	}

	if err == nil {
		recovered := st.unreachable
		st.fails = 0
		st.unreachable = false
		p.mu.Unlock()

		if recovered {
			p.logger.Info("worker recovered", "addr", addr)
			p.events <- Event{Kind: EventReachableAgain, Addr: addr}
		}
		return
	}

	st.fails++
	fails := st.fails
	becameUnreachable := !st.unreachable && fails >= p.cfg.MaxFailures
	if becameUnreachable {
		st.unreachable = true
	}
	removed := fails >= p.cfg.RemoveAfter
	if removed {
		delete(p.workers, addr)
	}
	p.mu.Unlock()

	p.logger.Warn("health probe failed", "addr", addr, "consecutive", fails, "error", err)
	if becameUnreachable {
		p.events <- Event{Kind: EventUnreachable, Addr: addr}
	}
	if removed {
		p.logger.Info("worker removed after prolonged silence", "addr", addr)
		p.events <- Event{Kind: EventLeft, Addr: addr}
	}
}

// httpHealthCheck hits the worker's /healthz endpoint.
func (p *Prober) httpHealthCheck(ctx context.Context, addr string) error {
	url := addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimRight(url, "/") + "/healthz"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
