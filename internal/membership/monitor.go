package membership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/policybot/internal/domain"
	"github.com/ahrav/policybot/internal/registry"
)

// eventBuffer bounds the monitor's inbox. Producers block when the monitor
// falls this far behind, which preserves per-source arrival order.
const eventBuffer = 64

// Monitor applies membership events to the registry in arrival order.
// It is the registry's single writer: all roster mutations funnel through
// its one processing goroutine, so registry readers never race a
// half-applied transition.
type Monitor struct {
	reg    *registry.Registry
	events chan Event
	logger *slog.Logger
}

// NewMonitor creates a monitor writing to the given registry.
func NewMonitor(reg *registry.Registry, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		reg:    reg,
		events: make(chan Event, eventBuffer),
		logger: logger.With("component", "membership"),
	}
}

// Events is the inbound event stream. The prober (or any external
// membership feed) sends into it; Run consumes it.
func (m *Monitor) Events() chan<- Event { return m.events }

// Submit enqueues one event, blocking if the monitor is behind.
func (m *Monitor) Submit(ev Event) { m.events <- ev }

// Run processes events until ctx is cancelled. It must be the only
// goroutine consuming the stream.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("membership monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("membership monitor stopped")
			return
		case ev := <-m.events:
			m.apply(ev)
		}
	}
}

// apply translates one event into registry mutations.
// An unreachable event does not cancel in-flight queries; those fail
// through the coordinator's timeout path instead.
func (m *Monitor) apply(ev Event) {
	switch ev.Kind {
	case EventJoined:
		for _, role := range ev.Roles {
			h := domain.WorkerHandle{
				ID:   handleID(ev.Addr, role),
				Role: role,
				Addr: ev.Addr,
			}
			if err := m.reg.Join(h); err != nil {
				m.logger.Error("rejecting join event", "addr", ev.Addr, "role", role, "error", err)
			}
		}
	case EventLeft:
		m.reg.Remove(ev.Addr)
	case EventUnreachable:
		m.reg.MarkUnreachable(ev.Addr)
	case EventReachableAgain:
		m.reg.MarkReachable(ev.Addr)
	default:
		m.logger.Error("unknown membership event kind", "kind", ev.Kind, "addr", ev.Addr)
	}
}

func handleID(addr string, role domain.Role) string {
	return fmt.Sprintf("%s@%s", role, addr)
}
