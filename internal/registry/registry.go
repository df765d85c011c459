// Package registry maintains the per-role roster of reachable workers and
// answers "give me one currently-up handle for role R".
//
// The roster has a single writer: the membership monitor. Query coordinators
// only read. Selection among several up handles for a role is round-robin;
// the source system left the policy unordered, round-robin is the simplest
// deterministic choice and spreads concurrent queries across workers.
package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ahrav/policybot/internal/domain"
)

// ErrNoWorker indicates that no up worker is registered for the role.
// Callers treat it like a transient stage failure, never as fatal.
var ErrNoWorker = errors.New("no worker available for role")

// subscriberBuffer bounds roster notifications per subscriber. A slow
// subscriber loses intermediate snapshots, never the latest state.
const subscriberBuffer = 8

// Registry is the queryable view of cluster membership.
// All methods are safe for concurrent use; writes are serialized by the
// membership monitor, so readers never observe a partially-updated roster.
type Registry struct {
	mu      sync.RWMutex
	rosters map[domain.Role][]domain.WorkerHandle
	next    map[domain.Role]int
	subs    map[domain.Role]map[chan []domain.WorkerHandle]struct{}
	logger  *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rosters: make(map[domain.Role][]domain.WorkerHandle),
		next:    make(map[domain.Role]int),
		subs:    make(map[domain.Role]map[chan []domain.WorkerHandle]struct{}),
		logger:  logger.With("component", "registry"),
	}
}

// Resolve returns one currently-up handle for the role, or ErrNoWorker.
// It never blocks waiting for a worker to appear.
func (r *Registry) Resolve(role domain.Role) (domain.WorkerHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	up := make([]domain.WorkerHandle, 0, len(r.rosters[role]))
	for _, h := range r.rosters[role] {
		if h.Status == domain.WorkerUp {
			up = append(up, h)
		}
	}
	if len(up) == 0 {
		return domain.WorkerHandle{}, ErrNoWorker
	}

	h := up[r.next[role]%len(up)]
	r.next[role]++
	return h, nil
}

// Join adds or re-adds a handle to its role's roster with status up.
// Called only by the membership monitor.
func (r *Registry) Join(h domain.WorkerHandle) error {
	if err := h.Validate(); err != nil {
		return err
	}
	h.Status = domain.WorkerUp

	r.mu.Lock()
	roster := r.rosters[h.Role]
	replaced := false
	for i := range roster {
		if roster[i].Addr == h.Addr {
			roster[i] = h
			replaced = true
			break
		}
	}
	if !replaced {
		roster = append(roster, h)
	}
	r.rosters[h.Role] = roster
	snapshot := r.snapshotLocked(h.Role)
	r.mu.Unlock()

	r.logger.Info("worker joined", "role", h.Role, "addr", h.Addr, "roster_size", len(snapshot))
	r.notify(h.Role, snapshot)
	return nil
}

// MarkUnreachable flips every handle at addr to unreachable.
// In-flight queries using the worker are not cancelled; they fail through
// the normal timeout path.
func (r *Registry) MarkUnreachable(addr string) {
	r.setStatus(addr, domain.WorkerUnreachable, "worker unreachable")
}

// MarkReachable flips every handle at addr back to up.
func (r *Registry) MarkReachable(addr string) {
	r.setStatus(addr, domain.WorkerUp, "worker reachable again")
}

// Remove deletes every handle at addr from all rosters.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	changed := make(map[domain.Role][]domain.WorkerHandle)
	for role, roster := range r.rosters {
		kept := roster[:0]
		removed := false
		for _, h := range roster {
			if h.Addr == addr {
				removed = true
				continue
			}
			kept = append(kept, h)
		}
		if removed {
			r.rosters[role] = kept
			changed[role] = r.snapshotLocked(role)
		}
	}
	r.mu.Unlock()

	for role, snapshot := range changed {
		r.logger.Info("worker removed", "role", role, "addr", addr, "roster_size", len(snapshot))
		r.notify(role, snapshot)
	}
}

// Subscribe returns a channel receiving the role's roster snapshot whenever
// it changes. Release with Unsubscribe.
func (r *Registry) Subscribe(role domain.Role) chan []domain.WorkerHandle {
	ch := make(chan []domain.WorkerHandle, subscriberBuffer)
	r.mu.Lock()
	if r.subs[role] == nil {
		r.subs[role] = make(map[chan []domain.WorkerHandle]struct{})
	}
	r.subs[role][ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel registered with Subscribe.
func (r *Registry) Unsubscribe(role domain.Role, ch chan []domain.WorkerHandle) {
	r.mu.Lock()
	if subs := r.subs[role]; subs != nil {
		delete(subs, ch)
	}
	r.mu.Unlock()
}

// Snapshot returns a copy of the roster for diagnostics.
func (r *Registry) Snapshot(role domain.Role) []domain.WorkerHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(role)
}

func (r *Registry) setStatus(addr string, status domain.WorkerStatus, event string) {
	r.mu.Lock()
	changed := make(map[domain.Role][]domain.WorkerHandle)
	for role, roster := range r.rosters {
		for i := range roster {
			if roster[i].Addr == addr && roster[i].Status != status {
				roster[i].Status = status
				changed[role] = r.snapshotLocked(role)
			}
		}
	}
	r.mu.Unlock()

	for role, snapshot := range changed {
		r.logger.Info(event, "role", role, "addr", addr)
		r.notify(role, snapshot)
	}
}

func (r *Registry) snapshotLocked(role domain.Role) []domain.WorkerHandle {
	roster := r.rosters[role]
	out := make([]domain.WorkerHandle, len(roster))
	copy(out, roster)
	return out
}

// notify pushes a roster snapshot to every subscriber of the role.
// Sends never block: a full subscriber channel drops this snapshot.
func (r *Registry) notify(role domain.Role, snapshot []domain.WorkerHandle) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ch := range r.subs[role] {
		select {
		case ch <- snapshot:
		default:
			r.logger.Warn("subscriber lagging, dropping roster update", "role", role)
		}
	}
}
