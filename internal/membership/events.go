// Package membership tracks which workers of each role are currently
// reachable and keeps the service registry's rosters in sync.
//
// Two pieces cooperate: the Monitor consumes an ordered stream of membership
// events and applies them to the registry one at a time, and the Prober
// generates that stream by heartbeating announced workers over HTTP. The
// monitor is a pure event-to-state-update relay with no failure modes of
// its own.
package membership

import "github.com/ahrav/policybot/internal/domain"

// EventKind classifies a membership transition.
type EventKind string

// Membership transitions, mirroring the cluster event set the system
// reacts to.
const (
	EventJoined         EventKind = "joined"
	EventLeft           EventKind = "left"
	EventUnreachable    EventKind = "unreachable"
	EventReachableAgain EventKind = "reachableAgain"
)

// Event is one membership change for a worker address.
// Roles is only populated for joined events; the other kinds affect every
// role the address is registered under.
type Event struct {
	Kind  EventKind     `json:"kind"`
	Addr  string        `json:"addr"`
	Roles []domain.Role `json:"roles,omitempty"`
}
