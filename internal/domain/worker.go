package domain

import "fmt"

// Role is a category of worker capability.
type Role string

// Worker roles recognized by the registry.
const (
	RoleRetrieval  Role = "retrieval"
	RoleGeneration Role = "generation"
)

// ParseRole validates a role string from configuration or the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRetrieval, RoleGeneration:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// WorkerStatus is the membership monitor's view of a worker's reachability.
type WorkerStatus string

// Worker reachability states. Only the membership monitor mutates these.
const (
	WorkerUp          WorkerStatus = "up"
	WorkerUnreachable WorkerStatus = "unreachable"
	WorkerRemoved     WorkerStatus = "removed"
)

// WorkerHandle is a reachable endpoint advertising one role.
// A worker node offering several roles appears as one handle per role.
// Handles are not owned or locked by in-flight queries; several queries may
// select the same handle concurrently.
type WorkerHandle struct {
	ID     string       `json:"id"`
	Role   Role         `json:"role"`
	Addr   string       `json:"addr"`
	Status WorkerStatus `json:"status"`
}

// Validate checks that the handle carries the fields the registry needs.
func (h WorkerHandle) Validate() error {
	if h.Addr == "" || h.ID == "" {
		return fmt.Errorf("%w: id=%q addr=%q", ErrInvalidHandle, h.ID, h.Addr)
	}
	if _, err := ParseRole(string(h.Role)); err != nil {
		return err
	}
	return nil
}
