package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/policybot/internal/domain"
)

func handle(id, addr string, role domain.Role) domain.WorkerHandle {
	return domain.WorkerHandle{ID: id, Role: role, Addr: addr, Status: domain.WorkerUp}
}

func TestResolveEmptyRoster(t *testing.T) {
	r := New(nil)
	_, err := r.Resolve(domain.RoleRetrieval)
	require.ErrorIs(t, err, ErrNoWorker)
}

func TestJoinThenResolve(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Join(handle("w1", "10.0.0.1:8091", domain.RoleRetrieval)))

	h, err := r.Resolve(domain.RoleRetrieval)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8091", h.Addr)

	// The other role remains empty.
	_, err = r.Resolve(domain.RoleGeneration)
	require.ErrorIs(t, err, ErrNoWorker)
}

func TestJoinRejectsInvalidHandle(t *testing.T) {
	r := New(nil)
	err := r.Join(domain.WorkerHandle{Role: domain.RoleRetrieval})
	require.ErrorIs(t, err, domain.ErrInvalidHandle)
}

// A joined event followed by a left event for the same address must make the
// address unresolvable again.
func TestRosterConsistencyAfterJoinAndLeave(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Join(handle("w1", "10.0.0.1:8091", domain.RoleRetrieval)))
	r.Remove("10.0.0.1:8091")

	_, err := r.Resolve(domain.RoleRetrieval)
	require.ErrorIs(t, err, ErrNoWorker)
}

func TestResolveSkipsUnreachable(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Join(handle("w1", "10.0.0.1:8091", domain.RoleGeneration)))
	require.NoError(t, r.Join(handle("w2", "10.0.0.2:8091", domain.RoleGeneration)))

	r.MarkUnreachable("10.0.0.1:8091")

	for i := 0; i < 4; i++ {
		h, err := r.Resolve(domain.RoleGeneration)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.2:8091", h.Addr)
	}

	r.MarkUnreachable("10.0.0.2:8091")
	_, err := r.Resolve(domain.RoleGeneration)
	require.ErrorIs(t, err, ErrNoWorker)

	r.MarkReachable("10.0.0.2:8091")
	h, err := r.Resolve(domain.RoleGeneration)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:8091", h.Addr)
}

func TestResolveRoundRobin(t *testing.T) {
	r := New(nil)
	for i := 1; i <= 3; i++ {
		addr := fmt.Sprintf("10.0.0.%d:8091", i)
		require.NoError(t, r.Join(handle(fmt.Sprintf("w%d", i), addr, domain.RoleRetrieval)))
	}

	seen := make(map[string]int)
	for i := 0; i < 6; i++ {
		h, err := r.Resolve(domain.RoleRetrieval)
		require.NoError(t, err)
		seen[h.Addr]++
	}

	// Two full cycles distribute evenly across the three workers.
	require.Len(t, seen, 3)
	for addr, n := range seen {
		assert.Equal(t, 2, n, "uneven selection for %s", addr)
	}
}

func TestJoinReplacesExistingAddr(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Join(handle("w1", "10.0.0.1:8091", domain.RoleRetrieval)))
	r.MarkUnreachable("10.0.0.1:8091")

	// Re-join after a restart resets the status to up without duplicating.
	require.NoError(t, r.Join(handle("w1", "10.0.0.1:8091", domain.RoleRetrieval)))
	assert.Len(t, r.Snapshot(domain.RoleRetrieval), 1)

	h, err := r.Resolve(domain.RoleRetrieval)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkerUp, h.Status)
}

func TestSubscribeReceivesRosterChanges(t *testing.T) {
	r := New(nil)
	ch := r.Subscribe(domain.RoleGeneration)
	defer r.Unsubscribe(domain.RoleGeneration, ch)

	require.NoError(t, r.Join(handle("w1", "10.0.0.1:8091", domain.RoleGeneration)))
	snapshot := <-ch
	require.Len(t, snapshot, 1)
	assert.Equal(t, domain.WorkerUp, snapshot[0].Status)

	r.MarkUnreachable("10.0.0.1:8091")
	snapshot = <-ch
	require.Len(t, snapshot, 1)
	assert.Equal(t, domain.WorkerUnreachable, snapshot[0].Status)

	r.Remove("10.0.0.1:8091")
	snapshot = <-ch
	assert.Empty(t, snapshot)
}

func TestConcurrentResolveDuringWrites(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Join(handle("w1", "10.0.0.1:8091", domain.RoleRetrieval)))
	require.NoError(t, r.Join(handle("w2", "10.0.0.2:8091", domain.RoleRetrieval)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if h, err := r.Resolve(domain.RoleRetrieval); err == nil {
					// A reader must never observe a partially-updated handle.
					assert.NotEmpty(t, h.Addr)
					assert.NotEmpty(t, h.ID)
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r.MarkUnreachable("10.0.0.1:8091")
			r.MarkReachable("10.0.0.1:8091")
		}
	}()

	wg.Wait()
}
