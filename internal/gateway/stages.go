package gateway

import (
	"context"

	"github.com/ahrav/policybot/internal/domain"
	"github.com/ahrav/policybot/internal/generation"
	"github.com/ahrav/policybot/internal/registry"
	"github.com/ahrav/policybot/internal/retrieval"
)

// LocalStages runs both pipeline stages in-process, for single-node mode.
type LocalStages struct {
	Retrieval  *retrieval.Service
	Generation *generation.Service
}

// Retrieve implements coordinator.Stages.
func (s LocalStages) Retrieve(ctx context.Context, q domain.Query) ([]domain.CandidateMatch, error) {
	return s.Retrieval.Search(ctx, q)
}

// Generate implements coordinator.Stages. The local generation service
// already degrades to the fallback internally, so this never errors.
func (s LocalStages) Generate(ctx context.Context, q domain.Query, matches []domain.CandidateMatch) (generation.Result, error) {
	return s.Generation.Generate(ctx, q, matches), nil
}

// RemoteStages resolves a worker from the registry per stage invocation
// and calls it over HTTP. Resolution failures surface as errors so the
// coordinator can take the degraded path.
type RemoteStages struct {
	registry  *registry.Registry
	searchC   *retrieval.RemoteClient
	generateC *generation.RemoteClient
}

// NewRemoteStages wires registry-resolved remote stage clients.
func NewRemoteStages(reg *registry.Registry, search *retrieval.RemoteClient, gen *generation.RemoteClient) RemoteStages {
	return RemoteStages{registry: reg, searchC: search, generateC: gen}
}

// Retrieve implements coordinator.Stages against a resolved retrieval
// worker.
func (s RemoteStages) Retrieve(ctx context.Context, q domain.Query) ([]domain.CandidateMatch, error) {
	worker, err := s.registry.Resolve(domain.RoleRetrieval)
	if err != nil {
		return []domain.CandidateMatch{}, err
	}
	return s.searchC.Search(ctx, worker, q)
}

// Generate implements coordinator.Stages against a resolved generation
// worker.
func (s RemoteStages) Generate(ctx context.Context, q domain.Query, matches []domain.CandidateMatch) (generation.Result, error) {
	worker, err := s.registry.Resolve(domain.RoleGeneration)
	if err != nil {
		return generation.Result{}, err
	}
	return s.generateC.Generate(ctx, worker, q, matches)
}
