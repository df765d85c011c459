package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/policybot/internal/domain"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

type stubStore struct {
	matches []domain.CandidateMatch
	err     error
	gotTopK int
}

func (s *stubStore) Search(_ context.Context, _ []float32, topK int) ([]domain.CandidateMatch, error) {
	s.gotTopK = topK
	return s.matches, s.err
}

func mustQuery(t *testing.T, text string) domain.Query {
	t.Helper()
	q, err := domain.NewQuery(text, time.Now())
	require.NoError(t, err)
	return q
}

func TestSearchKeepsStoreOrder(t *testing.T) {
	store := &stubStore{matches: []domain.CandidateMatch{
		{Title: "A", Score: 0.9},
		{Title: "B", Score: 0.8},
		{Title: "C", Score: 0.5},
	}}
	svc := NewService(&stubEmbedder{vec: []float32{0.1}}, store, 5, nil)

	matches, err := svc.Search(context.Background(), mustQuery(t, "leave of absence"))
	require.NoError(t, err)
	assert.Equal(t, 5, store.gotTopK)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"A", "B", "C"},
		[]string{matches[0].Title, matches[1].Title, matches[2].Title})
}

func TestSearchEmbedderFailureYieldsEmptySlice(t *testing.T) {
	svc := NewService(&stubEmbedder{err: errors.New("connection refused")},
		&stubStore{}, 5, nil)

	matches, err := svc.Search(context.Background(), mustQuery(t, "anything"))
	require.Error(t, err)
	require.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSearchStoreFailureYieldsEmptySlice(t *testing.T) {
	svc := NewService(&stubEmbedder{vec: []float32{0.1}},
		&stubStore{err: errors.New("qdrant unavailable")}, 5, nil)

	matches, err := svc.Search(context.Background(), mustQuery(t, "anything"))
	require.Error(t, err)
	require.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestRemoteSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/search", r.URL.Path)

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "leave of absence", req.Query)
		assert.NotEmpty(t, req.QueryID)

		json.NewEncoder(w).Encode(SearchResponse{Matches: []domain.CandidateMatch{
			{Title: "Leave of Absence", Text: "Students must...", Score: 0.91},
		}})
	}))
	defer srv.Close()

	worker := domain.WorkerHandle{
		ID:     "retrieval@" + srv.Listener.Addr().String(),
		Role:   domain.RoleRetrieval,
		Addr:   strings.TrimPrefix(srv.URL, "http://"),
		Status: domain.WorkerUp,
	}

	c := NewRemoteClient(nil)
	matches, err := c.Search(context.Background(), worker, mustQuery(t, "leave of absence"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Leave of Absence", matches[0].Title)
}

func TestRemoteSearchWorkerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "stage unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	worker := domain.WorkerHandle{
		ID:     "retrieval@x",
		Role:   domain.RoleRetrieval,
		Addr:   strings.TrimPrefix(srv.URL, "http://"),
		Status: domain.WorkerUp,
	}

	c := NewRemoteClient(nil)
	matches, err := c.Search(context.Background(), worker, mustQuery(t, "anything"))
	require.ErrorIs(t, err, ErrWorkerStatus)
	require.NotNil(t, matches)
	assert.Empty(t, matches)
}
