package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/policybot/internal/configuration"
)

type stubEmbedder struct{ dim int }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

type upsertRecord struct {
	id    string
	title string
}

type stubStore struct {
	mu          sync.Mutex
	ensuredDim  int
	ensureCalls int
	upserts     []upsertRecord
	failFirst   int
}

func (s *stubStore) EnsureCollection(_ context.Context, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensuredDim = size
	s.ensureCalls++
	return nil
}

func (s *stubStore) Upsert(_ context.Context, id, title, _ string, _ []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst > 0 {
		s.failFirst--
		return errors.New("store briefly unavailable")
	}
	s.upserts = append(s.upserts, upsertRecord{id: id, title: title})
	return nil
}

func (s *stubStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.upserts)), nil
}

func writeCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestRunIndexesCorpus(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"policy_101.txt": "Policy 101: Leave of Absence\n\nStudents must apply before the deadline.",
		"policy_102.txt": "Policy 102: Withdrawal\n\nA student who withdraws must notify the registrar.",
		"notes.md":       "ignored, not a policy",
	})

	store := &stubStore{}
	ix := New(stubEmbedder{dim: 384}, store, configuration.CorpusConfig{Dir: dir}, nil)

	count, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Equal(t, 384, store.ensuredDim)
	assert.Equal(t, 1, store.ensureCalls)

	require.Len(t, store.upserts, 2)
	titles := map[string]string{}
	for _, u := range store.upserts {
		titles[u.id] = u.title
	}
	assert.Equal(t, "Policy 101: Leave of Absence", titles["policy_101.txt"])
	assert.Equal(t, "Policy 102: Withdrawal", titles["policy_102.txt"])
}

func TestRunRetriesUpserts(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"policy_101.txt": "Policy 101: Leave of Absence\n\nBody.",
	})

	store := &stubStore{failFirst: 2}
	ix := New(stubEmbedder{dim: 8}, store, configuration.CorpusConfig{Dir: dir}, nil)

	count, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRunEmptyCorpus(t *testing.T) {
	ix := New(stubEmbedder{dim: 8}, &stubStore{}, configuration.CorpusConfig{Dir: t.TempDir()}, nil)
	_, err := ix.Run(context.Background())
	require.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestRunSkipsEmptyDocuments(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"policy_101.txt": "Policy 101: Leave of Absence\n\nBody.",
		"empty.txt":      "   \n",
	})

	store := &stubStore{}
	ix := New(stubEmbedder{dim: 8}, store, configuration.CorpusConfig{Dir: dir}, nil)

	count, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
