package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/policybot/internal/domain"
	"github.com/ahrav/policybot/internal/generation"
	"github.com/ahrav/policybot/internal/registry"
)

// goPool runs every task on its own goroutine, like the gateway pool but
// unbounded.
type goPool struct{}

func (goPool) Go(task func()) { go task() }

// stubStages scripts both pipeline stages. Generate can be gated on a
// channel to keep it in flight while the test advances the clock.
type stubStages struct {
	matches     []domain.CandidateMatch
	retrieveErr error

	result      generation.Result
	generateErr error
	gate        chan struct{}

	gotMatches atomic.Pointer[[]domain.CandidateMatch]
}

func (s *stubStages) Retrieve(context.Context, domain.Query) ([]domain.CandidateMatch, error) {
	if s.retrieveErr != nil {
		return []domain.CandidateMatch{}, s.retrieveErr
	}
	return s.matches, nil
}

func (s *stubStages) Generate(_ context.Context, _ domain.Query, matches []domain.CandidateMatch) (generation.Result, error) {
	s.gotMatches.Store(&matches)
	if s.gate != nil {
		<-s.gate
	}
	return s.result, s.generateErr
}

func testConfig() Config {
	return Config{
		GenerationDeadline: 70 * time.Second,
		RetrievalDeadline:  20 * time.Second,
	}
}

func mustQuery(t *testing.T) domain.Query {
	t.Helper()
	q, err := domain.NewQuery("how do I take a leave of absence", time.Now())
	require.NoError(t, err)
	return q
}

func sampleMatches() []domain.CandidateMatch {
	return []domain.CandidateMatch{
		{Title: "Leave of Absence", Text: "Students must apply before the deadline.", Score: 0.9},
		{Title: "Withdrawal", Text: "A student who withdraws must notify the registrar.", Score: 0.8},
		{Title: "Tuition Refund", Text: "Refunds are prorated by week.", Score: 0.5},
	}
}

func receiveAnswer(t *testing.T, out <-chan domain.Answer) domain.Answer {
	t.Helper()
	select {
	case a := <-out:
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("no answer delivered")
		return domain.Answer{}
	}
}

func TestModelAnswerDelivered(t *testing.T) {
	q := mustQuery(t)
	stages := &stubStages{
		matches: sampleMatches(),
		result:  generation.Result{Text: "Apply before the deadline.", ModelUsed: true},
	}

	c := New(q, stages, goPool{}, testConfig(), nil, nil)
	answer := receiveAnswer(t, c.Start(context.Background()))

	assert.Equal(t, q.ID, answer.QueryID)
	assert.True(t, answer.ModelUsed)
	assert.Equal(t, "model", answer.ProducedBy)
	assert.Equal(t, "Apply before the deadline.", answer.Text)

	// Matches reach generation in retrieval order.
	got := *stages.gotMatches.Load()
	require.Len(t, got, 3)
	assert.Equal(t, []float64{0.9, 0.8, 0.5},
		[]float64{got[0].Score, got[1].Score, got[2].Score})
}

func TestRetrievalFailureDegradesToEmptyMatches(t *testing.T) {
	stages := &stubStages{
		retrieveErr: errors.New("embedding collaborator down"),
		result:      generation.Result{Text: "composed without matches"},
	}

	c := New(mustQuery(t), stages, goPool{}, testConfig(), nil, nil)
	answer := receiveAnswer(t, c.Start(context.Background()))

	assert.False(t, answer.ModelUsed)
	got := *stages.gotMatches.Load()
	assert.Empty(t, got)
}

func TestNoRetrievalWorkerStillAnswers(t *testing.T) {
	stages := &stubStages{
		retrieveErr: registry.ErrNoWorker,
		generateErr: registry.ErrNoWorker,
	}

	c := New(mustQuery(t), stages, goPool{}, testConfig(), nil, nil)
	answer := receiveAnswer(t, c.Start(context.Background()))

	// Both stages gone: the coordinator composes the no-matches fallback
	// itself.
	assert.False(t, answer.ModelUsed)
	assert.Equal(t, "fallback", answer.ProducedBy)
	assert.Contains(t, answer.Text, "No matching policies were found")
}

func TestGenerationErrorComposesFallbackFromMatches(t *testing.T) {
	stages := &stubStages{
		matches:     sampleMatches(),
		generateErr: errors.New("worker vanished mid-call"),
	}

	c := New(mustQuery(t), stages, goPool{}, testConfig(), nil, nil)
	answer := receiveAnswer(t, c.Start(context.Background()))

	assert.False(t, answer.ModelUsed)
	assert.Equal(t, "fallback", answer.ProducedBy)
	assert.Contains(t, answer.Text, "Leave of Absence")
}

func TestDeadlineWinsRaceAndUsesRetrievedMatches(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stages := &stubStages{
		matches: sampleMatches(),
		result:  generation.Result{Text: "too late", ModelUsed: true},
		gate:    make(chan struct{}),
	}

	c := New(mustQuery(t), stages, goPool{}, testConfig(), clock, nil)
	out := c.Start(context.Background())

	// Wait for the deadline timer to be armed, then fire it while the
	// generation stage is still blocked.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(70 * time.Second)

	answer := receiveAnswer(t, out)
	assert.Equal(t, "timeout", answer.ProducedBy)
	assert.False(t, answer.ModelUsed)
	assert.Contains(t, answer.Text, "took too long")
	assert.Contains(t, answer.Text, "Leave of Absence")
	assert.NotContains(t, answer.Text, "too late")

	// Release the late generation result; it must be dropped, not
	// delivered as a second answer.
	close(stages.gate)
	select {
	case extra := <-out:
		t.Fatalf("second answer delivered: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGenerationWinsRaceBeforeDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	stages := &stubStages{
		matches: sampleMatches(),
		result:  generation.Result{Text: "in time", ModelUsed: true},
	}

	c := New(mustQuery(t), stages, goPool{}, testConfig(), clock, nil)
	answer := receiveAnswer(t, c.Start(context.Background()))

	assert.Equal(t, "model", answer.ProducedBy)
	assert.Equal(t, "in time", answer.Text)

	// A timer firing after completion is a no-op.
	clock.Advance(70 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.out)
}

func TestExactlyOneAnswerUnderConcurrentSubmissions(t *testing.T) {
	for i := 0; i < 20; i++ {
		stages := &stubStages{
			matches: sampleMatches(),
			result:  generation.Result{Text: "answer", ModelUsed: true},
		}
		c := New(mustQuery(t), stages, goPool{}, testConfig(), nil, nil)
		out := c.Start(context.Background())

		receiveAnswer(t, out)
		select {
		case extra := <-out:
			t.Fatalf("second answer delivered: %+v", extra)
		default:
		}
	}
}
