// Package coordinator drives one submitted query from retrieval through
// generation to exactly one delivered answer. Each query gets its own
// coordinator goroutine; all blocking stage I/O runs on the gateway's
// bounded pool and reports back as messages, so the loop itself never
// blocks on a collaborator.
package coordinator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ahrav/policybot/internal/domain"
	"github.com/ahrav/policybot/internal/generation"
)

// Stages is the coordinator's view of the two pipeline stages. The gateway
// wires either in-process services or registry-resolved remote workers
// behind it.
type Stages interface {
	// Retrieve returns candidate matches for the query. Failures,
	// including no retrieval worker being available, come back as an
	// empty slice plus the error.
	Retrieve(ctx context.Context, q domain.Query) ([]domain.CandidateMatch, error)

	// Generate produces the answer text from the query and its matches.
	// An error means the stage could not run at all; the coordinator then
	// composes the deterministic fallback itself.
	Generate(ctx context.Context, q domain.Query, matches []domain.CandidateMatch) (generation.Result, error)
}

// Pool schedules blocking stage work off the coordinator loop.
type Pool interface {
	Go(task func())
}

// Config bounds the two pipeline stages.
type Config struct {
	// GenerationDeadline is armed when generation is dispatched. If it
	// fires first, the answer is composed from the already retrieved
	// matches.
	GenerationDeadline time.Duration

	// RetrievalDeadline bounds the retrieval stage; expiry degrades to
	// empty matches.
	RetrievalDeadline time.Duration
}

// Answer producers, recorded on the delivered answer.
const (
	producerModel    = "model"
	producerFallback = "fallback"
	producerTimeout  = "timeout"
)

// state is the query lifecycle position.
type state int

const (
	stateCreated state = iota
	stateAwaitingRetrieval
	stateAwaitingGeneration
	stateCompleted
)

// msgBuffer must exceed the number of messages a single query can ever
// produce (submit, retrieval done, generation done, deadline) so that a
// late sender never blocks after the loop has exited.
const msgBuffer = 8

// Coordinator owns one query's lifecycle.
type Coordinator struct {
	query  domain.Query
	stages Stages
	pool   Pool
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger

	msgs      chan message
	out       chan domain.Answer
	completed atomic.Bool

	st      state
	matches []domain.CandidateMatch
	started time.Time
}

// New creates a coordinator for one query. A nil clock gets the real one.
func New(q domain.Query, stages Stages, pool Pool, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		query:  q,
		stages: stages,
		pool:   pool,
		cfg:    cfg,
		clock:  clock,
		logger: logger.With("component", "coordinator", "query_id", q.ID),
		msgs:   make(chan message, msgBuffer),
		out:    make(chan domain.Answer, 1),
	}
}

// Start launches the coordinator goroutine and returns the answer channel.
// The channel yields exactly one Answer and is never closed without one.
func (c *Coordinator) Start(ctx context.Context) <-chan domain.Answer {
	c.started = c.clock.Now()
	c.msgs <- submitMsg{}
	go c.loop(ctx)
	return c.out
}

func (c *Coordinator) loop(ctx context.Context) {
	var deadline clockwork.Timer

	for c.st != stateCompleted {
		select {
		case <-ctx.Done():
			c.logger.Warn("context cancelled, answering from retrieved matches")
			c.complete(generation.ComposeTimeout(c.query, c.matches), false, producerTimeout)
		case msg := <-c.msgs:
			switch m := msg.(type) {
			case submitMsg:
				c.onSubmit(ctx)
			case retrievalDoneMsg:
				deadline = c.onRetrievalDone(ctx, m)
			case generationDoneMsg:
				c.onGenerationDone(m)
			case deadlineMsg:
				c.onDeadline()
			default:
				c.logger.Error("dropping unknown coordinator message", "type", msg)
			}
		}
	}

	if deadline != nil {
		deadline.Stop()
	}
}

// onSubmit dispatches retrieval to the pool. The stage contract guarantees
// an empty (non-nil) slice on failure, so the loop always gets a usable
// retrievalDoneMsg.
func (c *Coordinator) onSubmit(ctx context.Context) {
	if c.st != stateCreated {
		c.logger.Warn("duplicate submit ignored", "state", c.st)
		return
	}
	c.st = stateAwaitingRetrieval

	c.pool.Go(func() {
		retCtx, cancel := context.WithTimeout(ctx, c.cfg.RetrievalDeadline)
		defer cancel()

		matches, err := c.stages.Retrieve(retCtx, c.query)
		if err != nil {
			c.logger.Warn("retrieval failed, continuing with no matches", "error", err)
			matches = []domain.CandidateMatch{}
		}
		c.msgs <- retrievalDoneMsg{matches: matches}
	})
}

// onRetrievalDone dispatches generation and arms the deadline. The first
// of generation result and deadline wins; the loser becomes a logged no-op.
func (c *Coordinator) onRetrievalDone(ctx context.Context, m retrievalDoneMsg) clockwork.Timer {
	if c.st != stateAwaitingRetrieval {
		c.logger.Warn("late retrieval result ignored", "state", c.st)
		return nil
	}
	c.st = stateAwaitingGeneration
	c.matches = m.matches
	c.logger.Debug("retrieval complete", "matches", len(m.matches))

	deadline := c.clock.AfterFunc(c.cfg.GenerationDeadline, func() {
		c.msgs <- deadlineMsg{}
	})

	c.pool.Go(func() {
		result, err := c.stages.Generate(ctx, c.query, m.matches)
		if err != nil {
			c.logger.Warn("generation stage unavailable, composing fallback", "error", err)
			result = generation.Result{Text: generation.ComposeFallback(c.query, m.matches)}
		}
		c.msgs <- generationDoneMsg{result: result}
	})

	return deadline
}

func (c *Coordinator) onGenerationDone(m generationDoneMsg) {
	if c.st != stateAwaitingGeneration {
		c.logger.Info("generation finished after completion, dropping")
		return
	}
	producer := producerFallback
	if m.result.ModelUsed {
		producer = producerModel
	}
	c.complete(m.result.Text, m.result.ModelUsed, producer)
}

// onDeadline answers from the matches retrieval already produced. It never
// re-invokes the fallback generator: a timed-out query must not wait again.
func (c *Coordinator) onDeadline() {
	if c.st != stateAwaitingGeneration {
		c.logger.Info("deadline fired after completion, dropping")
		return
	}
	c.logger.Warn("generation deadline elapsed, answering from retrieved matches",
		"deadline", c.cfg.GenerationDeadline)
	c.complete(generation.ComposeTimeout(c.query, c.matches), false, producerTimeout)
}

// complete delivers the answer exactly once. The atomic guard backs the
// state check so that even racing completions cannot deliver twice.
func (c *Coordinator) complete(text string, modelUsed bool, producer string) {
	if !c.completed.CompareAndSwap(false, true) {
		c.logger.Warn("duplicate completion dropped", "producer", producer)
		return
	}
	c.st = stateCompleted

	answer := domain.Answer{
		QueryID:    c.query.ID,
		Text:       text,
		ProducedBy: producer,
		ModelUsed:  modelUsed,
		Elapsed:    c.clock.Since(c.started),
	}
	c.out <- answer
	c.logger.Info("query completed",
		"producer", producer,
		"elapsed", answer.Elapsed,
		"matches", len(c.matches))
}
