package gateway

import (
	"context"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds the blocking collaborator I/O issued on behalf of all
// coordinators. Tasks queue on the semaphore rather than being rejected; a
// slow collaborator slows queries down instead of failing them.
type WorkerPool struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewWorkerPool creates a pool allowing size concurrent tasks.
func NewWorkerPool(size int64, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		sem:    semaphore.NewWeighted(size),
		logger: logger.With("component", "pool"),
	}
}

// Go schedules a task. It returns immediately; the task waits for a pool
// slot on its own goroutine so callers (coordinator loops) never block.
func (p *WorkerPool) Go(task func()) {
	go func() {
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			p.logger.Error("pool acquire failed", "error", err)
			return
		}
		defer p.sem.Release(1)
		task()
	}()
}
