// Package worker provides background processing for export jobs.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrQueueFull is returned by Submit when the job queue has no capacity.
var ErrQueueFull = errors.New("worker: queue full")

// Runner executes one export job to a terminal state. ctx is cancelled
// when the job is cancelled or the pool shuts down.
type Runner interface {
	Run(ctx context.Context, jobID string)
}

// Pool manages background workers for export jobs and owns the per-job
// cancellation table.
type Pool struct {
	runner Runner
	jobs   chan string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	base    context.Context
	baseCxl context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a worker pool with the given queue size.
func NewPool(runner Runner, queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &Pool{
		runner:  runner,
		jobs:    make(chan string, queueSize),
		cancels: make(map[string]context.CancelFunc),
		base:    base,
		baseCxl: cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for jobID := range p.jobs {
				p.runJob(jobID)
			}
		}()
	}
}

// Stop closes the queue, cancels in-flight jobs, and waits for workers
// to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.baseCxl()
	p.wg.Wait()
}

// Submit queues a job without blocking. A full queue is the caller's
// signal to shed load rather than silently drop work.
func (p *Pool) Submit(jobID string) error {
	select {
	case p.jobs <- jobID:
		return nil
	default:
		log.Printf("WARN worker: queue full, rejecting job %s", jobID)
		return ErrQueueFull
	}
}

// Cancel cancels a running job's context. Returns false when the job is
// not currently running (it may still be queued; the runner re-checks
// job state on dequeue).
func (p *Pool) Cancel(jobID string) bool {
	p.mu.Lock()
	cancel, ok := p.cancels[jobID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (p *Pool) runJob(jobID string) {
	ctx, cancel := context.WithCancel(p.base)
	p.mu.Lock()
	p.cancels[jobID] = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.cancels, jobID)
		p.mu.Unlock()
		cancel()
	}()

	p.runner.Run(ctx, jobID)
}
