package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when a task is submitted while the previous
	// one has not completed.
	ErrQueueFull = errors.New("worker already has a task in flight")

	// ErrQueueClosed is returned when operations are attempted on a closed
	// worker, and by futures whose task never started.
	ErrQueueClosed = errors.New("worker is closed")
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Future tracks the completion of one submitted task.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Done is closed when the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task has finished or ctx is done, and returns the
// task's error.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed reports whether the task has finished.
func (f *Future) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// processRequest is one queued task.
type processRequest struct {
	task   Task
	future *Future
}

// Stats tracks worker activity.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Busy      time.Duration
}

// Worker executes tasks one at a time on a single goroutine. At most one
// task is in flight: Submit refuses a new task until the previous future has
// completed, so tasks never overlap.
type Worker struct {
	ctx context.Context

	mu       sync.Mutex
	closed   bool
	inflight *Future
	stats    Stats

	processRequests chan processRequest
	done            chan struct{}
	wg              sync.WaitGroup
}

// NewWorker starts a worker. Tasks run with ctx; cancelling it aborts the
// running task.
func NewWorker(ctx context.Context) *Worker {
	w := &Worker{
		ctx:             ctx,
		processRequests: make(chan processRequest, 1),
		done:            make(chan struct{}),
	}
	w.wg.Add(1)
	go w.process()
	return w
}

// Submit queues task and returns its future.
func (w *Worker) Submit(task Task) (*Future, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrQueueClosed
	}
	if w.inflight != nil && !w.inflight.Completed() {
		return nil, ErrQueueFull
	}

	f := newFuture()
	w.inflight = f
	w.stats.Submitted++
	// The channel has room: the previous task has completed.
	w.processRequests <- processRequest{task: task, future: f}
	return f, nil
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close stops the worker and waits for a running task to return. A task
// that was submitted but not started completes with ErrQueueClosed.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()

	select {
	case req := <-w.processRequests:
		req.future.complete(ErrQueueClosed)
	default:
	}
	return nil
}

// process handles tasks until the worker is closed.
func (w *Worker) process() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case req := <-w.processRequests:
			start := time.Now()
			err := req.task(w.ctx)

			w.mu.Lock()
			w.stats.Busy += time.Since(start)
			if err != nil {
				w.stats.Failed++
			} else {
				w.stats.Completed++
			}
			w.mu.Unlock()

			req.future.complete(err)
		}
	}
}
