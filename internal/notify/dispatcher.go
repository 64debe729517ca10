// Package notify delivers email, SMS and event-stream side effects of
// account and booking operations. Delivery is asynchronous and best-effort:
// failures are logged and never reach the caller of the primary operation.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is a unit of notification work.
type Job func(ctx context.Context) error

type task struct {
	name string
	fn   Job
}

// Dispatcher runs jobs on a fixed pool of workers fed by a bounded queue.
type Dispatcher struct {
	jobs    chan task
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines consuming a queue of queueSize.
// Each job gets jobTimeout to finish.
func NewDispatcher(workers, queueSize int, jobTimeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		jobs:    make(chan task, queueSize),
		timeout: jobTimeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit enqueues fn without blocking. It returns false, and logs, when the
// queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(name string, fn Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("job", name).Msg("notification dropped: dispatcher closed")
		return false
	}
	select {
	case d.jobs <- task{name: name, fn: fn}:
		return true
	default:
		log.Warn().Str("job", name).Msg("notification dropped: queue full")
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.jobs {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := safeCall(ctx, t.fn)
	if err != nil {
		log.Error().Err(err).Str("job", t.name).Dur("took", time.Since(start)).Msg("notification failed")
		return
	}
	log.Debug().Str("job", t.name).Dur("took", time.Since(start)).Msg("notification sent")
}

func safeCall(ctx context.Context, fn Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Close stops accepting jobs and waits for queued ones to finish or for ctx
// to end, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
