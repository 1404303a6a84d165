package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// TickFunc performs one poll. Errors are logged; the schedule is unaffected.
type TickFunc func(ctx context.Context) error

// Options configures a polling loop
type Options struct {
	Name        string        // used in log lines
	Interval    time.Duration // time between tick starts
	MaxInFlight int           // ticks allowed to be outstanding at once
}

// Handle controls a running polling loop
type Handle struct {
	name     string
	cancel   context.CancelFunc
	done     chan struct{}
	ticks    sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex
	fired   int
	skipped int
	failed  int
}

// Stats is a snapshot of a loop's counters
type Stats struct {
	Fired   int `json:"fired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Start runs fn immediately and then every opts.Interval until the handle is
// stopped or parent is cancelled. Each tick runs on its own goroutine. When
// MaxInFlight ticks are already outstanding the new tick is skipped, never
// queued.
func Start(parent context.Context, opts Options, fn TickFunc) *Handle {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 1
	}
	if opts.Name == "" {
		opts.Name = "poll"
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Handle{
		name:   opts.Name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	sem := semaphore.NewWeighted(int64(opts.MaxInFlight))
	go h.loop(ctx, parent, opts.Interval, sem, fn)
	return h
}

func (h *Handle) loop(ctx, tickCtx context.Context, interval time.Duration, sem *semaphore.Weighted, fn TickFunc) {
	defer close(h.done)
	log.Printf("[Poller] %s started (every %s)", h.name, interval)
	defer log.Printf("[Poller] %s stopped", h.name)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.fire(tickCtx, sem, fn)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// a stop that raced with the ticker wins
		if ctx.Err() != nil {
			return
		}
	}
}

// fire starts one tick unless the in-flight limit is reached. In-flight ticks
// are not cancelled by Stop; they run against the parent context.
func (h *Handle) fire(ctx context.Context, sem *semaphore.Weighted, fn TickFunc) {
	if !sem.TryAcquire(1) {
		h.mu.Lock()
		h.skipped++
		h.mu.Unlock()
		log.Printf("[Poller] %s tick skipped: previous requests still in flight", h.name)
		return
	}

	h.mu.Lock()
	h.fired++
	h.mu.Unlock()

	h.ticks.Add(1)
	go func() {
		defer h.ticks.Done()
		defer sem.Release(1)

		if err := fn(ctx); err != nil {
			h.mu.Lock()
			h.failed++
			h.mu.Unlock()
			log.Printf("[Poller] %s tick failed: %v", h.name, err)
		}
	}()
}

// Stop ends the loop and returns once no further tick can start. It is safe
// to call more than once.
func (h *Handle) Stop() {
	h.stopOnce.Do(h.cancel)
	<-h.done
}

// Wait blocks until the loop has stopped and every started tick has returned
func (h *Handle) Wait() {
	<-h.done
	h.ticks.Wait()
}

// Done is closed when the loop has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stats returns the loop's counters
func (h *Handle) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Fired: h.fired, Skipped: h.skipped, Failed: h.failed}
}
