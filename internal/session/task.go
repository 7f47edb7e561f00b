package session

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/folio/internal/clock"
)

// Task runs a function on a fixed interval until stopped. Ticks missed
// while the function is running are dropped, not queued.
type Task struct {
	clock    clock.Clock
	interval time.Duration
	fn       func(context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTask creates a stopped task.
func NewTask(clk clock.Clock, interval time.Duration, fn func(context.Context)) *Task {
	return &Task{
		clock:    clk,
		interval: interval,
		fn:       fn,
	}
}

// Start launches the loop. It returns false if the task is already running.
// The loop also ends when ctx is cancelled.
func (t *Task) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := t.clock.NewTicker(t.interval)
	done := make(chan struct{})

	t.cancel = cancel
	t.done = done

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				if ctx.Err() != nil {
					return
				}
				t.fn(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for it to exit. Stopping a task that is
// not running is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
