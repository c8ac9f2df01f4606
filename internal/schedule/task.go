// Package schedule runs a function on a fixed interval until stopped.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Task is a handle to a recurring function started by Every.
type Task struct {
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Every calls fn every interval until parent is cancelled or Stop is called.
// When immediate is true fn also runs once right away. Calls never overlap:
// a tick that fires while fn is still running is dropped.
func Every(parent context.Context, interval time.Duration, immediate bool, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		if immediate {
			fn(ctx)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Stop may race with the tick; never start work after it.
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()

	return t
}

// Stop cancels the task and waits for a running call to return. After Stop
// returns fn is not called again. Stop is safe to call more than once.
func (t *Task) Stop() {
	t.stopOnce.Do(t.cancel)
	<-t.done
}

// Done is closed once the task's loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Context is cancelled when the task is stopped or its parent ends. Work
// started on behalf of the task can be bound to it.
func (t *Task) Context() context.Context {
	return t.ctx
}
