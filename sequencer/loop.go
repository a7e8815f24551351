package sequencer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a cancellable scheduled callback
type Timer interface {
	// Cancel prevents the callback from running if it has not started yet.
	// It reports whether the callback was still pending.
	Cancel() bool
}

// Scheduler runs fn once after d. Callbacks never run inline in After.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

const loopQueueSize = 256

// Loop is the single goroutine that runs UI commands, clock ticks and voice
// triggers. Everything that touches the grid, transport or voices goes
// through it.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), loopQueueSize),
		done:  make(chan struct{}),
	}
}

// Run executes posted functions until ctx is cancelled
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed when Run returns
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn. It returns false if the loop has stopped.
// Must not be called from the loop goroutine when the queue may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- fn:
		return true
	}
}

// Call runs fn on the loop and waits for it
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

type loopTimer struct {
	timer     *time.Timer
	cancelled atomic.Bool
	fired     atomic.Bool
}

func (t *loopTimer) Cancel() bool {
	if t.cancelled.Swap(true) {
		return false
	}
	t.timer.Stop()
	return !t.fired.Load()
}

// After schedules fn to run on the loop after d. Negative d is treated as 0.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			// cancellation happens on the loop, so this check cannot race it
			if t.cancelled.Load() {
				return
			}
			t.fired.Store(true)
			fn()
		})
	})
	return t
}
