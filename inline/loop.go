package inline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrLoopClosed is returned when posting to a closed loop.
var ErrLoopClosed = errors.New("loop closed")

// Loop is the UI thread of an engine: a single goroutine running posted
// tasks one at a time in FIFO order. All session state, reconciliation and
// render calls happen on it.
type Loop struct {
	log *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}

	inLoop  atomic.Bool
	pending atomic.Int64
}

// NewLoop starts a loop.
func NewLoop(log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	l := &Loop{
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post enqueues fn without waiting for it.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.queue = append(l.queue, fn)
	l.pending.Add(1)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call runs fn on the loop and waits for it, or for ctx to end. When ctx ends
// first fn may still run later, so fn must re-check whatever ctx guards.
// Call must not be used from a task running on the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop and waits for it.
func (l *Loop) Do(fn func()) error {
	return l.Call(context.Background(), fn)
}

// AssertOn logs an error when called outside a loop task. op names the
// caller. It reports whether the check passed.
func (l *Loop) AssertOn(op string) bool {
	if l.inLoop.Load() {
		return true
	}
	l.log.Error("called off the UI loop", "op", op)
	return false
}

// Idle reports whether no task is queued or running.
func (l *Loop) Idle() bool {
	return l.pending.Load() == 0
}

// Close stops accepting tasks. Queued tasks still run.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return
			}
			<-l.wake
			continue
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	l.inLoop.Store(true)
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("task panicked", "panic", r)
		}
		l.inLoop.Store(false)
		l.pending.Add(-1)
	}()
	fn()
}
