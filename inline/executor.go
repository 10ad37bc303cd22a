package inline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// ErrExecutorCancelled is reported for work submitted after Cancel.
var ErrExecutorCancelled = errors.New("executor cancelled")

// Job is a cancellable unit of work owned by an Executor.
type Job struct {
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	fn     func(ctx context.Context)
	done   chan struct{}
	ran    atomic.Bool
}

// Cancel requests cancellation. It does not wait.
func (j *Job) Cancel() { j.cancel() }

// Cancelled reports whether cancellation was requested.
func (j *Job) Cancelled() bool { return j.ctx.Err() != nil }

// Done is closed when the job has finished or was discarded.
func (j *Job) Done() <-chan struct{} { return j.done }

// Ran reports whether the job's function was started.
func (j *Job) Ran() bool { return j.ran.Load() }

// slot is the executor's current job. seq orders submissions; job is nil when
// the last submission was a plain cancel or the job has finished.
type slot struct {
	seq uint64
	job *Job
}

// Executor runs at most one job at a time. Submitting a job cancels the
// current one and waits for it to finish before the new one starts.
type Executor struct {
	log *slog.Logger

	current   atomic.Pointer[slot]
	seq       atomic.Uint64
	alive     atomic.Int64
	cancelled atomic.Bool
}

// NewExecutor creates an idle executor.
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	x := &Executor{log: log}
	x.current.Store(&slot{})
	return x
}

// Submit replaces the current job with fn; a nil fn only cancels the current
// job. Submit never blocks: the cancel, join and swap run on their own
// goroutine, and fn starts only once it owns the slot. A submission that is
// overtaken by a newer one before it gets the slot never runs.
//
// Submitting after Cancel is a programming error; it is logged and nil is
// returned.
func (x *Executor) Submit(fn func(ctx context.Context)) *Job {
	if x.cancelled.Load() {
		x.log.Error("submit after executor shutdown", "error", ErrExecutorCancelled)
		return nil
	}
	seq := x.seq.Add(1)

	var job *Job
	if fn != nil {
		ctx, cancel := context.WithCancel(context.Background())
		job = &Job{seq: seq, ctx: ctx, cancel: cancel, fn: fn, done: make(chan struct{})}
		x.alive.Add(1)
	}
	go x.install(seq, job)
	return job
}

// install cancels and joins whatever is current, then tries to take the
// slot. If another submission got in between, it starts over against the
// new occupant.
func (x *Executor) install(seq uint64, job *Job) {
	for {
		cur := x.current.Load()
		if cur.seq > seq || x.cancelled.Load() {
			x.discard(job)
			return
		}
		if cur.job != nil {
			cur.job.Cancel()
			<-cur.job.done
		}
		if x.current.CompareAndSwap(cur, &slot{seq: seq, job: job}) {
			break
		}
	}
	if job == nil {
		return
	}

	// Skip when a newer submission is already waiting.
	if job.ctx.Err() == nil && !x.cancelled.Load() && x.seq.Load() == seq {
		job.ran.Store(true)
		x.run(job)
	}
	x.finish(job)
}

func (x *Executor) run(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Error("job panicked", "panic", r)
		}
	}()
	job.fn(job.ctx)
}

// finish releases the slot if job still holds it and marks job done.
func (x *Executor) finish(job *Job) {
	if cur := x.current.Load(); cur.job == job {
		x.current.CompareAndSwap(cur, &slot{seq: cur.seq})
	}
	job.cancel()
	close(job.done)
	x.alive.Add(-1)
}

func (x *Executor) discard(job *Job) {
	if job == nil {
		return
	}
	job.cancel()
	close(job.done)
	x.alive.Add(-1)
}

// Current returns the job holding the slot, or nil.
func (x *Executor) Current() *Job {
	return x.current.Load().job
}

// Alive returns the number of submitted jobs that have not finished.
func (x *Executor) Alive() int64 {
	return x.alive.Load()
}

// Cancel cancels the current job and shuts the executor down for good.
func (x *Executor) Cancel() {
	if !x.cancelled.CompareAndSwap(false, true) {
		return
	}
	if job := x.current.Load().job; job != nil {
		job.Cancel()
	}
}

// AwaitIdle polls until every submitted job has finished. It exists for
// tests; production code must not wait on the executor.
func (x *Executor) AwaitIdle(ctx context.Context) error {
	for x.alive.Load() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	return nil
}
