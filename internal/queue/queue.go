// Package queue implements the single-writer task queue that owns all engine
// and client mutable state, plus the timeout manager that schedules
// expirations without races.
package queue

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
)

// Task is a unit of work executed on a TaskQueue's worker goroutine. It
// receives the worker's context, which is cancelled when the queue is
// closed.
type Task func(ctx context.Context)

// taskQueueKey marks a context.Context as having originated from a
// particular TaskQueue's worker goroutine. RunOrPost uses it to tell
// whether the caller is already running inline on the queue.
type taskQueueKey struct{}

// TaskQueue is a serialized executor: tasks posted from any goroutine are
// appended to a FIFO queue and run, one at a time and in submission order,
// by a single dedicated worker goroutine. No two tasks ever execute
// concurrently, which is what lets Engine, Client, the ACK registry and the
// timeout manager mutate their state without locks.
//
// A task posted from inside a running task executes after the current task
// returns — never re-entrantly.
type TaskQueue struct {
	tasks  chan Task
	done   chan struct{}
	logger *slog.Logger
}

// New creates a TaskQueue and starts its worker goroutine. The worker stops
// when ctx is cancelled or Close is called, whichever happens first.
func New(ctx context.Context, logger *slog.Logger) *TaskQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &TaskQueue{
		tasks:  make(chan Task, 256),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "queue")),
	}
	go q.run(ctx)
	return q
}

func (q *TaskQueue) run(parent context.Context) {
	selfCtx := context.WithValue(parent, taskQueueKey{}, q)
	for {
		select {
		case <-q.done:
			return
		case <-parent.Done():
			return
		case t := <-q.tasks:
			q.execute(selfCtx, t)
		}
	}
}

// execute runs a single task, catching any panic so a misbehaving user
// callback never takes down the worker goroutine or corrupts queue-owned
// state for subsequent tasks.
func (q *TaskQueue) execute(ctx context.Context, t Task) {
	var pc panics.Catcher
	pc.Try(func() { t(ctx) })
	if r := pc.Recovered(); r != nil {
		q.logger.Error("recovered panic in task", "panic", r.String())
	}
}

// Post appends fn to the queue. It never blocks the caller on task
// execution; it returns once fn has been enqueued (or the queue is closed,
// in which case fn is dropped).
func (q *TaskQueue) Post(fn Task) {
	select {
	case q.tasks <- fn:
	case <-q.done:
	}
}

// RunOrPost runs fn inline if ctx shows the caller is already executing on
// this queue's worker goroutine; otherwise it posts fn for later execution.
// This is the mechanism that lets internal code call into queue-owned state
// without caring whether it was entered from a user goroutine or from a
// handler running on the worker.
func (q *TaskQueue) RunOrPost(ctx context.Context, fn Task) {
	if q.onSelf(ctx) {
		fn(ctx)
		return
	}
	q.Post(fn)
}

func (q *TaskQueue) onSelf(ctx context.Context) bool {
	owner, _ := ctx.Value(taskQueueKey{}).(*TaskQueue)
	return owner == q
}

// Close stops the worker goroutine after any in-flight task completes.
// Tasks posted after Close is called are silently dropped.
func (q *TaskQueue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// Closed reports whether Close has been called.
func (q *TaskQueue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
