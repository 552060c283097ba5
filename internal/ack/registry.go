// Package ack implements the ACK registry: the map from outstanding
// acknowledgement ids to user callbacks, each with its own deadline.
package ack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duskport/sockio/internal/queue"
)

// ErrDuplicateID is returned by Register when id is already pending.
var ErrDuplicateID = errors.New("sockio/ack: id already registered")

// Callback is invoked exactly once, on the owning TaskQueue, either with the
// server's response args or with a non-nil error (timeout or cancellation).
type Callback func(args []interface{}, err error)

// ErrTimeout is passed to a Callback when its deadline elapses before a
// matching ack arrives.
var ErrTimeout = errors.New("sockio/ack: timed out waiting for acknowledgement")

// ErrCancelled is passed to every pending Callback when Clear is called
// (typically on disconnect).
var ErrCancelled = errors.New("sockio/ack: cancelled")

type entry struct {
	namespace string
	callback  Callback
	timeout   queue.Handle
	createdAt time.Time
}

// Stats summarizes registry activity for operational visibility.
type Stats struct {
	Registered        uint64
	Resolved          uint64
	TimedOut          uint64
	Cancelled         uint64
	Pending           int
	MeanResponseTime  time.Duration
}

// Registry maps outstanding ack ids to callbacks. Ack ids are scoped to one
// client instance — not per namespace — because the Socket.IO wire protocol
// uses a single id space. All exported methods must be called from the
// owning TaskQueue's worker goroutine; the registry holds no lock of its
// own because that goroutine is its only caller.
type Registry struct {
	queue    *queue.TaskQueue
	timeouts *queue.TimeoutManager
	logger   *slog.Logger

	nextID  int
	entries map[int]*entry

	stats      Stats
	meanSample int64 // count of samples folded into stats.MeanResponseTime
}

// wrapAt is the id value at which allocation wraps back to 0, skipping any
// id still in flight.
const wrapAt = 1 << 31

// NewRegistry creates a Registry whose timeout callbacks are scheduled
// through timeouts and delivered on queue.
func NewRegistry(q *queue.TaskQueue, timeouts *queue.TimeoutManager, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		queue:    q,
		timeouts: timeouts,
		logger:   logger.With(slog.String("component", "ack")),
		entries:  make(map[int]*entry),
	}
}

// AllocateID returns a monotonically increasing, non-negative id that is
// not currently pending. On reaching wrapAt it restarts from 0, skipping
// over any ids still in flight.
func (r *Registry) AllocateID() int {
	for {
		id := r.nextID
		r.nextID++
		if r.nextID >= wrapAt {
			r.nextID = 0
		}
		if _, taken := r.entries[id]; !taken {
			return id
		}
	}
}

// Register arms a timeout for id and stores callback. It fails if id is
// already pending; it does not overwrite the existing entry in that case.
func (r *Registry) Register(ctx context.Context, id int, namespace string, timeout time.Duration, callback Callback) error {
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	e := &entry{
		namespace: namespace,
		callback:  callback,
		createdAt: time.Now(),
	}
	r.entries[id] = e
	r.stats.Registered++
	r.stats.Pending++

	e.timeout = r.timeouts.Schedule(timeout, ackIdentifier, func() {
		r.expire(ctx, id)
	})
	return nil
}

// ackIdentifier groups every ack deadline for bulk diagnostics; individual
// cancellation still happens per-handle via r.timeouts.Cancel.
const ackIdentifier = "ack"

func (r *Registry) expire(ctx context.Context, id int) {
	e, ok := r.entries[id]
	if !ok {
		return
	}
	delete(r.entries, id)
	r.stats.TimedOut++
	r.stats.Pending--
	r.logger.Debug("ack timed out", "id", id, "namespace", e.namespace)
	e.callback(nil, ErrTimeout)
}

// Resolve fires the callback registered for id with args and removes the
// entry. It reports false if id was not pending (already resolved,
// expired, or never registered).
func (r *Registry) Resolve(id int, args []interface{}) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	r.timeouts.Cancel(e.timeout)

	r.stats.Resolved++
	r.stats.Pending--
	r.foldResponseTime(time.Since(e.createdAt))

	e.callback(args, nil)
	return true
}

// Cancel removes id's entry without firing its callback with a result;
// used internally by Clear. It reports false if id was not pending.
func (r *Registry) Cancel(id int) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	r.timeouts.Cancel(e.timeout)
	r.stats.Cancelled++
	r.stats.Pending--
	e.callback(nil, ErrCancelled)
	return true
}

// Clear cancels every pending entry, firing each callback once with
// ErrCancelled. It is used on disconnect.
func (r *Registry) Clear() {
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	for _, id := range ids {
		r.Cancel(id)
	}
}

// foldResponseTime updates the running mean response time using Welford's
// online algorithm, avoiding an ever-growing sum.
func (r *Registry) foldResponseTime(d time.Duration) {
	r.meanSample++
	delta := d - r.stats.MeanResponseTime
	r.stats.MeanResponseTime += delta / time.Duration(r.meanSample)
}

// Stats returns a snapshot of registry activity.
func (r *Registry) Stats() Stats {
	s := r.stats
	s.Pending = len(r.entries)
	return s
}
