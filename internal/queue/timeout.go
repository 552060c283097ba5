package queue

import (
	"context"
	"sync"
	"time"
)

// Handle identifies one scheduled timeout so it can be cancelled later.
type Handle uint64

// TimeoutManager schedules, cancels, and fires deadline callbacks on a
// TaskQueue. Every callback fires exactly once, on the queue's worker
// goroutine, unless cancelled first; cancelling after it has already fired
// is a harmless no-op.
type TimeoutManager struct {
	queue *TaskQueue

	mu       sync.Mutex
	nextID   Handle
	entries  map[Handle]*entry
	byIdent  map[string]map[Handle]struct{}
}

type entry struct {
	identifier string
	duration   time.Duration
	callback   func()
	timer      *time.Timer
	fired      bool
}

// NewTimeoutManager creates a TimeoutManager whose callbacks are delivered
// through queue.
func NewTimeoutManager(queue *TaskQueue) *TimeoutManager {
	return &TimeoutManager{
		queue:   queue,
		entries: make(map[Handle]*entry),
		byIdent: make(map[string]map[Handle]struct{}),
	}
}

// Schedule arms callback to fire after duration, grouped under identifier
// for later bulk cancellation via CancelAllWithIdentifier.
func (m *TimeoutManager) Schedule(duration time.Duration, identifier string, callback func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	h := m.nextID

	e := &entry{
		identifier: identifier,
		duration:   duration,
		callback:   callback,
	}
	e.timer = time.AfterFunc(duration, func() { m.fire(h) })

	m.entries[h] = e
	if m.byIdent[identifier] == nil {
		m.byIdent[identifier] = make(map[Handle]struct{})
	}
	m.byIdent[identifier][h] = struct{}{}

	return h
}

// fire runs on the time.AfterFunc goroutine; it posts the actual callback
// invocation onto the task queue so it is serialized with all other state
// mutation.
func (m *TimeoutManager) fire(h Handle) {
	m.mu.Lock()
	e, ok := m.entries[h]
	if !ok || e.fired {
		m.mu.Unlock()
		return
	}
	e.fired = true
	cb := e.callback
	m.mu.Unlock()

	m.queue.Post(func(ctx context.Context) {
		cb()
		m.remove(h)
	})
}

func (m *TimeoutManager) remove(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[h]
	if !ok {
		return
	}
	delete(m.entries, h)
	if set := m.byIdent[e.identifier]; set != nil {
		delete(set, h)
		if len(set) == 0 {
			delete(m.byIdent, e.identifier)
		}
	}
}

// Cancel prevents h's callback from firing, if it has not fired already.
// Cancelling an unknown or already-fired handle is a no-op.
func (m *TimeoutManager) Cancel(h Handle) {
	m.mu.Lock()
	e, ok := m.entries[h]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.timer.Stop()
	m.mu.Unlock()
	m.remove(h)
}

// CancelAllWithIdentifier cancels every currently pending timeout scheduled
// under identifier.
func (m *TimeoutManager) CancelAllWithIdentifier(identifier string) {
	m.mu.Lock()
	set := m.byIdent[identifier]
	handles := make([]Handle, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.Cancel(h)
	}
}

// Reset cancels and re-schedules every pending entry under identifier using
// each entry's original duration and callback.
func (m *TimeoutManager) Reset(identifier string) {
	m.mu.Lock()
	set := m.byIdent[identifier]
	type resched struct {
		duration time.Duration
		callback func()
	}
	var toReschedule []resched
	handles := make([]Handle, 0, len(set))
	for h := range set {
		handles = append(handles, h)
		if e := m.entries[h]; e != nil {
			toReschedule = append(toReschedule, resched{e.duration, e.callback})
		}
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.Cancel(h)
	}
	for _, r := range toReschedule {
		m.Schedule(r.duration, identifier, r.callback)
	}
}

// ActiveCount returns the number of timeouts currently pending.
func (m *TimeoutManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
