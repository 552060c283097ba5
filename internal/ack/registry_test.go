package ack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/duskport/sockio/internal/queue"
)

// newTestRegistry starts a queue and registry pair and returns a helper that
// runs fn synchronously on the queue's worker goroutine, waiting for it to
// complete before returning.
func newTestRegistry(t *testing.T) (*Registry, func(fn func(*Registry))) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	q := queue.New(ctx, nil)
	t.Cleanup(q.Close)
	timeouts := queue.NewTimeoutManager(q)
	r := NewRegistry(q, timeouts, nil)

	run := func(fn func(*Registry)) {
		done := make(chan struct{})
		q.Post(func(context.Context) {
			defer close(done)
			fn(r)
		})
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for queue task")
		}
	}
	return r, run
}

func TestRegisterAndResolve(t *testing.T) {
	_, run := newTestRegistry(t)

	var (
		mu       sync.Mutex
		gotArgs  []interface{}
		gotErr   error
		called   bool
	)

	var id int
	run(func(r *Registry) {
		id = r.AllocateID()
		if err := r.Register(context.Background(), id, "/", time.Minute, func(args []interface{}, err error) {
			mu.Lock()
			defer mu.Unlock()
			gotArgs, gotErr, called = args, err, true
		}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	})

	run(func(r *Registry) {
		if !r.Resolve(id, []interface{}{"ok"}) {
			t.Fatal("Resolve reported false for a pending id")
		}
	})

	mu.Lock()
	defer mu.Unlock()
	if !called {
		t.Fatal("callback was never invoked")
	}
	if gotErr != nil {
		t.Errorf("gotErr = %v, want nil", gotErr)
	}
	if len(gotArgs) != 1 || gotArgs[0] != "ok" {
		t.Errorf("gotArgs = %v, want [ok]", gotArgs)
	}
}

func TestResolveUnknownIDReportsFalse(t *testing.T) {
	_, run := newTestRegistry(t)
	run(func(r *Registry) {
		if r.Resolve(999, nil) {
			t.Error("Resolve reported true for an id that was never registered")
		}
	})
}

func TestRegisterDuplicateIDFails(t *testing.T) {
	_, run := newTestRegistry(t)
	run(func(r *Registry) {
		if err := r.Register(context.Background(), 1, "/", time.Minute, func([]interface{}, error) {}); err != nil {
			t.Fatalf("first Register: %v", err)
		}
		err := r.Register(context.Background(), 1, "/", time.Minute, func([]interface{}, error) {})
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("second Register err = %v, want ErrDuplicateID", err)
		}
	})
}

func TestRegisterTimesOut(t *testing.T) {
	_, run := newTestRegistry(t)

	resultCh := make(chan error, 1)
	run(func(r *Registry) {
		id := r.AllocateID()
		if err := r.Register(context.Background(), id, "/", 10*time.Millisecond, func(args []interface{}, err error) {
			resultCh <- err
		}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	})

	select {
	case err := <-resultCh:
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("callback err = %v, want ErrTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack expiry")
	}
}

func TestCancelFiresCancelledError(t *testing.T) {
	_, run := newTestRegistry(t)

	var gotErr error
	var id int
	run(func(r *Registry) {
		id = r.AllocateID()
		_ = r.Register(context.Background(), id, "/", time.Minute, func(args []interface{}, err error) {
			gotErr = err
		})
	})
	run(func(r *Registry) {
		if !r.Cancel(id) {
			t.Fatal("Cancel reported false for a pending id")
		}
	})
	if !errors.Is(gotErr, ErrCancelled) {
		t.Fatalf("gotErr = %v, want ErrCancelled", gotErr)
	}
}

func TestClearCancelsAllPending(t *testing.T) {
	_, run := newTestRegistry(t)

	var mu sync.Mutex
	cancelCount := 0
	run(func(r *Registry) {
		for i := 0; i < 5; i++ {
			id := r.AllocateID()
			_ = r.Register(context.Background(), id, "/", time.Minute, func(args []interface{}, err error) {
				if errors.Is(err, ErrCancelled) {
					mu.Lock()
					cancelCount++
					mu.Unlock()
				}
			})
		}
	})
	run(func(r *Registry) {
		r.Clear()
		if got := r.Stats().Pending; got != 0 {
			t.Fatalf("Pending after Clear = %d, want 0", got)
		}
	})

	mu.Lock()
	defer mu.Unlock()
	if cancelCount != 5 {
		t.Fatalf("cancelCount = %d, want 5", cancelCount)
	}
}

func TestAllocateIDSkipsPendingIDs(t *testing.T) {
	_, run := newTestRegistry(t)
	run(func(r *Registry) {
		a := r.AllocateID()
		_ = r.Register(context.Background(), a, "/", time.Minute, func([]interface{}, error) {})
		b := r.AllocateID()
		if b == a {
			t.Fatalf("AllocateID returned an id (%d) that is already pending", a)
		}
	})
}

func TestStatsTracksResolvedAndMeanResponseTime(t *testing.T) {
	_, run := newTestRegistry(t)
	run(func(r *Registry) {
		id := r.AllocateID()
		_ = r.Register(context.Background(), id, "/", time.Minute, func([]interface{}, error) {})
		r.Resolve(id, nil)

		stats := r.Stats()
		if stats.Resolved != 1 {
			t.Errorf("Resolved = %d, want 1", stats.Resolved)
		}
		if stats.Pending != 0 {
			t.Errorf("Pending = %d, want 0", stats.Pending)
		}
		if stats.MeanResponseTime < 0 {
			t.Errorf("MeanResponseTime = %v, want >= 0", stats.MeanResponseTime)
		}
	})
}
