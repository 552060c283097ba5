package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/duskport/sockio/internal/queue"
)

// fakeWSConn records every text/binary frame sent to it. Close is a no-op.
type fakeWSConn struct {
	mu       sync.Mutex
	texts    []string
	binaries [][]byte
}

func (c *fakeWSConn) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeWSConn) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binaries = append(c.binaries, data)
	return nil
}

func (c *fakeWSConn) Close() error { return nil }

func (c *fakeWSConn) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

func newTestEngine(t *testing.T) (*Engine, *queue.TaskQueue) {
	t.Helper()
	q := queue.New(context.Background(), nil)
	timeouts := queue.NewTimeoutManager(q)
	e := NewEngine(Config{TransportMode: Auto}, Handler{}, nil, nil, q, timeouts, nil)
	t.Cleanup(q.Close)
	return e, q
}

func runOnQueue(t *testing.T, q *queue.TaskQueue, fn func()) {
	t.Helper()
	done := make(chan struct{})
	q.Post(func(context.Context) {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out running work on the task queue")
	}
}

// TestCompleteUpgradeReplaysWritesQueuedDuringProbing reproduces the window
// where an application write is queued via queuePollWrite while the engine
// is Probing, and the probe then succeeds before that write has been
// flushed over polling. stopPolling must not silently discard it: it has
// to be replayed on the websocket that completeUpgrade promotes to
// authoritative.
func TestCompleteUpgradeReplaysWritesQueuedDuringProbing(t *testing.T) {
	e, q := newTestEngine(t)
	probe := &fakeWSConn{}

	var pendingBeforeUpgrade int
	runOnQueue(t, q, func() {
		e.state = StateOpenPolling
		e.pollCtx, e.pollCancel = context.WithCancel(context.Background())
		e.state = StateProbing
		e.probeWS = probe

		// Simulate an application write arriving while Probing: it is
		// queued but, since nothing ever flushes pollPending in this test
		// (no fake HTTP transport is wired), it stays pending exactly as it
		// would if the probe completed before the next flush went out.
		e.pollFlushing = true // block flushPollWrites from firing a real HTTP POST
		e.queuePollWrite(writeItem{text: "42[\"queued-during-probe\"]"})
		pendingBeforeUpgrade = len(e.pollPending)

		e.completeUpgrade()
	})

	if pendingBeforeUpgrade != 1 {
		t.Fatalf("pollPending = %d items, want 1 before upgrade completes", pendingBeforeUpgrade)
	}
	if e.state != StateOpenWebSocket {
		t.Fatalf("state after completeUpgrade = %v, want StateOpenWebSocket", e.state)
	}
	if len(e.pollPending) != 0 {
		t.Fatalf("pollPending after completeUpgrade = %d items, want 0 (drained)", len(e.pollPending))
	}

	texts := probe.snapshot()
	var found bool
	for _, text := range texts {
		if text == "42[\"queued-during-probe\"]" {
			found = true
		}
	}
	if !found {
		t.Fatalf("websocket frames after upgrade = %v, want the write queued during Probing to have been replayed", texts)
	}
}

// TestCompleteUpgradeSendsUpgradePacketBeforeReplayedWrites asserts the
// Engine.IO Upgrade control packet still goes out first, so replayed
// application writes never race ahead of it on the wire.
func TestCompleteUpgradeSendsUpgradePacketBeforeReplayedWrites(t *testing.T) {
	e, q := newTestEngine(t)
	probe := &fakeWSConn{}

	runOnQueue(t, q, func() {
		e.state = StateOpenPolling
		e.pollCtx, e.pollCancel = context.WithCancel(context.Background())
		e.state = StateProbing
		e.probeWS = probe
		e.pollFlushing = true
		e.queuePollWrite(writeItem{text: "42[\"after-upgrade\"]"})
		e.completeUpgrade()
	})

	texts := probe.snapshot()
	if len(texts) < 2 {
		t.Fatalf("got %d frames on the websocket, want at least 2 (Upgrade packet + replayed write)", len(texts))
	}
	if texts[0] != (Packet{Type: Upgrade}).Encode() {
		t.Fatalf("first frame after upgrade = %q, want the Upgrade control packet", texts[0])
	}
	if texts[1] != "42[\"after-upgrade\"]" {
		t.Fatalf("second frame after upgrade = %q, want the replayed write", texts[1])
	}
}
