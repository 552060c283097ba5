package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/duskport/sockio/internal/codec"
	"github.com/duskport/sockio/internal/queue"
)

// State is one position in the engine's transport state machine.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpenPolling
	StateProbing
	StateOpenWebSocket
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpenPolling:
		return "open-polling"
	case StateProbing:
		return "probing"
	case StateOpenWebSocket:
		return "open-websocket"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// writeItem is one Socket.IO packet already encoded to its engine-level
// text frame plus any binary frames that must follow it.
type writeItem struct {
	text     string
	binaries [][]byte
}

// Engine drives one Engine.IO transport session: the handshake, the
// websocket probe/upgrade, heartbeat liveness, and framing writes/reads for
// the Socket.IO codec layer above it. Every method is safe to call from any
// goroutine; all mutable state is confined to the owning TaskQueue's worker.
type Engine struct {
	cfg     Config
	handler Handler
	http    HTTPClient
	dialer  WebSocketDialer
	logger  *slog.Logger

	queue    *queue.TaskQueue
	timeouts *queue.TimeoutManager

	state   State
	session Session

	connectCancel context.CancelFunc

	ws      WSConn
	probeWS WSConn

	pollCtx    context.Context
	pollCancel context.CancelFunc
	pollPending  []writeItem
	pollFlushing bool

	writeBuffer []writeItem

	reassemble *reassembly

	pongsMissed int
}

// NewEngine constructs an Engine driven by q and timeouts, which the caller
// owns: the concurrency model specifies a single task queue shared by the
// engine, the client, and the ack registry, not one queue per component.
func NewEngine(cfg Config, handler Handler, httpClient HTTPClient, dialer WebSocketDialer, q *queue.TaskQueue, timeouts *queue.TimeoutManager, logger *slog.Logger) *Engine {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "engine"))
	if httpClient == nil {
		httpClient = NewDefaultHTTPClient()
	}
	if dialer == nil {
		dialer = NewDefaultWebSocketDialer()
	}

	return &Engine{
		cfg:      cfg,
		handler:  handler,
		http:     httpClient,
		dialer:   dialer,
		logger:   logger,
		queue:    q,
		timeouts: timeouts,
		state:    StateClosed,
	}
}

// Connect begins the handshake. It is a no-op if the engine is not
// currently Closed.
func (e *Engine) Connect(ctx context.Context) {
	e.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		e.beginConnect()
	})
}

func (e *Engine) beginConnect() {
	if e.state != StateClosed {
		return
	}
	e.state = StateOpening
	connectCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ConnectTimeout)
	e.connectCancel = cancel

	if e.cfg.TransportMode == WebSocketOnly {
		go e.dialWebSocketHandshake(connectCtx)
		return
	}
	go e.pollHandshake(connectCtx)
}

// Send encodes pkt and hands it to whatever transport is currently
// authoritative, buffering it if none is yet open. It returns an error only
// for encode-time failures discovered before any I/O is attempted; write
// failures against an open transport are reported asynchronously through
// Handler.OnError.
func (e *Engine) Send(ctx context.Context, pkt *codec.Packet) error {
	text, binaries, err := codec.Encode(pkt, e.cfg.ProtocolVersion)
	if err != nil {
		return err
	}
	e.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		e.enqueueWrite(writeItem{text: Packet{Type: Message, Payload: text}.Encode(), binaries: binaries})
	})
	return nil
}

func (e *Engine) enqueueWrite(item writeItem) {
	switch e.state {
	case StateOpenWebSocket:
		e.writeWS(item)
	case StateOpenPolling, StateProbing:
		e.queuePollWrite(item)
	case StateClosed, StateClosing:
		e.emitError(fmt.Errorf("%w: write dropped", ErrClosed))
	default:
		e.writeBuffer = append(e.writeBuffer, item)
	}
}

func (e *Engine) writeWS(item writeItem) {
	if err := e.ws.SendText(item.text); err != nil {
		e.emitError(fmt.Errorf("sockio/engine: websocket write failed: %w", err))
		return
	}
	for _, b := range item.binaries {
		if err := e.ws.SendBinary(b); err != nil {
			e.emitError(fmt.Errorf("sockio/engine: websocket write failed: %w", err))
			return
		}
	}
}

// writeEnginePacket sends an Engine.IO-layer control packet (Ping, Close,
// Upgrade) over the currently authoritative transport. The one exception is
// the probe Ping, which goes to the probe websocket while Probing.
func (e *Engine) writeEnginePacket(p Packet) {
	switch e.state {
	case StateOpenWebSocket:
		if err := e.ws.SendText(p.Encode()); err != nil {
			e.emitError(fmt.Errorf("sockio/engine: websocket write failed: %w", err))
		}
	case StateOpenPolling:
		e.queuePollWrite(writeItem{text: p.Encode()})
	case StateProbing:
		if p.Type == Ping && p.Payload == ProbePayload && e.probeWS != nil {
			if err := e.probeWS.SendText(p.Encode()); err != nil {
				e.emitError(fmt.Errorf("sockio/engine: probe write failed: %w", err))
			}
			return
		}
		e.queuePollWrite(writeItem{text: p.Encode()})
	}
}

func (e *Engine) flushBufferedWrites() {
	pending := e.writeBuffer
	e.writeBuffer = nil
	for _, item := range pending {
		e.enqueueWrite(item)
	}
}

// Disconnect sends a Close frame and tears the session down. Unlike
// Shutdown, the engine may be reused by calling Connect again afterward.
func (e *Engine) Disconnect(ctx context.Context) {
	e.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		if e.state == StateClosed {
			return
		}
		e.writeEnginePacket(Packet{Type: Close})
		e.teardown()
		e.state = StateClosed
		if e.handler.OnClose != nil {
			e.handler.OnClose("client disconnect")
		}
	})
}

// Shutdown tears down any open transport and cancels every engine-owned
// timeout. It does not touch the shared task queue or timeout manager —
// the owner of those (the Client) is responsible for their lifecycle.
func (e *Engine) Shutdown(ctx context.Context) {
	e.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		e.teardown()
		e.state = StateClosed
	})
}

// Status reports the current state. Safe to call from any goroutine.
func (e *Engine) Status(ctx context.Context) State {
	result := make(chan State, 1)
	e.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		result <- e.state
	})
	select {
	case s := <-result:
		return s
	case <-ctx.Done():
		return StateClosed
	}
}

func (e *Engine) fail(err error) {
	if e.state == StateClosed {
		return
	}
	e.teardown()
	e.state = StateClosed
	e.emitError(err)
	if e.handler.OnClose != nil {
		e.handler.OnClose(err.Error())
	}
}

func (e *Engine) onServerClose() {
	e.teardown()
	e.state = StateClosed
	if e.handler.OnClose != nil {
		e.handler.OnClose("server requested close")
	}
}

func (e *Engine) teardown() {
	e.timeouts.CancelAllWithIdentifier("ping-interval")
	e.timeouts.CancelAllWithIdentifier("ping-deadline")
	e.timeouts.CancelAllWithIdentifier("probe-timeout")
	e.stopPolling()
	if e.ws != nil {
		e.ws.Close()
		e.ws = nil
	}
	if e.probeWS != nil {
		e.probeWS.Close()
		e.probeWS = nil
	}
	if e.connectCancel != nil {
		e.connectCancel()
		e.connectCancel = nil
	}
	e.writeBuffer = nil
	e.reassemble = nil
	e.pongsMissed = 0
}

func (e *Engine) emitError(err error) {
	if e.handler.OnError != nil {
		e.handler.OnError(err)
	}
}

func durationFromMillis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// --- URL / header construction ---------------------------------------------

func (e *Engine) buildPollURL() string {
	return e.buildURL("polling", true)
}

func (e *Engine) buildWSURL() string {
	return e.buildURL("websocket", false)
}

func (e *Engine) buildURL(transport string, isHTTP bool) string {
	base := strings.TrimRight(e.cfg.URL, "/") + e.cfg.Path
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{Path: base}
	}
	if !isHTTP {
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		default:
			u.Scheme = "ws"
		}
	}

	q := u.Query()
	for k, vs := range e.cfg.ConnectParams {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("EIO", strconv.Itoa(e.cfg.EIOVersion))
	q.Set("transport", transport)
	if e.session.SID != "" {
		q.Set("sid", e.session.SID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (e *Engine) buildHeaders() http.Header {
	h := make(http.Header)
	for k, vs := range e.cfg.ExtraHeaders {
		h[k] = append([]string(nil), vs...)
	}
	return h
}
