// Package sockio implements a Socket.IO protocol client (revisions v2, v3,
// v4) over the Engine.IO transport: HTTP long-polling with an optional
// upgrade to WebSocket, heartbeat liveness, acknowledgement callbacks with
// timeouts, and automatic reconnection with exponential-like backoff.
package sockio

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duskport/sockio/internal/ack"
	"github.com/duskport/sockio/internal/codec"
	"github.com/duskport/sockio/internal/engine"
	"github.com/duskport/sockio/internal/queue"
)

// pendingEmit is an Event packet already built (and, if it requested an
// ack, already registered in the ack registry) that is waiting for the
// client to reach Connected.
type pendingEmit struct {
	packet *codec.Packet
}

// Client is a single-namespace Socket.IO client. All exported methods are
// safe to call from any goroutine; the client's mutable state lives
// entirely on its own task queue.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	instanceID uuid.UUID

	queue            *queue.TaskQueue
	timeouts         *queue.TimeoutManager
	engine           *engine.Engine
	acks             *ack.Registry
	reconnectLimiter *engine.ReconnectLimiter

	shutdownCancel context.CancelFunc

	status          Status
	statusCallbacks []func(Status)

	namespace string

	nextHandle  Handle
	handlers    []*handlerEntry
	anyHandlers []*anyHandlerEntry

	pendingEmits []pendingEmit

	reconnectAttempt int
	localDisconnect  bool
	closed           bool
}

// New constructs a Client for the given server URL. The client is not
// connected until Connect is called.
func New(serverURL string, opts ...Option) *Client {
	cfg := defaultConfig(serverURL)
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "client"))

	ctx, cancel := context.WithCancel(context.Background())
	q := queue.New(ctx, logger)
	timeouts := queue.NewTimeoutManager(q)

	c := &Client{
		cfg:              cfg,
		logger:           logger,
		instanceID:       uuid.New(),
		queue:            q,
		timeouts:         timeouts,
		acks:             ack.NewRegistry(q, timeouts, logger),
		reconnectLimiter: engine.NewReconnectLimiter(100*time.Millisecond, 5),
		shutdownCancel:   cancel,
		status:           NotConnected,
		namespace:        cfg.Namespace,
	}
	logger = logger.With(slog.String("instance", c.instanceID.String()))
	c.logger = logger

	engineCfg := engine.Config{
		URL:                  cfg.URL,
		Path:                 cfg.Path,
		TransportMode:        cfg.Transport,
		ConnectTimeout:       cfg.ConnectTimeout,
		PingIntervalOverride: cfg.PingIntervalOverride,
		PingTimeoutOverride:  cfg.PingTimeoutOverride,
		ExtraHeaders:         cfg.ExtraHeaders,
		ConnectParams:        cfg.ConnectParams,
		ProtocolVersion:      cfg.ProtocolVersion,
		AllowSelfSigned:      cfg.AllowSelfSigned,
	}
	handler := engine.Handler{
		OnOpen:   c.onEngineOpen,
		OnPacket: c.onEnginePacket,
		OnError:  c.onEngineError,
		OnClose:  c.onEngineClose,
	}
	c.engine = engine.NewEngine(engineCfg, handler, cfg.httpClient, cfg.wsDialer, q, timeouts, logger)

	return c
}

// InstanceID uniquely identifies this Client instance, for correlating log
// lines across a process running several clients.
func (c *Client) InstanceID() uuid.UUID {
	return c.instanceID
}

// Connect transitions NotConnected/Disconnected to Connecting and begins
// the engine handshake.
func (c *Client) Connect(ctx context.Context) {
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		c.beginConnect(taskCtx)
	})
}

func (c *Client) beginConnect(ctx context.Context) {
	if c.closed {
		return
	}
	if c.status != NotConnected && c.status != Disconnected {
		return
	}
	c.localDisconnect = false
	c.setStatus(Connecting)
	c.engine.Connect(ctx)
}

// Disconnect sends a Disconnect packet for the current namespace, closes
// the engine, cancels pending acks, and transitions to Disconnected. It
// does not trigger reconnection.
func (c *Client) Disconnect(ctx context.Context) {
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		c.doDisconnect(taskCtx)
	})
}

func (c *Client) doDisconnect(ctx context.Context) {
	if c.status == NotConnected || c.status == Disconnected {
		return
	}
	c.localDisconnect = true
	if c.status == Connected || c.status == Opened {
		c.sendPacket(ctx, &codec.Packet{Type: codec.Disconnect, Namespace: c.namespace, AckID: codec.NoAck})
	}
	c.engine.Disconnect(ctx)
	c.acks.Clear()
	c.setStatus(Disconnected)
}

// Reconnect is equivalent to Disconnect followed by a delayed Connect.
func (c *Client) Reconnect(ctx context.Context) {
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		c.doDisconnect(taskCtx)
		c.localDisconnect = false
		c.reconnectAttempt = 0
		c.scheduleReconnect()
	})
}

// Close permanently releases the client's resources: it disconnects if
// necessary, shuts down the engine, and stops the task queue. The client
// cannot be reused afterward. Close must not be called from a handler
// running on the client's own task queue.
func (c *Client) Close() error {
	done := make(chan struct{})
	c.queue.Post(func(taskCtx context.Context) {
		defer close(done)
		if c.closed {
			return
		}
		c.closed = true
		c.localDisconnect = true
		if c.status != NotConnected && c.status != Disconnected {
			c.doDisconnect(taskCtx)
		}
		c.engine.Shutdown(taskCtx)
	})
	<-done
	c.queue.Close()
	if c.shutdownCancel != nil {
		c.shutdownCancel()
	}
	return nil
}

// CurrentStatus reports the client's status. Safe to call from any
// goroutine.
func (c *Client) CurrentStatus(ctx context.Context) Status {
	result := make(chan Status, 1)
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		result <- c.status
	})
	select {
	case s := <-result:
		return s
	case <-ctx.Done():
		return c.status
	}
}

// OnStatusChange registers a callback invoked whenever the client's status
// changes. Callbacks run on the task queue and must not block.
func (c *Client) OnStatusChange(fn func(Status)) {
	c.queue.Post(func(taskCtx context.Context) {
		c.statusCallbacks = append(c.statusCallbacks, fn)
	})
}

// AckStats returns a snapshot of the ack registry's activity counters.
func (c *Client) AckStats(ctx context.Context) ack.Stats {
	result := make(chan ack.Stats, 1)
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		result <- c.acks.Stats()
	})
	select {
	case s := <-result:
		return s
	case <-ctx.Done():
		return ack.Stats{}
	}
}

func (c *Client) setStatus(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	for _, cb := range c.statusCallbacks {
		cb(s)
	}
}

// EmitOption configures one Emit call.
type EmitOption func(*emitOptions)

type emitOptions struct {
	ackCallback ack.Callback
	ackTimeout  time.Duration
}

// WithAck requests an acknowledgement; cb fires exactly once, either with
// the server's response args or a timeout/cancellation error.
func WithAck(cb func(args []interface{}, err error)) EmitOption {
	return func(o *emitOptions) { o.ackCallback = ack.Callback(cb) }
}

// WithAckTimeout overrides the default ack timeout for one Emit call.
func WithAckTimeout(d time.Duration) EmitOption {
	return func(o *emitOptions) { o.ackTimeout = d }
}

// Emit sends a named event with args to the current namespace. If status
// is not Connected, the packet is buffered and flushed in FIFO order on
// reaching Connected; an ack callback supplied via WithAck is registered
// immediately regardless, so its timeout runs even while buffered (per the
// protocol's emit semantics).
func (c *Client) Emit(ctx context.Context, event string, args []interface{}, opts ...EmitOption) {
	o := emitOptions{ackTimeout: c.cfg.DefaultAckTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	c.queue.RunOrPost(ctx, func(taskCtx context.Context) {
		c.doEmit(taskCtx, event, args, o)
	})
}

func (c *Client) doEmit(ctx context.Context, event string, args []interface{}, o emitOptions) {
	if c.closed {
		return
	}

	payload := make([]interface{}, 0, len(args)+1)
	payload = append(payload, event)
	payload = append(payload, args...)

	pkt := &codec.Packet{Type: codec.Event, Namespace: c.namespace, AckID: codec.NoAck, Payload: payload}

	if o.ackCallback != nil {
		id := c.acks.AllocateID()
		pkt.AckID = id
		if err := c.acks.Register(ctx, id, c.namespace, o.ackTimeout, o.ackCallback); err != nil {
			c.logger.Error("ack registration failed", "error", err, "id", id)
		}
	}

	if c.status == Connected {
		c.sendPacket(ctx, pkt)
		return
	}
	c.pendingEmits = append(c.pendingEmits, pendingEmit{packet: pkt})
}

func (c *Client) flushPendingEmits(ctx context.Context) {
	pending := c.pendingEmits
	c.pendingEmits = nil
	for _, p := range pending {
		c.sendPacket(ctx, p.packet)
	}
}

func (c *Client) sendPacket(ctx context.Context, pkt *codec.Packet) {
	if err := c.engine.Send(ctx, pkt); err != nil {
		c.logger.Error("packet encode failed", "error", err, "type", pkt.Type.String())
	}
}

func (c *Client) sendConnectPacket(ctx context.Context) {
	var payload interface{}
	if c.cfg.ProtocolVersion == codec.V2 {
		payload = codec.ConnectPayloadV2(c.namespace, c.cfg.Auth)
	} else {
		payload = codec.ConnectPayloadV3(c.cfg.Auth, c.cfg.ConnectParams)
	}
	pkt := &codec.Packet{Type: codec.Connect, Namespace: c.namespace, AckID: codec.NoAck, Payload: payload}
	c.sendPacket(ctx, pkt)
}

// --- engine.Handler callbacks -----------------------------------------------
//
// These run already on the task queue (the engine invokes them from inside
// its own queue-bound tasks), so they mutate client state directly.

func (c *Client) onEngineOpen(session engine.Session) {
	c.setStatus(Opened)
	c.sendConnectPacket(context.Background())
}

func (c *Client) onEnginePacket(pkt *codec.Packet) {
	ns := pkt.Namespace
	if ns == "" {
		ns = "/"
	}
	if ns != c.namespace {
		c.logger.Warn("dropping packet for unmatched namespace", "namespace", ns, "active", c.namespace)
		return
	}

	switch pkt.Type {
	case codec.Connect:
		c.onNamespaceConnected()
	case codec.Disconnect:
		c.handleRemoteDisconnect()
	case codec.Event, codec.BinaryEvent:
		c.dispatchEvent(pkt)
	case codec.Ack, codec.BinaryAck:
		c.acks.Resolve(pkt.AckID, pkt.EventArgs())
	case codec.ConnectError:
		c.logger.Error("server refused namespace connect", "namespace", ns, "payload", pkt.Payload)
	}
}

func (c *Client) onNamespaceConnected() {
	c.setStatus(Connected)
	c.reconnectAttempt = 0
	c.flushPendingEmits(context.Background())
}

func (c *Client) handleRemoteDisconnect() {
	c.localDisconnect = true
	c.acks.Clear()
	c.setStatus(Disconnected)
	c.engine.Disconnect(context.Background())
}

func (c *Client) dispatchEvent(pkt *codec.Packet) {
	name := pkt.EventName()
	args := pkt.EventArgs()

	var emitAck AckEmitter
	if pkt.AckID != codec.NoAck {
		ackID := pkt.AckID
		namespace := c.namespace
		emitAck = func(responseArgs ...interface{}) {
			c.queue.Post(func(taskCtx context.Context) {
				payload := append([]interface{}(nil), responseArgs...)
				ackPkt := &codec.Packet{Type: codec.Ack, Namespace: namespace, AckID: ackID, Payload: payload}
				c.sendPacket(taskCtx, ackPkt)
			})
		}
	}

	matched := make([]*handlerEntry, 0, 2)
	remaining := c.handlers[:0]
	for _, h := range c.handlers {
		if h.event == name {
			matched = append(matched, h)
			if h.once {
				continue
			}
		}
		remaining = append(remaining, h)
	}
	c.handlers = remaining

	for _, h := range matched {
		h.fn(args, emitAck)
	}
	for _, h := range c.anyHandlers {
		h.fn(name, args)
	}
}

func (c *Client) onEngineError(err error) {
	c.logger.Error("engine error", "error", err)
}

func (c *Client) onEngineClose(reason string) {
	wasActive := c.status == Connected || c.status == Opened || c.status == Connecting
	c.acks.Clear()
	c.setStatus(Disconnected)

	if c.localDisconnect || c.closed {
		return
	}
	if wasActive && c.cfg.ReconnectionEnabled {
		c.logger.Warn("unsolicited disconnect, scheduling reconnect", "reason", reason)
		c.scheduleReconnect()
	}
}

func (c *Client) scheduleReconnect() {
	c.reconnectAttempt++
	if c.cfg.ReconnectionAttempts > 0 && c.reconnectAttempt > c.cfg.ReconnectionAttempts {
		c.logger.Error("reconnection attempts exceeded", "attempts", c.reconnectAttempt-1)
		return
	}
	delay := engine.Backoff(c.reconnectAttempt, c.cfg.ReconnectionDelay, c.cfg.ReconnectionDelayMax, c.cfg.RandomizationFactor)
	c.timeouts.Schedule(delay, "reconnect", func() {
		c.attemptReconnect()
	})
}

func (c *Client) attemptReconnect() {
	if c.closed || c.localDisconnect {
		return
	}
	if !c.reconnectLimiter.Allow() {
		c.timeouts.Schedule(200*time.Millisecond, "reconnect", c.attemptReconnect)
		return
	}
	c.setStatus(Connecting)
	c.engine.Connect(context.Background())
}
