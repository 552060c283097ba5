// Package sockiotest implements a minimal Engine.IO/Socket.IO server used
// as a test fixture for the client in this module. It speaks just enough
// of the wire protocol — long-polling handshake and batching, the
// websocket probe/upgrade, client-driven heartbeat, and the Socket.IO
// Connect/Event/Ack packet types — to exercise the client end to end
// without a real Socket.IO server dependency.
package sockiotest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/duskport/sockio/internal/codec"
	"github.com/duskport/sockio/internal/engine"
)

// EventHandler answers an incoming Socket.IO event. If hasAck is true,
// ackArgs is sent back as the Ack packet for the event's AckID.
type EventHandler func(namespace, event string, args []interface{}, ackID int) (ackArgs []interface{}, hasAck bool)

// Options configures a Server.
type Options struct {
	EIOVersion      int           // 3 or 4; default 4
	ProtocolVersion codec.Version // default codec.V4
	PingInterval    time.Duration // default 25s
	PingTimeout     time.Duration // default 20s
	PollTimeout     time.Duration // how long a long-poll GET blocks with nothing to deliver; default 200ms
	AllowUpgrade    bool          // advertise "websocket" in the handshake upgrades list
	Path            string        // default "/socket.io/"

	// OnEvent is invoked for every Socket.IO Event/BinaryEvent packet the
	// server receives. A nil OnEvent acks every event with no arguments if
	// the client requested an ack.
	OnEvent EventHandler
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.EIOVersion == 0 {
		out.EIOVersion = 4
	}
	if out.PingInterval == 0 {
		out.PingInterval = 25 * time.Second
	}
	if out.PingTimeout == 0 {
		out.PingTimeout = 20 * time.Second
	}
	if out.PollTimeout == 0 {
		out.PollTimeout = 200 * time.Millisecond
	}
	if out.Path == "" {
		out.Path = "/socket.io/"
	}
	return out
}

// Server is a fake Engine.IO/Socket.IO server backed by an httptest.Server.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
	http     *httptest.Server

	mu       sync.Mutex
	sessions map[string]*session
	nextSID  int64
}

type session struct {
	sid        string
	mu         sync.Mutex
	pending    chan string // engine-encoded frames awaiting the next long poll
	ws         *websocket.Conn
	probeWS    *websocket.Conn
	closed     bool
	reassemble *fixtureReassembly
}

// fixtureReassembly mirrors internal/engine's own reassembly: a Socket.IO
// text frame declaring attachments, plus the binary frames collected for it
// so far, arriving either as base64 polling frames or websocket binary
// frames depending on which transport the client is using.
type fixtureReassembly struct {
	text     string
	want     int
	received [][]byte
}

// NewServer starts a fake server in the background. Call Close when done.
func NewServer(opts Options) *Server {
	o := opts.withDefaults()
	s := &Server{
		opts:     o,
		sessions: make(map[string]*session),
	}
	r := mux.NewRouter()
	r.HandleFunc(o.Path, s.handle)
	s.http = httptest.NewServer(r)
	return s
}

// URL returns the base URL (scheme+host) clients should connect to.
func (s *Server) URL() string {
	return s.http.URL
}

// Close shuts down the underlying httptest.Server and every open
// websocket connection.
func (s *Server) Close() {
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.ws != nil {
			sess.ws.Close()
		}
		if sess.probeWS != nil {
			sess.probeWS.Close()
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()
	s.http.Close()
}

// PushEvent sends a server-initiated event to the given session's
// namespace, for tests that exercise unsolicited server events.
func (s *Server) PushEvent(sid, namespace, event string, args ...interface{}) error {
	sess := s.lookup(sid)
	if sess == nil {
		return fmt.Errorf("sockiotest: unknown session %q", sid)
	}
	payload := append([]interface{}{event}, args...)
	pkt := &codec.Packet{Type: codec.Event, Namespace: namespace, AckID: codec.NoAck, Payload: payload}
	return s.deliverSocketIOPacket(sess, pkt)
}

// CloseSession simulates a server-initiated disconnect: it sends an
// Engine.IO Close packet and tears down the session.
func (s *Server) CloseSession(sid string) {
	sess := s.lookup(sid)
	if sess == nil {
		return
	}
	s.deliverEngine(sess, engine.Packet{Type: engine.Close})
	s.mu.Lock()
	delete(s.sessions, sid)
	s.mu.Unlock()
}

func (s *Server) lookup(sid string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sid]
}

func (s *Server) newSession() *session {
	id := atomic.AddInt64(&s.nextSID, 1)
	sess := &session{
		sid:     fmt.Sprintf("sess-%d", id),
		pending: make(chan string, 64),
	}
	s.mu.Lock()
	s.sessions[sess.sid] = sess
	s.mu.Unlock()
	return sess
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	transport := q.Get("transport")
	sid := q.Get("sid")

	switch transport {
	case "polling":
		switch r.Method {
		case http.MethodGet:
			s.handlePollGet(w, r, sid)
		case http.MethodPost:
			s.handlePollPost(w, r, sid)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case "websocket":
		s.handleWebSocket(w, r, sid)
	default:
		http.Error(w, "unknown or missing transport", http.StatusBadRequest)
	}
}

func (s *Server) openPayload(sess *session) engine.Packet {
	upgrades := []string{}
	if s.opts.AllowUpgrade {
		upgrades = []string{"websocket"}
	}
	payload := engine.OpenPayload{
		SID:          sess.sid,
		Upgrades:     upgrades,
		PingInterval: int(s.opts.PingInterval / time.Millisecond),
		PingTimeout:  int(s.opts.PingTimeout / time.Millisecond),
	}
	body, _ := json.Marshal(payload)
	return engine.Packet{Type: engine.Open, Payload: string(body)}
}

func (s *Server) handlePollGet(w http.ResponseWriter, r *http.Request, sid string) {
	if sid == "" {
		sess := s.newSession()
		s.writeBatch(w, []engine.Packet{s.openPayload(sess)})
		return
	}

	sess := s.lookup(sid)
	if sess == nil {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}

	var frames []string
	select {
	case frame := <-sess.pending:
		frames = append(frames, frame)
	case <-time.After(s.opts.PollTimeout):
		s.writeRaw(w, "")
		return
	case <-r.Context().Done():
		return
	}
	draining := true
	for draining {
		select {
		case frame := <-sess.pending:
			frames = append(frames, frame)
		default:
			draining = false
		}
	}
	s.writeRaw(w, joinFrames(frames, s.opts.EIOVersion))
}

func (s *Server) handlePollPost(w http.ResponseWriter, r *http.Request, sid string) {
	sess := s.lookup(sid)
	if sess == nil {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
		return
	}

	packets, err := engine.DecodeBatch(string(body), s.opts.EIOVersion)
	if err != nil {
		http.Error(w, "bad batch: "+err.Error(), http.StatusBadRequest)
		return
	}
	for _, p := range packets {
		s.handleInboundEnginePacket(sess, p)
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, sid string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var sess *session
	isProbe := sid != ""
	if isProbe {
		sess = s.lookup(sid)
		if sess == nil {
			conn.Close()
			return
		}
		sess.mu.Lock()
		sess.probeWS = conn
		sess.mu.Unlock()
	} else {
		sess = s.newSession()
		sess.mu.Lock()
		sess.ws = conn
		sess.mu.Unlock()
		open := s.openPayload(sess)
		conn.WriteMessage(websocket.TextMessage, []byte(open.Encode()))
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			sess.mu.Lock()
			if sess.ws == conn {
				sess.ws = nil
			}
			if sess.probeWS == conn {
				sess.probeWS = nil
			}
			sess.mu.Unlock()
			return
		}
		if msgType == websocket.BinaryMessage {
			s.handleInboundBinary(sess, data)
			continue
		}
		p, perr := engine.DecodePacket(string(data))
		if perr != nil {
			continue
		}
		s.handleInboundWS(sess, conn, p)
	}
}

// handleInboundWS handles one frame arriving on a websocket connection,
// which may be the probe socket (expects "2probe" then the Upgrade ack) or
// the already-authoritative socket.
func (s *Server) handleInboundWS(sess *session, conn *websocket.Conn, p engine.Packet) {
	sess.mu.Lock()
	onProbe := sess.probeWS == conn
	sess.mu.Unlock()

	if onProbe {
		if p.Type == engine.Ping && p.Payload == engine.ProbePayload {
			conn.WriteMessage(websocket.TextMessage, []byte(engine.Packet{Type: engine.Pong, Payload: engine.ProbePayload}.Encode()))
		}
		if p.Type == engine.Upgrade {
			sess.mu.Lock()
			sess.ws = conn
			sess.probeWS = nil
			sess.mu.Unlock()
		}
		return
	}

	s.handleInboundEnginePacket(sess, p)
}

func (s *Server) handleInboundEnginePacket(sess *session, p engine.Packet) {
	switch p.Type {
	case engine.Ping:
		s.deliverEngine(sess, engine.Packet{Type: engine.Pong, Payload: p.Payload})
	case engine.Message:
		s.handleInboundMessage(sess, p.Payload)
	}
}

func (s *Server) handleInboundMessage(sess *session, payload string) {
	if data, ok := engine.DecodeBinaryFromPolling(payload); ok {
		s.handleInboundBinary(sess, data)
		return
	}

	sess.mu.Lock()
	stale := sess.reassemble
	sess.reassemble = nil
	sess.mu.Unlock()
	if stale != nil {
		return // new text frame interrupted a pending reassembly; drop it
	}

	_, binCount, err := codec.PeekHeader(payload, s.opts.ProtocolVersion)
	if err != nil {
		return
	}
	if binCount > 0 {
		sess.mu.Lock()
		sess.reassemble = &fixtureReassembly{text: payload, want: binCount}
		sess.mu.Unlock()
		return
	}

	pkt, err := codec.Decode(payload, nil, s.opts.ProtocolVersion)
	if err != nil {
		return
	}
	s.dispatchDecoded(sess, pkt)
}

// handleInboundBinary feeds one binary attachment into the session's
// in-progress reassembly, dispatching the completed packet once every
// declared attachment has arrived. Attachments may arrive as base64 polling
// frames or websocket binary frames; both paths route here.
func (s *Server) handleInboundBinary(sess *session, data []byte) {
	sess.mu.Lock()
	r := sess.reassemble
	sess.mu.Unlock()
	if r == nil {
		return
	}

	r.received = append(r.received, data)
	if len(r.received) < r.want {
		return
	}

	sess.mu.Lock()
	sess.reassemble = nil
	sess.mu.Unlock()

	pkt, err := codec.Decode(r.text, r.received, s.opts.ProtocolVersion)
	if err != nil {
		return
	}
	s.dispatchDecoded(sess, pkt)
}

func (s *Server) dispatchDecoded(sess *session, pkt *codec.Packet) {
	switch pkt.Type {
	case codec.Connect:
		ack := &codec.Packet{Type: codec.Connect, Namespace: pkt.Namespace, AckID: codec.NoAck, Payload: map[string]interface{}{"sid": sess.sid}}
		s.deliverSocketIOPacket(sess, ack)
	case codec.Disconnect:
		// no-op: the client tore down its own namespace state
	case codec.Event, codec.BinaryEvent:
		s.handleInboundEvent(sess, pkt)
	case codec.Ack, codec.BinaryAck:
		// this fixture never emits events requiring a client-side ack
	}
}

func (s *Server) handleInboundEvent(sess *session, pkt *codec.Packet) {
	name := pkt.EventName()
	args := pkt.EventArgs()

	if pkt.AckID == codec.NoAck {
		if s.opts.OnEvent != nil {
			s.opts.OnEvent(pkt.Namespace, name, args, codec.NoAck)
		}
		return
	}

	var ackArgs []interface{}
	sendAck := true
	if s.opts.OnEvent != nil {
		resp, ok := s.opts.OnEvent(pkt.Namespace, name, args, pkt.AckID)
		sendAck = ok
		ackArgs = resp
	}
	if !sendAck {
		return
	}
	ack := &codec.Packet{Type: codec.Ack, Namespace: pkt.Namespace, AckID: pkt.AckID, Payload: ackArgs}
	s.deliverSocketIOPacket(sess, ack)
}

func (s *Server) deliverSocketIOPacket(sess *session, pkt *codec.Packet) error {
	text, _, err := codec.Encode(pkt, s.opts.ProtocolVersion)
	if err != nil {
		return err
	}
	s.deliverEngine(sess, engine.Packet{Type: engine.Message, Payload: text})
	return nil
}

func (s *Server) deliverEngine(sess *session, p engine.Packet) {
	sess.mu.Lock()
	conn := sess.ws
	sess.mu.Unlock()
	if conn != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(p.Encode()))
		return
	}
	select {
	case sess.pending <- p.Encode():
	default:
	}
}

func (s *Server) writeBatch(w http.ResponseWriter, packets []engine.Packet) {
	s.writeRaw(w, engine.EncodeBatch(packets, s.opts.EIOVersion))
}

func (s *Server) writeRaw(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, body)
}

func joinFrames(frames []string, eioVersion int) string {
	packets := make([]engine.Packet, 0, len(frames))
	for _, f := range frames {
		p, err := engine.DecodePacket(f)
		if err != nil {
			continue
		}
		packets = append(packets, p)
	}
	return engine.EncodeBatch(packets, eioVersion)
}
