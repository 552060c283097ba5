package engine

import (
	"errors"
	"fmt"

	"github.com/duskport/sockio/internal/codec"
)

// dispatchEnginePacket handles one decoded Engine.IO-layer packet, arriving
// from either the polling or websocket transport.
func (e *Engine) dispatchEnginePacket(p Packet) {
	switch p.Type {
	case Open:
		e.onOpenPacket(p)
	case Close:
		e.onServerClose()
	case Ping:
		// A server-initiated ping (older Engine.IO servers) is answered
		// immediately; it does not affect the client-driven heartbeat.
		e.writeEnginePacket(Packet{Type: Pong, Payload: p.Payload})
	case Pong:
		e.onPongReceived()
	case Message:
		e.onMessageFrame(p.Payload)
	case Upgrade:
		// Server acknowledgement of the client's upgrade notice; no action.
	case Noop:
		// Used to terminate a long poll with nothing to deliver.
	}
}

// onWSText handles a text frame from the websocket transport, whose
// interpretation depends on which phase the transport is in: a probe reply
// while Probing, or an ordinary frame once authoritative.
func (e *Engine) onWSText(text string) {
	switch e.state {
	case StateProbing:
		e.onProbeFrame(text)
	case StateOpening, StateOpenWebSocket, StateClosing:
		e.onTransportFrame(text)
	}
}

func (e *Engine) onWSBinary(data []byte) {
	switch e.state {
	case StateOpening, StateOpenWebSocket, StateClosing:
		e.onBinaryFrame(data)
	}
}

func (e *Engine) onWSClosed(reason string) {
	switch e.state {
	case StateProbing:
		e.onProbeFailed(errors.New(reason))
	case StateOpening:
		e.fail(fmt.Errorf("%w: %s", ErrHandshakeFailed, reason))
	case StateOpenWebSocket:
		e.fail(fmt.Errorf("sockio/engine: websocket closed: %s", reason))
	}
}

func (e *Engine) onTransportFrame(text string) {
	p, err := DecodePacket(text)
	if err != nil {
		e.emitError(err)
		return
	}
	e.dispatchEnginePacket(p)
}

// onMessageFrame handles a Message packet's payload: either a base64 binary
// attachment (polling only), the continuation of an in-progress binary
// reassembly being interrupted by a new text frame (a protocol violation),
// or a Socket.IO text frame to decode and, if it declares attachments,
// start reassembling.
func (e *Engine) onMessageFrame(payload string) {
	if data, ok := DecodeBinaryFromPolling(payload); ok {
		e.onBinaryFrame(data)
		return
	}

	if e.reassemble.pending() {
		e.emitError(fmt.Errorf("%w: new message while awaiting %d more binary frame(s)",
			ErrMalformedFrame, e.reassemble.want-len(e.reassemble.received)))
		e.reassemble = nil
	}

	_, binCount, err := codec.PeekHeader(payload, e.cfg.ProtocolVersion)
	if err != nil {
		e.emitError(err)
		return
	}

	if binCount > 0 {
		e.reassemble = &reassembly{text: payload, want: binCount}
		return
	}

	pkt, err := codec.Decode(payload, nil, e.cfg.ProtocolVersion)
	if err != nil {
		e.emitError(err)
		return
	}
	e.deliverPacket(pkt)
}

func (e *Engine) onBinaryFrame(data []byte) {
	if !e.reassemble.pending() {
		e.emitError(ErrUnexpectedBinary)
		return
	}
	if !e.reassemble.addBinary(data) {
		return
	}
	pkt, err := e.reassemble.decodeComplete(e.cfg.ProtocolVersion)
	e.reassemble = nil
	if err != nil {
		e.emitError(err)
		return
	}
	e.deliverPacket(pkt)
}

func (e *Engine) deliverPacket(pkt *codec.Packet) {
	if e.handler.OnPacket != nil {
		e.handler.OnPacket(pkt)
	}
}
