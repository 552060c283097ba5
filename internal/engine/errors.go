package engine

import "errors"

var (
	// ErrMalformedFrame is returned for an Engine.IO frame that does not
	// match the `<type><payload>` grammar, or a batch that violates its
	// version's framing.
	ErrMalformedFrame = errors.New("sockio/engine: malformed frame")

	// ErrUnknownPacketType is returned for a type digit outside 0-6.
	ErrUnknownPacketType = errors.New("sockio/engine: unknown packet type")

	// ErrHandshakeFailed covers a non-200 status, network error, or
	// malformed Open payload during the Opening state.
	ErrHandshakeFailed = errors.New("sockio/engine: handshake failed")

	// ErrPingTimeout is the reason attached when two consecutive Pongs are
	// missed.
	ErrPingTimeout = errors.New("sockio/engine: ping timeout")

	// ErrClosed is returned by operations attempted after the engine has
	// transitioned to Closed.
	ErrClosed = errors.New("sockio/engine: closed")

	// ErrUnexpectedBinary is returned when a binary frame arrives while no
	// packet is being reassembled.
	ErrUnexpectedBinary = errors.New("sockio/engine: unexpected binary frame with no pending reassembly")
)
