// Package engine implements the Engine.IO transport state machine: opening
// a session via HTTP long-polling, negotiating an upgrade to WebSocket with
// a probe handshake, and maintaining heartbeat liveness.
package engine

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PacketType is the single ASCII-digit type byte that leads every
// Engine.IO packet.
type PacketType int

const (
	Open PacketType = iota
	Close
	Ping
	Pong
	Message
	Upgrade
	Noop
)

func (t PacketType) valid() bool { return t >= Open && t <= Noop }

func (t PacketType) String() string {
	switch t {
	case Open:
		return "OPEN"
	case Close:
		return "CLOSE"
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	case Message:
		return "MESSAGE"
	case Upgrade:
		return "UPGRADE"
	case Noop:
		return "NOOP"
	default:
		return fmt.Sprintf("PacketType(%d)", int(t))
	}
}

// ProbePayload is the literal payload carried by the probe Ping/Pong
// exchange that validates a websocket before switching authoritative
// transport to it.
const ProbePayload = "probe"

// Packet is one Engine.IO-layer frame: a type digit plus an opaque string
// payload. Socket.IO packets travel inside Packets of type Message.
type Packet struct {
	Type    PacketType
	Payload string
}

// Encode renders p as the wire text form `<type><payload>`.
func (p Packet) Encode() string {
	return strconv.Itoa(int(p.Type)) + p.Payload
}

// DecodePacket parses a single Engine.IO text frame.
func DecodePacket(text string) (Packet, error) {
	if text == "" {
		return Packet{}, fmt.Errorf("%w: empty engine frame", ErrMalformedFrame)
	}
	d := text[0]
	if d < '0' || d > '9' {
		return Packet{}, fmt.Errorf("%w: leading byte %q is not a digit", ErrMalformedFrame, d)
	}
	t := PacketType(int(d - '0'))
	if !t.valid() {
		return Packet{}, fmt.Errorf("%w: %d", ErrUnknownPacketType, t)
	}
	return Packet{Type: t, Payload: text[1:]}, nil
}

// OpenPayload is the JSON object carried by the handshake Open packet.
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

// --- Polling batch framing -------------------------------------------------
//
// Engine.IO v3 batches multiple packets in one HTTP body by prefixing each
// with its UTF-16 code-unit length in ASCII decimal followed by ':'. Binary
// packets are base64-encoded with a leading 'b'. v4 instead separates
// packets in the body with the ASCII Record Separator (0x1e) and never
// base64-encodes text frames inside a single HTTP exchange (a binary frame
// polled in the same batch is still base64-encoded with a leading 'b', as
// the HTTP body is a single string).

const v4RecordSeparator = "\x1e"

// EncodeBatch renders packets as one HTTP polling request/response body for
// the given Engine.IO major version (3 or 4).
func EncodeBatch(packets []Packet, eioVersion int) string {
	switch eioVersion {
	case 3:
		var b strings.Builder
		for _, p := range packets {
			s := p.Encode()
			fmt.Fprintf(&b, "%d:%s", utf16Len(s), s)
		}
		return b.String()
	default:
		parts := make([]string, len(packets))
		for i, p := range packets {
			parts[i] = p.Encode()
		}
		return strings.Join(parts, v4RecordSeparator)
	}
}

// DecodeBatch splits a polling HTTP body into its constituent Engine.IO
// packets for the given Engine.IO major version.
func DecodeBatch(body string, eioVersion int) ([]Packet, error) {
	if body == "" {
		return nil, nil
	}
	switch eioVersion {
	case 3:
		return decodeLengthPrefixedBatch(body)
	default:
		parts := strings.Split(body, v4RecordSeparator)
		packets := make([]Packet, 0, len(parts))
		for _, part := range parts {
			if part == "" {
				continue
			}
			p, err := DecodePacket(part)
			if err != nil {
				return nil, err
			}
			packets = append(packets, p)
		}
		return packets, nil
	}
}

func decodeLengthPrefixedBatch(body string) ([]Packet, error) {
	var packets []Packet
	for len(body) > 0 {
		idx := strings.IndexByte(body, ':')
		if idx < 0 {
			return nil, fmt.Errorf("%w: missing length prefix separator", ErrMalformedFrame)
		}
		n, err := strconv.Atoi(body[:idx])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid length prefix", ErrMalformedFrame)
		}
		body = body[idx+1:]
		units := utf16Units(body)
		if n > len(units) {
			return nil, fmt.Errorf("%w: length prefix %d exceeds remaining body", ErrMalformedFrame, n)
		}
		frame := string(utf16ToString(units[:n]))
		rest := string(utf16ToString(units[n:]))
		p, err := DecodePacket(frame)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		body = rest
	}
	return packets, nil
}

// utf16Len returns s's length measured in UTF-16 code units, as the v3
// length-prefix framing requires.
func utf16Len(s string) int {
	return len(utf16Units(s))
}

// EncodeBinaryForPolling base64-encodes a binary attachment for inclusion
// in a polling batch, with the leading 'b' marker the protocol requires so
// the reader can tell it apart from a text frame.
func EncodeBinaryForPolling(data []byte) string {
	return "b" + base64.StdEncoding.EncodeToString(data)
}

// DecodeBinaryFromPolling reverses EncodeBinaryForPolling.
func DecodeBinaryFromPolling(frame string) ([]byte, bool) {
	if !strings.HasPrefix(frame, "b") {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(frame[1:])
	if err != nil {
		return nil, false
	}
	return data, true
}
