// Package codec implements the versioned Socket.IO packet framing (protocol
// revisions v2, v3, v4) on top of the Engine.IO transport, including the
// binary-attachment protocol that splits a logical message into one text
// frame carrying placeholder markers plus N binary frames delivered in
// order.
package codec

import "fmt"

// Type is a Socket.IO packet type, the single digit that leads every text
// frame.
type Type int

const (
	Connect Type = iota
	Disconnect
	Event
	Ack
	ConnectError
	BinaryEvent
	BinaryAck
)

func (t Type) String() string {
	switch t {
	case Connect:
		return "CONNECT"
	case Disconnect:
		return "DISCONNECT"
	case Event:
		return "EVENT"
	case Ack:
		return "ACK"
	case ConnectError:
		return "CONNECT_ERROR"
	case BinaryEvent:
		return "BINARY_EVENT"
	case BinaryAck:
		return "BINARY_ACK"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

func (t Type) valid() bool {
	return t >= Connect && t <= BinaryAck
}

// IsBinary reports whether t carries attachments (BinaryEvent or BinaryAck).
func (t Type) IsBinary() bool {
	return t == BinaryEvent || t == BinaryAck
}

// Version is a Socket.IO protocol revision. The wire framing for headers is
// identical across revisions; what differs is the Connect payload shape and
// v2's tolerance for a bin_count field on non-binary packet types.
type Version int

const (
	V2 Version = iota
	V3
	V4
)

// NoAck is the AckID value meaning "no acknowledgement requested".
const NoAck = -1

// Packet is one Socket.IO-layer message.
//
// Attachments holds the binary frames that travelled with the packet.
// Encode does not read it: it takes the frames from the []byte leaves of
// Payload, numbering their placeholders 0..n-1 in traversal order. Decode
// fills it with the frames it was given and also puts each frame back into
// Payload in place of its placeholder, rejecting any index outside
// 0..len-1, any index claimed twice, and any frame left unclaimed.
type Packet struct {
	Type        Type
	Namespace   string // "/" if unset
	AckID       int    // NoAck if absent
	Payload     interface{}
	Attachments [][]byte
}

// namespace returns p.Namespace, defaulting to "/".
func (p *Packet) namespace() string {
	if p.Namespace == "" {
		return "/"
	}
	return p.Namespace
}

// String renders a short human-readable summary of p, for log lines and
// test failure messages. It is never used for wire encoding.
func (p *Packet) String() string {
	ack := "-"
	if p.AckID != NoAck {
		ack = fmt.Sprintf("%d", p.AckID)
	}
	return fmt.Sprintf("%s ns=%s ack=%s attachments=%d", p.Type, p.namespace(), ack, len(p.Attachments))
}

// EventName returns the first element of an Event/BinaryEvent packet's
// payload array, or "" if the payload is not shaped that way.
func (p *Packet) EventName() string {
	arr, ok := p.Payload.([]interface{})
	if !ok || len(arr) == 0 {
		return ""
	}
	name, _ := arr[0].(string)
	return name
}

// EventArgs returns the elements of an Event/BinaryEvent/Ack/BinaryAck
// packet's payload array after the first (for events) or all of them (for
// acks), whichever p.Type implies.
func (p *Packet) EventArgs() []interface{} {
	arr, ok := p.Payload.([]interface{})
	if !ok {
		return nil
	}
	switch p.Type {
	case Event, BinaryEvent:
		if len(arr) == 0 {
			return nil
		}
		return arr[1:]
	default:
		return arr
	}
}
