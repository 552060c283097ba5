package sockio

import "fmt"

// Status is the client's connection lifecycle state.
type Status int

const (
	NotConnected Status = iota
	Connecting
	Opened
	Connected
	Disconnected
)

func (s Status) String() string {
	switch s {
	case NotConnected:
		return "not_connected"
	case Connecting:
		return "connecting"
	case Opened:
		return "opened"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
