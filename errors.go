package sockio

import "errors"

var (
	// ErrNotConnected is returned by operations that require Connected
	// status and are not willing to buffer (none currently; reserved for
	// callers building stricter emit variants on top of Client).
	ErrNotConnected = errors.New("sockio: not connected")

	// ErrClosed names the closed-client condition. No Client method
	// returns it: calls made after Close are dropped without an error.
	ErrClosed = errors.New("sockio: client closed")

	// ErrDuplicateHandle is returned when a handler handle collides, which
	// should never happen with the built-in allocator; exported so a
	// custom handle source can signal the same failure.
	ErrDuplicateHandle = errors.New("sockio: duplicate handler handle")

	// ErrReconnectAttemptsExceeded names the condition of reconnection
	// attempts being exhausted. The Client does not return or deliver it;
	// when the attempts run out it logs the fact and stays Disconnected.
	ErrReconnectAttemptsExceeded = errors.New("sockio: reconnection attempts exceeded")
)
