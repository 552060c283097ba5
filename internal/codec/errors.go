package codec

import "errors"

var (
	// ErrMalformedFrame is returned when a text frame's header does not
	// match the `<type>[<bin_count>-][<namespace>,][<ack_id>]<payload>`
	// grammar at all.
	ErrMalformedFrame = errors.New("sockio/codec: malformed frame")

	// ErrUnknownType is returned for a type digit outside 0-6.
	ErrUnknownType = errors.New("sockio/codec: unknown packet type")

	// ErrNegativeCount is returned when a bin_count or ack_id field parses
	// to a negative number.
	ErrNegativeCount = errors.New("sockio/codec: negative count field")

	// ErrAttachmentMismatch is returned when the number of binary frames
	// supplied to Decode does not match every placeholder being claimed.
	ErrAttachmentMismatch = errors.New("sockio/codec: attachment count mismatch")

	// ErrPlaceholderOutOfRange is returned when a placeholder's num field
	// falls outside [0, bin_count) or is claimed more than once.
	ErrPlaceholderOutOfRange = errors.New("sockio/codec: placeholder index out of range")

	// ErrUnexpectedBinary is returned when a binary frame arrives while no
	// packet is being reassembled.
	ErrUnexpectedBinary = errors.New("sockio/codec: unexpected binary frame")
)
