package engine

import "github.com/duskport/sockio/internal/codec"

// reassembly holds the in-progress state for a Socket.IO binary packet:
// the decoded text frame plus a counter of expected binary frames and the
// buffer of binaries received so far. While one is active, no other
// Socket.IO packet may be delivered to the client layer (§3 invariant).
type reassembly struct {
	text      string
	want      int
	received  [][]byte
}

func (r *reassembly) pending() bool { return r != nil }

func (r *reassembly) addBinary(data []byte) (complete bool) {
	r.received = append(r.received, data)
	return len(r.received) >= r.want
}

// decodeComplete decodes the fully-reassembled frame once enough binary
// frames have arrived.
func (r *reassembly) decodeComplete(version codec.Version) (*codec.Packet, error) {
	return codec.Decode(r.text, r.received, version)
}
