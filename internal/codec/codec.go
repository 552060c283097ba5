package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Encode serializes p into its text frame plus any binary frames that must
// follow it, per the `<type>[<bin_count>-][<namespace>,][<ack_id>]<payload>`
// wire grammar. It is pure and
// deterministic aside from whatever key order a map[string]interface{}
// payload happens to iterate in — callers who care about output key order
// should build payloads with *OrderedMap instead.
func Encode(p *Packet, version Version) (text string, binaries [][]byte, err error) {
	if !p.Type.valid() {
		return "", nil, fmt.Errorf("%w: %d", ErrUnknownType, p.Type)
	}

	tree, attachments := extractBinaries(p.Payload)
	binCount := len(attachments)

	effectiveType := p.Type
	if binCount > 0 {
		switch effectiveType {
		case Event:
			effectiveType = BinaryEvent
		case Ack:
			effectiveType = BinaryAck
		}
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(int(effectiveType)))

	if binCount > 0 {
		b.WriteString(strconv.Itoa(binCount))
		b.WriteByte('-')
	}

	if ns := p.namespace(); ns != "/" {
		b.WriteString(ns)
		b.WriteByte(',')
	}

	if p.AckID != NoAck {
		if p.AckID < 0 {
			return "", nil, ErrNegativeCount
		}
		b.WriteString(strconv.Itoa(p.AckID))
	}

	payloadJSON, err := marshalPayload(tree)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(payloadJSON)

	_ = version // header framing is identical across v2/v3/v4; see Version
	return b.String(), attachments, nil
}

// header is the parsed form of a text frame's
// `<type>[<bin_count>-][<namespace>,][<ack_id>]` prefix, with rest holding
// whatever follows (the payload JSON, possibly empty).
type header struct {
	typ       Type
	binCount  int
	namespace string
	ackID     int
	rest      string
}

// parseHeader parses text's header, leaving payload JSON in the returned
// header's rest field. It does no JSON parsing and requires no binary
// frames, so it is safe to call before those have been accumulated.
func parseHeader(text string, version Version) (header, error) {
	if text == "" {
		return header{}, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	typeDigit := text[0]
	if typeDigit < '0' || typeDigit > '9' {
		return header{}, fmt.Errorf("%w: leading byte %q is not a digit", ErrMalformedFrame, typeDigit)
	}
	typ := Type(int(typeDigit - '0'))
	if !typ.valid() {
		return header{}, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	rest := text[1:]

	binCount := 0
	if allowsBinCountField(typ, version) {
		if n, tail, ok := scanLeadingDigitsThen(rest, '-'); ok {
			if n < 0 {
				return header{}, ErrNegativeCount
			}
			binCount = n
			rest = tail
		}
	}

	namespace := "/"
	if strings.HasPrefix(rest, "/") {
		idx := strings.IndexByte(rest, ',')
		if idx < 0 {
			return header{}, fmt.Errorf("%w: namespace segment not terminated by ','", ErrMalformedFrame)
		}
		namespace = rest[:idx]
		rest = rest[idx+1:]
	}

	ackID := NoAck
	if n, tail, ok := scanLeadingDigits(rest); ok {
		if n < 0 {
			return header{}, ErrNegativeCount
		}
		ackID = n
		rest = tail
	}

	return header{typ: typ, binCount: binCount, namespace: namespace, ackID: ackID, rest: rest}, nil
}

// PeekHeader reports the packet type and declared attachment count for
// text without requiring any binary frames or parsing the JSON payload.
// The engine's reassembly context uses this to decide, on receiving the
// text frame, how many subsequent binary frames it must buffer before a
// full Decode is possible.
func PeekHeader(text string, version Version) (typ Type, binCount int, err error) {
	h, err := parseHeader(text, version)
	if err != nil {
		return 0, 0, err
	}
	return h.typ, h.binCount, nil
}

// Decode parses a text frame plus any binary frames already accumulated for
// it into a Packet. binaries must contain exactly the number of frames the
// text frame's bin_count declares — the engine's reassembly context is
// responsible for buffering them before calling Decode.
func Decode(text string, binaries [][]byte, version Version) (*Packet, error) {
	h, err := parseHeader(text, version)
	if err != nil {
		return nil, err
	}
	typ, binCount, namespace, ackID, rest := h.typ, h.binCount, h.namespace, h.ackID, h.rest

	if len(binaries) != binCount {
		return nil, fmt.Errorf("%w: frame declares %d attachments, got %d", ErrAttachmentMismatch, binCount, len(binaries))
	}

	var decoded interface{}
	if rest != "" {
		if err := json.Unmarshal([]byte(rest), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	}

	if binCount > 0 {
		injected, err := injectBinaries(decoded, binaries)
		if err != nil {
			return nil, err
		}
		decoded = injected
	}

	return &Packet{
		Type:        typ,
		Namespace:   namespace,
		AckID:       ackID,
		Payload:     decoded,
		Attachments: binaries,
	}, nil
}

// allowsBinCountField reports whether a bin_count-prefixed field may appear
// for typ under version. v3/v4 only recognize it on the two binary types;
// v2 servers sometimes stamp it on plain Event/Ack frames too.
func allowsBinCountField(typ Type, version Version) bool {
	if typ.IsBinary() {
		return true
	}
	return version == V2 && (typ == Event || typ == Ack)
}

// scanLeadingDigits parses a run of ASCII digits at the start of s. It
// returns the parsed value, the remainder of s, and whether any digit was
// found.
func scanLeadingDigits(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}

// scanLeadingDigitsThen is like scanLeadingDigits but additionally requires
// the digit run be followed immediately by sep, consuming sep too. Absent
// that, it reports no match and leaves s untouched.
func scanLeadingDigitsThen(s string, sep byte) (int, string, bool) {
	n, tail, ok := scanLeadingDigits(s)
	if !ok || tail == "" || tail[0] != sep {
		return 0, s, false
	}
	return n, tail[1:], true
}

// DetectConnectVersion inspects the JSON immediately following a Connect
// packet's header to guess which protocol revision produced it: a leading
// '[' indicates v2 (payload `[namespace, auth]`), a leading '{' indicates
// v3/v4 (payload `{"auth":...,"query":...}`). This is an operator
// diagnostic only — the session's protocol version is fixed at
// configuration time and this heuristic must never change it mid-session.
func DetectConnectVersion(payloadJSON string) (Version, bool) {
	trimmed := strings.TrimSpace(payloadJSON)
	if trimmed == "" {
		return 0, false
	}
	switch trimmed[0] {
	case '[':
		return V2, true
	case '{':
		return V3, true
	default:
		return 0, false
	}
}

// ConnectPayloadV2 builds the `[namespace, auth]` Connect payload used by
// protocol v2.
func ConnectPayloadV2(namespace string, auth interface{}) interface{} {
	return []interface{}{namespace, auth}
}

// ConnectPayloadV3 builds the `{"auth":...,"query":...}` Connect payload
// used by protocol v3/v4.
func ConnectPayloadV3(auth, query interface{}) interface{} {
	obj := NewObject()
	if auth != nil {
		obj.Set("auth", auth)
	}
	if query != nil {
		obj.Set("query", query)
	}
	return obj
}
