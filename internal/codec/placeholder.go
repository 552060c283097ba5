package codec

import "fmt"

// extractBinaries walks payload in depth-first pre-order, replacing every
// []byte leaf with a Placeholder carrying its zero-based index in traversal
// order, and returns the extracted blobs in that same order. The returned
// tree is safe to marshal to JSON; it never contains a raw []byte.
func extractBinaries(payload interface{}) (interface{}, [][]byte) {
	var attachments [][]byte
	out := walkExtract(payload, &attachments)
	return out, attachments
}

func walkExtract(v interface{}, attachments *[][]byte) interface{} {
	switch t := v.(type) {
	case []byte:
		idx := len(*attachments)
		*attachments = append(*attachments, t)
		return &Placeholder{Num: idx}
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = walkExtract(e, attachments)
		}
		return out
	case *OrderedMap:
		out := NewObject()
		for _, k := range t.keys {
			val, _ := t.Get(k)
			out.Set(k, walkExtract(val, attachments))
		}
		return out
	case map[string]interface{}:
		// Plain maps have no defined key order; still walked so any binary
		// values nested inside are extracted, in whatever order Go's map
		// iteration happens to produce for this one call.
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = walkExtract(e, attachments)
		}
		return out
	default:
		return v
	}
}

// injectBinaries walks decoded, replacing every placeholder object with the
// attachment at its num index. It returns an error if a placeholder index
// falls outside [0, len(attachments)) or if any attachment goes unused.
func injectBinaries(decoded interface{}, attachments [][]byte) (interface{}, error) {
	used := make([]bool, len(attachments))
	out, err := walkInject(decoded, attachments, used)
	if err != nil {
		return nil, err
	}
	for i, u := range used {
		if !u {
			return nil, fmt.Errorf("%w: attachment %d has no matching placeholder", ErrAttachmentMismatch, i)
		}
	}
	return out, nil
}

func walkInject(v interface{}, attachments [][]byte, used []bool) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		if idx, ok := asPlaceholder(t); ok {
			if idx < 0 || idx >= len(attachments) {
				return nil, fmt.Errorf("%w: placeholder num %d out of range [0,%d)", ErrPlaceholderOutOfRange, idx, len(attachments))
			}
			if used[idx] {
				return nil, fmt.Errorf("%w: placeholder num %d used twice", ErrPlaceholderOutOfRange, idx)
			}
			used[idx] = true
			return attachments[idx], nil
		}
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			nv, err := walkInject(e, attachments, used)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			nv, err := walkInject(e, attachments, used)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}
