package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderedMap is a JSON object that remembers the order keys were set in.
// It exists because the binary-attachment protocol (see placeholder.go)
// assigns attachment indices by a depth-first pre-order walk of the payload
// tree, and Go's builtin map has no stable iteration order. Application
// code that builds event payloads containing more than one key, where the
// serialized key order matters to a reader, should use an OrderedMap
// instead of map[string]interface{}.
type OrderedMap struct {
	keys   []string
	values map[string]interface{}
}

// NewObject returns an empty, ordered JSON object.
func NewObject() *OrderedMap {
	return &OrderedMap{values: make(map[string]interface{})}
}

// Set assigns key to val, appending key to the iteration order if it is
// new. It returns the receiver so calls can be chained.
func (o *OrderedMap) Set(key string, val interface{}) *OrderedMap {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = val
	return o
}

// Get returns the value stored under key, if any.
func (o *OrderedMap) Get(key string) (interface{}, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the object's keys in insertion order.
func (o *OrderedMap) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys in the object.
func (o *OrderedMap) Len() int {
	return len(o.keys)
}

// MarshalJSON writes the object with its keys in insertion order.
func (o *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalValue(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalValue marshals v, recursing through OrderedMap and []interface{}
// so nested ordered objects keep their order in the output.
func marshalValue(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case *OrderedMap:
		return t.MarshalJSON()
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := marshalValue(e)
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case *Placeholder:
		return json.Marshal(t)
	default:
		return json.Marshal(v)
	}
}

// Placeholder is the marker object `{"_placeholder":true,"num":i}` that
// stands in for a binary attachment during encoding.
type Placeholder struct {
	Num int
}

type placeholderWire struct {
	Placeholder bool `json:"_placeholder"`
	Num         int  `json:"num"`
}

func (p *Placeholder) MarshalJSON() ([]byte, error) {
	return json.Marshal(placeholderWire{Placeholder: true, Num: p.Num})
}

// asPlaceholder reports whether decoded carries the two placeholder keys
// and, if so, returns its index. Any other object shape (including one that
// merely happens to have a "num" field) is not a placeholder.
func asPlaceholder(decoded interface{}) (int, bool) {
	m, ok := decoded.(map[string]interface{})
	if !ok || len(m) != 2 {
		return 0, false
	}
	flag, ok := m["_placeholder"]
	if !ok {
		return 0, false
	}
	if b, ok := flag.(bool); !ok || !b {
		return 0, false
	}
	numVal, ok := m["num"]
	if !ok {
		return 0, false
	}
	f, ok := numVal.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// marshalPayload serializes a payload tree (built from nil, bool, numbers,
// strings, []interface{}, map[string]interface{}, and *OrderedMap) to its
// JSON text.
func marshalPayload(payload interface{}) (string, error) {
	if payload == nil {
		return "", nil
	}
	b, err := marshalValue(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling payload: %w", err)
	}
	return string(b), nil
}
