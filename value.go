package bencode

import (
	"sort"

	"github.com/torrentkit/bencode/wire"
)

// A Value is a bencode value of unknown shape: an [Integer], [Bytes],
// [List] or [Dict]. Decoding into a Value (or into an untyped any)
// builds the document model of the input, which is useful for
// schema-less inspection and for round-tripping documents whose shape
// isn't known ahead of time.
//
// Marshaling a Value produces canonical bytes, so a decode/encode
// round trip through Value is a canonicalizer: it reorders dictionary
// keys but preserves everything else.
type Value interface {
	isValue()
}

// Integer is a [Value] holding a bencode integer.
type Integer int64

// Bytes is a [Value] holding a bencode byte string.
type Bytes []byte

// List is a [Value] holding a bencode list.
type List []Value

// Dict is a [Value] holding a bencode dictionary. Keys are the raw
// key bytes, stored as strings; a Dict key is not required to be
// valid UTF-8.
type Dict map[string]Value

func (Integer) isValue() {}
func (Bytes) isValue()   {}
func (List) isValue()    {}
func (Dict) isValue()    {}

// Keys returns the dictionary's keys in canonical order, sorted
// ascending by raw bytes.
func (v Dict) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeValue decodes data into the [Value] document model.
func DecodeValue(data []byte) (Value, error) {
	var v Value
	if err := Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeValue reads one value of any shape from d. Aggregates come
// back non-nil even when empty, so that re-encoding an empty list or
// dict reproduces it instead of dropping it.
func decodeValue(d *wire.Decoder) (Value, error) {
	t, err := d.Peek()
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case wire.Integer:
		i, err := d.Int()
		if err != nil {
			return nil, err
		}
		return Integer(i), nil
	case wire.ByteString:
		bs, err := d.Bytes()
		if err != nil {
			return nil, err
		}
		return Bytes(bs), nil
	case wire.ListStart:
		ret := List{}
		_, err := d.List(func(int) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			ret = append(ret, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ret, nil
	case wire.DictStart:
		ret := Dict{}
		err := d.Dict(func(key []byte) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			ret[string(key)] = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ret, nil
	}
	// End marker in value position: the enclosing aggregate closed.
	d.Next()
	return nil, wire.NewError(wire.EndOfStream, "end of stream")
}
