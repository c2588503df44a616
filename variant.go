package bencode

import (
	"github.com/torrentkit/bencode/wire"
)

// A Variant is a tagged value, the bencode rendering of a sum type.
//
// A Variant with a nil Value is a unit variant and encodes as the
// bare tag string. A Variant with a non-nil Value encodes as a
// single-entry dictionary mapping the tag to the encoded payload.
// Decoding inverts this: a byte string becomes a unit Variant, and a
// single-entry dictionary becomes a Variant whose Value holds the
// payload's document model.
//
// Variant does not itself restrict the tag set. Bindings that accept
// only certain tags should wrap Variant (or implement [Marshaler] and
// [Unmarshaler] directly) and report unexpected tags as an
// UnknownVariant error.
type Variant struct {
	Tag   string
	Value any
}

func (v Variant) MarshalBencode(e *wire.Encoder) error {
	if v.Value == nil {
		e.String(v.Tag)
		return nil
	}
	// The dict envelope is built by hand rather than through
	// Encoder.Dict: there is exactly one entry, so there is nothing to
	// sort, and the payload must be written even when it encodes to
	// zero bytes.
	e.Write([]byte{'d'})
	e.String(v.Tag)
	mark := len(e.Out)
	if err := e.Value(v.Value); err != nil {
		return err
	}
	if len(e.Out) == mark {
		// A payload that encodes to nothing (a nil pointer) would
		// leave the tag key with no value.
		return wire.NewError(wire.InvalidValue, "variant %q payload encoded to nothing", v.Tag)
	}
	e.Write([]byte{'e'})
	return nil
}

func (v *Variant) UnmarshalBencode(d *wire.Decoder) error {
	t, err := d.Peek()
	if err != nil {
		return err
	}
	switch t.Kind {
	case wire.ByteString:
		tag, err := d.String()
		if err != nil {
			return err
		}
		v.Tag, v.Value = tag, nil
		return nil
	case wire.DictStart:
		d.Next()
		tag, err := d.String()
		if err != nil {
			return err
		}
		payload, err := decodeValue(d)
		if err != nil {
			return err
		}
		if err := d.End(); err != nil {
			return err
		}
		v.Tag, v.Value = tag, payload
		return nil
	}
	return wire.NewError(wire.InvalidValue, "expected variant tag or single-entry dict, got %s", t.Kind)
}
