package bencode

import (
	"math"
	"reflect"
	"sync"
	"unicode/utf8"

	"github.com/torrentkit/bencode/wire"
)

// Marshal returns the canonical bencode encoding of v.
//
// Marshal traverses the value v recursively. If an encountered value
// implements [Marshaler], Marshal calls MarshalBencode on it to
// produce its encoding.
//
// Otherwise, Marshal uses the following type-dependent default
// encodings:
//
// Integer values of any width and signedness encode as bencode
// integers. Unsigned values above the int64 range are an InvalidValue
// error, the format carries 64-bit signed integers only. Booleans
// encode as the integers 0 and 1.
//
// Float values cannot be encoded: bencode has no floating point
// representation, and truncating would break round-tripping. Marshal
// returns an InvalidValue error rather than guessing.
//
// String and []byte values encode as byte strings. [N]byte values
// encode as byte strings of length N.
//
// Slice and array values encode as lists. A nil slice encodes the
// same as an empty one.
//
// Map values encode as dictionaries. The map's key underlying type
// must be a string. Entries are emitted sorted by raw key bytes.
//
// Struct values encode as dictionaries keyed by field name, or by the
// name in the field's `bencode:"name"` tag. Embedded struct fields
// are encoded as if their inner exported fields were fields in the
// outer struct, subject to the usual Go visibility rules. Fields
// tagged `bencode:"-"` are dropped, and fields with the ",omitempty"
// option are dropped when they hold their type's zero value. Since
// dictionary entries are sorted on the wire, declaration order is
// irrelevant: two structs with the same fields encode identically.
//
// Pointer values encode as the value pointed to. A nil pointer
// encodes nothing at all; in a dictionary, the entry is dropped.
// This is how optional fields stay off the wire entirely instead of
// appearing as explicit nulls.
//
// [Value] trees encode by these same rules: Integer, Bytes, List and
// Dict are ordinary integer, byte string, slice and map types
// underneath. [Variant] values encode through their Marshaler
// implementation.
//
// Complex, channel, and function values cannot be encoded.
// Attempting to encode such values causes Marshal to return an
// InvalidType error.
func Marshal(v any) ([]byte, error) {
	e := wire.Encoder{Mapper: encoderFor}
	if err := e.Value(v); err != nil {
		return nil, err
	}
	return e.Out, nil
}

// MarshalString is like [Marshal], but returns the encoding as a
// string. It returns an InvalidValue error if the encoded bytes are
// not valid UTF-8.
func MarshalString(v any) (string, error) {
	bs, err := Marshal(v)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(bs) {
		return "", wire.NewError(wire.InvalidValue, "encoded value is not valid UTF-8")
	}
	return string(bs), nil
}

// Marshaler is the interface implemented by types that can marshal
// themselves to the bencode wire format.
//
// MarshalBencode must write exactly one value to the encoder. It may
// write nothing at all, which in a dictionary context means the
// value is absent and its entry is dropped.
type Marshaler interface {
	MarshalBencode(e *wire.Encoder) error
}

var marshalerType = reflect.TypeFor[Marshaler]()

var encoders codecCache[wire.EncoderFunc]

// encoderFor returns the encoder func for the given type, if the type
// is representable in the bencode wire format.
func encoderFor(t reflect.Type) (wire.EncoderFunc, error) {
	if ent, ok := encoders.load(t); ok {
		return ent.fn, ent.err
	}
	// Publish a forward reference before compiling, so that a
	// self-referential type resolves through the cache when a value
	// of it is actually encoded.
	var (
		wg  sync.WaitGroup
		ent codecEntry[wire.EncoderFunc]
	)
	wg.Add(1)
	forward := codecEntry[wire.EncoderFunc]{fn: func(e *wire.Encoder, v reflect.Value) error {
		wg.Wait()
		if ent.err != nil {
			return ent.err
		}
		return ent.fn(e, v)
	}}
	if prev, loaded := encoders.loadOrStore(t, forward); loaded {
		return prev.fn, prev.err
	}
	ent.fn, ent.err = newTypeEncoder(t)
	wg.Done()
	encoders.store(t, ent)
	return ent.fn, ent.err
}

func newTypeEncoder(t reflect.Type) (wire.EncoderFunc, error) {
	// If a value's pointer type implements Marshaler, we can avoid a
	// value copy by using it. But we can only use it for addressable
	// values, which requires an additional runtime check.
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(marshalerType) {
		return newCondAddrMarshalEncoder(t), nil
	} else if t.Implements(marshalerType) {
		return newMarshalEncoder(), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		return newPtrEncoder(t)
	case reflect.Bool:
		return newBoolEncoder(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return newIntEncoder(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return newUintEncoder(), nil
	case reflect.Float32, reflect.Float64:
		return nil, wire.NewError(wire.InvalidValue, "bencode has no floating point representation, can't encode %s", t)
	case reflect.String:
		return newStringEncoder(), nil
	case reflect.Slice, reflect.Array:
		return newSliceEncoder(t)
	case reflect.Struct:
		return newStructEncoder(t)
	case reflect.Map:
		return newMapEncoder(t)
	case reflect.Interface:
		return newInterfaceEncoder(), nil
	}
	return nil, typeErr(t, "no bencode mapping for type")
}

func newCondAddrMarshalEncoder(t reflect.Type) wire.EncoderFunc {
	ptr := newMarshalEncoder()
	if t.Implements(marshalerType) {
		val := newMarshalEncoder()
		return func(e *wire.Encoder, v reflect.Value) error {
			if v.CanAddr() {
				return ptr(e, v.Addr())
			}
			return val(e, v)
		}
	}
	return func(e *wire.Encoder, v reflect.Value) error {
		if !v.CanAddr() {
			return typeErr(t, "Marshaler is only implemented on pointer receiver, and cannot take the address of given value")
		}
		return ptr(e, v.Addr())
	}
}

func newMarshalEncoder() wire.EncoderFunc {
	return func(e *wire.Encoder, v reflect.Value) error {
		m := v.Interface().(Marshaler)
		return m.MarshalBencode(e)
	}
}

func newPtrEncoder(t reflect.Type) (wire.EncoderFunc, error) {
	elemEnc, err := encoderFor(t.Elem())
	if err != nil {
		return nil, err
	}
	fn := func(e *wire.Encoder, v reflect.Value) error {
		if v.IsNil() {
			// Absent optional value: write nothing, the enclosing
			// dictionary scope drops zero-length entries.
			return nil
		}
		return elemEnc(e, v.Elem())
	}
	return fn, nil
}

func newBoolEncoder() wire.EncoderFunc {
	return func(e *wire.Encoder, v reflect.Value) error {
		if v.Bool() {
			e.Int(1)
		} else {
			e.Int(0)
		}
		return nil
	}
}

func newIntEncoder() wire.EncoderFunc {
	return func(e *wire.Encoder, v reflect.Value) error {
		e.Int(v.Int())
		return nil
	}
}

func newUintEncoder() wire.EncoderFunc {
	return func(e *wire.Encoder, v reflect.Value) error {
		u := v.Uint()
		if u > math.MaxInt64 {
			return wire.NewError(wire.InvalidValue, "can't encode %d: bencode integers are 64-bit signed", u)
		}
		e.Int(int64(u))
		return nil
	}
}

func newStringEncoder() wire.EncoderFunc {
	return func(e *wire.Encoder, v reflect.Value) error {
		e.String(v.String())
		return nil
	}
}

func newSliceEncoder(t reflect.Type) (wire.EncoderFunc, error) {
	if t.Elem().Kind() == reflect.Uint8 {
		if t.Kind() == reflect.Slice {
			// Fast path for []byte.
			return func(e *wire.Encoder, v reflect.Value) error {
				e.Bytes(v.Bytes())
				return nil
			}, nil
		}
		// [N]byte encodes as a byte string too, matching hashes and
		// peer IDs as they appear in the wild.
		n := t.Len()
		return func(e *wire.Encoder, v reflect.Value) error {
			bs := make([]byte, n)
			reflect.Copy(reflect.ValueOf(bs), v)
			e.Bytes(bs)
			return nil
		}, nil
	}

	elemEnc, err := encoderFor(t.Elem())
	if err != nil {
		return nil, err
	}
	fn := func(e *wire.Encoder, v reflect.Value) error {
		return e.List(func() error {
			for i := 0; i < v.Len(); i++ {
				if err := elemEnc(e, v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return fn, nil
}

func newStructEncoder(t reflect.Type) (wire.EncoderFunc, error) {
	fs, err := getStructInfo(t)
	if err != nil {
		return nil, typeErr(t, "getting struct info: %v", err)
	}

	type fieldEncoder struct {
		field *structField
		key   []byte
		enc   wire.EncoderFunc
	}
	var frags []fieldEncoder
	for _, f := range fs.StructFields {
		fEnc, err := encoderFor(f.Type)
		if err != nil {
			return nil, err
		}
		frags = append(frags, fieldEncoder{field: f, key: []byte(f.Name), enc: fEnc})
	}

	fn := func(e *wire.Encoder, v reflect.Value) error {
		return e.Dict(func(d *wire.DictEncoder) error {
			for _, frag := range frags {
				fv := frag.field.GetWithZero(v)
				if frag.field.OmitEmpty && fv.IsZero() {
					continue
				}
				err := d.Entry(frag.key, func(sub *wire.Encoder) error {
					return frag.enc(sub, fv)
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return fn, nil
}

func newMapEncoder(t reflect.Type) (wire.EncoderFunc, error) {
	kt := t.Key()
	if kt.Kind() != reflect.String {
		return nil, typeErr(t, "bencode dictionary keys must be strings, not %s", kt)
	}
	vEnc, err := encoderFor(t.Elem())
	if err != nil {
		return nil, err
	}

	fn := func(e *wire.Encoder, v reflect.Value) error {
		return e.Dict(func(d *wire.DictEncoder) error {
			iter := v.MapRange()
			for iter.Next() {
				mv := iter.Value()
				err := d.Entry([]byte(iter.Key().String()), func(sub *wire.Encoder) error {
					return vEnc(sub, mv)
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return fn, nil
}

func newInterfaceEncoder() wire.EncoderFunc {
	return func(e *wire.Encoder, v reflect.Value) error {
		if v.IsNil() {
			return wire.NewError(wire.InvalidValue, "can't encode nil interface value")
		}
		return e.Value(v.Elem().Interface())
	}
}
