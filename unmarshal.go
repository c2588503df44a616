package bencode

import (
	"bytes"
	"io"
	"reflect"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/torrentkit/bencode/wire"
)

// Unmarshal parses the bencode-encoded data and stores the result in
// the value pointed to by v. If v is nil or not a pointer, Unmarshal
// returns an InvalidType error.
//
// Generally, Unmarshal applies the inverse of the rules used by
// [Marshal]:
//
// Integer targets of any width decode bencode integers, with a range
// check against the target's width; out of range values are an
// InvalidValue error, as is a negative value decoded into an unsigned
// target. Booleans decode the integers 0 and 1 only.
//
// String targets decode byte strings and require the contents to be
// valid UTF-8. []byte targets take the raw bytes; [N]byte targets
// additionally require exactly N of them.
//
// Slice targets decode lists. Unmarshal resets the slice length to
// zero and then appends each element to the slice. When decoding into
// an array, the list's length must match the target array's length,
// or Unmarshal returns an InvalidLength error.
//
// Map targets decode dictionaries. Unmarshal first clears the map, or
// allocates a new one if the target map is nil. If the incoming
// dictionary contains duplicate values for a key, all but the last
// value are discarded. Dictionary keys are byte-sequence identifiers,
// so map keys are not UTF-8 validated.
//
// Struct targets decode dictionaries keyed by field name or
// `bencode:"name"` tag. Keys matching no field are skipped, unless
// the struct has a field of type [DenyUnknownFields], in which case
// they are an UnknownField error. A key bound to the same field twice
// is a DuplicateField error. Fields tagged ",required" must be
// present, or Unmarshal returns a MissingField error; all other
// fields are optional and keep their existing value when absent.
//
// Pointer targets decode as the value pointed to, allocating as
// needed. There is no null on the wire: a pointer field is nil only
// when its dictionary key is absent.
//
// If an encountered value implements [Unmarshaler], Unmarshal calls
// UnmarshalBencode to decode it. Types implementing [Unmarshaler]
// must do so with a pointer receiver; a value receiver would silently
// discard the decoded result, so Unmarshal refuses it with an
// InvalidType error.
//
// Decoding into a [Value] or into an untyped any produces the
// document model: Integer, Bytes, List, or Dict depending on the
// input's shape.
func Unmarshal(data []byte, v any) error {
	return UnmarshalReader(bytes.NewReader(data), v)
}

// UnmarshalReader is like [Unmarshal] but reads one value from r. The
// reader is borrowed for the duration of the call. Bytes past the end
// of the first value are left unread, though the decoder's internal
// buffering may consume them from r.
func UnmarshalReader(r io.Reader, v any) error {
	if v == nil {
		return typeErr(nil, "can't unmarshal into nil interface")
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Pointer {
		return typeErr(val.Type(), "can't unmarshal into a non-pointer")
	}
	if val.IsNil() {
		return typeErr(val.Type(), "can't unmarshal into a nil pointer")
	}
	dec, err := decoderFor(val.Type().Elem())
	if err != nil {
		return err
	}
	d := wire.NewDecoder(r)
	d.Mapper = decoderFor
	return dec(d, val.Elem())
}

// Unmarshaler is the interface implemented by types that can
// unmarshal themselves.
//
// UnmarshalBencode must consume exactly one value from the decoder,
// and must have a pointer receiver. If Unmarshal encounters an
// Unmarshaler whose UnmarshalBencode method takes a value receiver,
// it returns an InvalidType error.
type Unmarshaler interface {
	UnmarshalBencode(d *wire.Decoder) error
}

var unmarshalerType = reflect.TypeFor[Unmarshaler]()

var decoders codecCache[wire.DecoderFunc]

// decoderFor returns the decoder func for the given type, if the type
// is representable in the bencode wire format.
func decoderFor(t reflect.Type) (wire.DecoderFunc, error) {
	if ent, ok := decoders.load(t); ok {
		return ent.fn, ent.err
	}
	// Publish a forward reference before compiling, so that a
	// self-referential type resolves through the cache when a value
	// of it is actually decoded.
	var (
		wg  sync.WaitGroup
		ent codecEntry[wire.DecoderFunc]
	)
	wg.Add(1)
	forward := codecEntry[wire.DecoderFunc]{fn: func(d *wire.Decoder, v reflect.Value) error {
		wg.Wait()
		if ent.err != nil {
			return ent.err
		}
		return ent.fn(d, v)
	}}
	if prev, loaded := decoders.loadOrStore(t, forward); loaded {
		return prev.fn, prev.err
	}
	ent.fn, ent.err = newTypeDecoder(t)
	wg.Done()
	decoders.store(t, ent)
	return ent.fn, ent.err
}

func newTypeDecoder(t reflect.Type) (wire.DecoderFunc, error) {
	// We only want Unmarshalers with pointer receivers, since a value
	// receiver would silently discard the results of the
	// UnmarshalBencode call and lead to confusing bugs. There are two
	// cases to look for.
	//
	// The first is a pointer that implements Unmarshaler, and whose
	// pointed-to type does not implement Unmarshaler. This means the
	// type implements Unmarshaler with pointer receivers, and we can
	// call it.
	//
	// The second is a value that does not implement Unmarshaler, but
	// whose pointer does. In that case, we can take the value's
	// address and use the pointer unmarshaler. Unmarshal only hands
	// us values that are addressable, so we don't need an
	// addressability check to do this.
	isPtr := t.Kind() == reflect.Pointer
	if t.Implements(unmarshalerType) {
		if !isPtr || t.Elem().Implements(unmarshalerType) {
			return nil, typeErr(t, "refusing to use Unmarshaler implementation with value receiver, Unmarshalers must use pointer receivers")
		}
		// First case, can unmarshal into pointer.
		return newUnmarshalDecoder(t), nil
	} else if !isPtr && reflect.PointerTo(t).Implements(unmarshalerType) {
		// Second case, unmarshal into value.
		return newAddrUnmarshalDecoder(t), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		// Note, pointers to Unmarshaler are handled above.
		return newPtrDecoder(t)
	case reflect.Bool:
		return newBoolDecoder(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return newIntDecoder(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return newUintDecoder(), nil
	case reflect.Float32, reflect.Float64:
		return nil, wire.NewError(wire.InvalidValue, "bencode has no floating point representation, can't decode into %s", t)
	case reflect.String:
		return newStringDecoder(), nil
	case reflect.Slice, reflect.Array:
		return newSliceDecoder(t)
	case reflect.Struct:
		return newStructDecoder(t)
	case reflect.Map:
		return newMapDecoder(t)
	case reflect.Interface:
		return newInterfaceDecoder(t)
	}

	return nil, typeErr(t, "no bencode mapping for type")
}

func newAddrUnmarshalDecoder(t reflect.Type) wire.DecoderFunc {
	ptr := newUnmarshalDecoder(reflect.PointerTo(t))
	return func(d *wire.Decoder, v reflect.Value) error {
		return ptr(d, v.Addr())
	}
}

func newUnmarshalDecoder(t reflect.Type) wire.DecoderFunc {
	return func(d *wire.Decoder, v reflect.Value) error {
		if v.IsNil() {
			v.Set(reflect.New(t.Elem()))
		}
		m := v.Interface().(Unmarshaler)
		return m.UnmarshalBencode(d)
	}
}

func newPtrDecoder(t reflect.Type) (wire.DecoderFunc, error) {
	elem := t.Elem()
	elemDec, err := decoderFor(elem)
	if err != nil {
		return nil, err
	}
	fn := func(d *wire.Decoder, v reflect.Value) error {
		if v.IsNil() {
			if !v.CanSet() {
				panic("got an unsettable nil pointer, should be impossible!")
			}
			elem := reflect.New(elem)
			if err := elemDec(d, elem.Elem()); err != nil {
				return err
			}
			v.Set(elem)
		} else if err := elemDec(d, v.Elem()); err != nil {
			return err
		}
		return nil
	}
	return fn, nil
}

func newBoolDecoder() wire.DecoderFunc {
	return func(d *wire.Decoder, v reflect.Value) error {
		i, err := d.Int()
		if err != nil {
			return err
		}
		if i != 0 && i != 1 {
			return wire.NewError(wire.InvalidValue, "can't decode integer %d as bool", i)
		}
		v.SetBool(i == 1)
		return nil
	}
}

func newIntDecoder() wire.DecoderFunc {
	return func(d *wire.Decoder, v reflect.Value) error {
		i, err := d.Int()
		if err != nil {
			return err
		}
		if v.OverflowInt(i) {
			return wire.NewError(wire.InvalidValue, "integer %d overflows %s", i, v.Type())
		}
		v.SetInt(i)
		return nil
	}
}

func newUintDecoder() wire.DecoderFunc {
	return func(d *wire.Decoder, v reflect.Value) error {
		i, err := d.Int()
		if err != nil {
			return err
		}
		if i < 0 {
			return wire.NewError(wire.InvalidValue, "can't decode negative integer %d into %s", i, v.Type())
		}
		if v.OverflowUint(uint64(i)) {
			return wire.NewError(wire.InvalidValue, "integer %d overflows %s", i, v.Type())
		}
		v.SetUint(uint64(i))
		return nil
	}
}

func newStringDecoder() wire.DecoderFunc {
	return func(d *wire.Decoder, v reflect.Value) error {
		s, err := d.String()
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil
	}
}

func newSliceDecoder(t reflect.Type) (wire.DecoderFunc, error) {
	if t.Elem().Kind() == reflect.Uint8 {
		if t.Kind() == reflect.Slice {
			fn := func(d *wire.Decoder, v reflect.Value) error {
				bs, err := d.Bytes()
				if err != nil {
					return err
				}
				v.SetBytes(bs)
				return nil
			}
			return fn, nil
		}
		n := t.Len()
		fn := func(d *wire.Decoder, v reflect.Value) error {
			bs, err := d.Bytes()
			if err != nil {
				return err
			}
			if len(bs) != n {
				return wire.NewError(wire.InvalidLength, "byte string has %d bytes, want %d for %s", len(bs), n, t)
			}
			reflect.Copy(v, reflect.ValueOf(bs))
			return nil
		}
		return fn, nil
	}

	elemDec, err := decoderFor(t.Elem())
	if err != nil {
		return nil, err
	}

	if t.Kind() == reflect.Array {
		n := t.Len()
		fn := func(d *wire.Decoder, v reflect.Value) error {
			count, err := d.List(func(i int) error {
				if i >= n {
					return wire.NewError(wire.InvalidLength, "list has more than %d elements for %s", n, t)
				}
				return elemDec(d, v.Index(i))
			})
			if err != nil {
				return err
			}
			if count != n {
				return wire.NewError(wire.InvalidLength, "list has %d elements, want %d for %s", count, n, t)
			}
			return nil
		}
		return fn, nil
	}

	fn := func(d *wire.Decoder, v reflect.Value) error {
		// Reset to a non-nil empty slice, so that an empty list
		// round-trips instead of decoding to nil.
		v.Set(reflect.MakeSlice(t, 0, 0))
		_, err := d.List(func(i int) error {
			v.Grow(1)
			v.Set(v.Slice(0, i+1))
			return elemDec(d, v.Index(i))
		})
		return err
	}
	return fn, nil
}

func newStructDecoder(t reflect.Type) (wire.DecoderFunc, error) {
	fs, err := getStructInfo(t)
	if err != nil {
		return nil, typeErr(t, "getting struct info: %v", err)
	}

	type fieldDecoder struct {
		field *structField
		dec   wire.DecoderFunc
	}
	byName := make(map[string]*fieldDecoder, len(fs.StructFields))
	var required []*structField
	for _, f := range fs.StructFields {
		fDec, err := decoderFor(f.Type)
		if err != nil {
			return nil, err
		}
		byName[f.Name] = &fieldDecoder{field: f, dec: fDec}
		if f.Required {
			required = append(required, f)
		}
	}

	fn := func(d *wire.Decoder, v reflect.Value) error {
		seen := mapset.New[string]()
		err := d.Dict(func(key []byte) error {
			f := byName[string(key)]
			if f == nil {
				if fs.DenyUnknown {
					return wire.NewError(wire.UnknownField, "unknown field %q in %s", key, t)
				}
				return d.Skip()
			}
			if seen.Has(f.field.Name) {
				return wire.NewError(wire.DuplicateField, "duplicate field %q in %s", key, t)
			}
			seen.Add(f.field.Name)
			return f.dec(d, f.field.GetWithAlloc(v))
		})
		if err != nil {
			return err
		}
		for _, f := range required {
			if !seen.Has(f.Name) {
				return wire.NewError(wire.MissingField, "missing required field %q in %s", f.Name, t)
			}
		}
		return nil
	}
	return fn, nil
}

func newMapDecoder(t reflect.Type) (wire.DecoderFunc, error) {
	kt := t.Key()
	if kt.Kind() != reflect.String {
		return nil, typeErr(t, "bencode dictionary keys must be strings, not %s", kt)
	}
	vt := t.Elem()
	vDec, err := decoderFor(vt)
	if err != nil {
		return nil, err
	}

	fn := func(d *wire.Decoder, v reflect.Value) error {
		if v.IsNil() {
			v.Set(reflect.MakeMap(t))
		} else {
			v.Clear()
		}

		val := reflect.New(vt)
		return d.Dict(func(key []byte) error {
			val.Elem().SetZero()
			if err := vDec(d, val.Elem()); err != nil {
				return err
			}
			v.SetMapIndex(reflect.ValueOf(string(key)).Convert(kt), val.Elem())
			return nil
		})
	}
	return fn, nil
}

var valueType = reflect.TypeFor[Value]()

func newInterfaceDecoder(t reflect.Type) (wire.DecoderFunc, error) {
	if t != valueType && t.NumMethod() != 0 {
		return nil, typeErr(t, "can't decode into non-empty interface")
	}
	fn := func(d *wire.Decoder, v reflect.Value) error {
		val, err := decodeValue(d)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(val))
		return nil
	}
	return fn, nil
}
