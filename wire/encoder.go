package wire

import (
	"bytes"
	"errors"
	"reflect"
	"slices"
	"strconv"
)

// An EncoderFunc writes a value to the given encoder.
type EncoderFunc func(enc *Encoder, val reflect.Value) error

// An Encoder builds a canonical bencode encoding in Out.
//
// Scalars append directly. Dictionaries buffer their entries in the
// open [DictEncoder] scope and are emitted sorted ascending by raw
// key bytes when the scope closes, so the output for a logical
// dictionary is the same no matter what order its entries were
// produced in.
//
// An Encoder is not safe for concurrent use. Create one per encode.
type Encoder struct {
	// Mapper provides [EncoderFunc]s for values given to
	// [Encoder.Value]. If Mapper is nil, the Encoder functions
	// normally except that [Encoder.Value] always returns an error.
	Mapper func(reflect.Type) (EncoderFunc, error)
	// Out is the encoded output.
	Out []byte
}

// Int writes the integer i.
func (e *Encoder) Int(i int64) {
	e.Out = append(e.Out, 'i')
	e.Out = strconv.AppendInt(e.Out, i, 10)
	e.Out = append(e.Out, 'e')
}

// Bytes writes bs as a byte string.
func (e *Encoder) Bytes(bs []byte) {
	e.Out = strconv.AppendInt(e.Out, int64(len(bs)), 10)
	e.Out = append(e.Out, ':')
	e.Out = append(e.Out, bs...)
}

// String writes s as a byte string.
func (e *Encoder) String(s string) {
	e.Out = strconv.AppendInt(e.Out, int64(len(s)), 10)
	e.Out = append(e.Out, ':')
	e.Out = append(e.Out, s...)
}

// Write writes bs as-is to the output. It is the caller's
// responsibility to ensure the result is well-formed bencode.
func (e *Encoder) Write(bs []byte) {
	e.Out = append(e.Out, bs...)
}

// List writes a list. Elements must be written within the provided
// elements function.
func (e *Encoder) List(elements func() error) error {
	e.Out = append(e.Out, 'l')
	if err := elements(); err != nil {
		return err
	}
	e.Out = append(e.Out, 'e')
	return nil
}

// Dict writes a dictionary. Entries must be added to the provided
// [DictEncoder] within the entries function; they are sorted by raw
// key bytes and flushed when the function returns.
func (e *Encoder) Dict(entries func(d *DictEncoder) error) error {
	d := DictEncoder{mapper: e.Mapper}
	if err := entries(&d); err != nil {
		return err
	}
	slices.SortStableFunc(d.entries, func(a, b dictEntry) int {
		return bytes.Compare(a.key, b.key)
	})
	e.Out = append(e.Out, 'd')
	for _, ent := range d.entries {
		e.Bytes(ent.key)
		e.Out = append(e.Out, ent.val...)
	}
	e.Out = append(e.Out, 'e')
	return nil
}

// Value writes v to the output, using the [EncoderFunc] provided by
// [Encoder.Mapper].
func (e *Encoder) Value(v any) error {
	if e.Mapper == nil {
		return errors.New("Mapper not provided to Encoder")
	}
	if v == nil {
		return NewError(InvalidValue, "can't encode untyped nil")
	}
	fn, err := e.Mapper(reflect.TypeOf(v))
	if err != nil {
		return err
	}
	return fn(e, reflect.ValueOf(v))
}

type dictEntry struct {
	key, val []byte
}

// A DictEncoder collects the entries of one open dictionary scope.
type DictEncoder struct {
	mapper  func(reflect.Type) (EncoderFunc, error)
	entries []dictEntry
}

// Entry adds one key/value pair to the dictionary. The value is
// encoded into its own nested scope. An entry whose value encodes to
// zero bytes is dropped: that is how absent optional values disappear
// from the wire instead of appearing as explicit nulls.
func (d *DictEncoder) Entry(key []byte, value func(e *Encoder) error) error {
	sub := Encoder{Mapper: d.mapper}
	if err := value(&sub); err != nil {
		return err
	}
	if len(sub.Out) == 0 {
		return nil
	}
	d.entries = append(d.entries, dictEntry{key: key, val: sub.Out})
	return nil
}
