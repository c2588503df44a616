package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"unicode/utf8"
)

// A DecoderFunc reads one value from dec into val.
type DecoderFunc func(dec *Decoder, val reflect.Value) error

// A Decoder reads bencode tokens from a byte stream.
//
// The lexer produces one structural token at a time and holds at most
// one token of lookahead, in an explicit pushback slot. [Decoder.Peek]
// fills the slot and [Decoder.Next] drains it; they are the only two
// operations that touch it, so a peeked token is always the token the
// next consume returns.
//
// A Decoder is not safe for concurrent use. Create one per decode.
type Decoder struct {
	// Mapper provides [DecoderFunc]s for the types given to
	// [Decoder.Value]. If Mapper is nil, the Decoder functions
	// normally except that [Decoder.Value] always returns an error.
	Mapper func(reflect.Type) (DecoderFunc, error)

	r      *bufio.Reader
	peeked *Token
}

// NewDecoder returns a Decoder reading from r. The reader is borrowed
// for the duration of the decode; the Decoder never reads beyond the
// end of the value it is asked for, aside from buffering.
func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br}
}

// readErr converts an error from the underlying reader into the
// shared taxonomy. Running out of bytes, cleanly or mid-token, is
// EndOfStream; anything else is a genuine IO failure.
func (d *Decoder) readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errEndOfStream()
	}
	return &Error{Kind: IO, Detail: "read failed", Err: err}
}

// readUntil reads bytes up to (but not including) delim, consuming
// the delimiter.
func (d *Decoder) readUntil(delim byte) ([]byte, error) {
	var out []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, d.readErr(err)
		}
		if b == delim {
			return out, nil
		}
		out = append(out, b)
	}
}

func (d *Decoder) lexInt() (Token, error) {
	digits, err := d.readUntil('e')
	if err != nil {
		return Token{}, err
	}
	i, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return Token{}, NewError(InvalidValue, "can't parse %q as integer", digits)
	}
	return Token{Kind: Integer, Int: i}, nil
}

func (d *Decoder) lexByteString(first byte) (Token, error) {
	rest, err := d.readUntil(':')
	if err != nil {
		return Token{}, err
	}
	digits := append([]byte{first}, rest...)
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return Token{}, NewError(InvalidValue, "can't parse %q as string length", digits)
	}
	// The body is read through CopyN so that a length prefix larger
	// than the remaining input fails with EndOfStream once the source
	// runs dry, instead of sizing a buffer to the attacker's number
	// up front.
	var body bytes.Buffer
	body.Grow(int(min(n, 1<<17)))
	if _, err := io.CopyN(&body, d.r, n); err != nil {
		return Token{}, d.readErr(err)
	}
	return Token{Kind: ByteString, Bytes: body.Bytes()}, nil
}

func (d *Decoder) lex() (Token, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return Token{}, d.readErr(err)
	}
	switch {
	case b == 'i':
		return d.lexInt()
	case b >= '0' && b <= '9':
		return d.lexByteString(b)
	case b == 'l':
		return Token{Kind: ListStart}, nil
	case b == 'd':
		return Token{Kind: DictStart}, nil
	case b == 'e':
		return Token{Kind: End}, nil
	}
	return Token{}, NewError(InvalidValue, "invalid character %q", b)
}

// Next returns the next token, consuming it.
func (d *Decoder) Next() (Token, error) {
	if t := d.peeked; t != nil {
		d.peeked = nil
		return *t, nil
	}
	return d.lex()
}

// Peek returns the next token without consuming it. The following
// call to Next returns the same token.
func (d *Decoder) Peek() (Token, error) {
	if d.peeked == nil {
		t, err := d.lex()
		if err != nil {
			return Token{}, err
		}
		d.peeked = &t
	}
	return *d.peeked, nil
}

// mismatch reports a token that isn't the value shape the caller
// asked for. An end marker in value position means the aggregate
// closed under the caller, which surfaces as stream exhaustion.
func mismatch(want string, t Token) error {
	if t.Kind == End {
		return errEndOfStream()
	}
	return NewError(InvalidType, "expected %s, got %s", want, t.Kind)
}

// Int consumes an integer token and returns its value.
func (d *Decoder) Int() (int64, error) {
	t, err := d.Next()
	if err != nil {
		return 0, err
	}
	if t.Kind != Integer {
		return 0, mismatch("integer", t)
	}
	return t.Int, nil
}

// Bytes consumes a byte string token and returns its contents.
func (d *Decoder) Bytes() ([]byte, error) {
	t, err := d.Next()
	if err != nil {
		return nil, err
	}
	if t.Kind != ByteString {
		return nil, mismatch("byte string", t)
	}
	return t.Bytes, nil
}

// String consumes a byte string token and returns it as a string.
// Byte strings double as text in bencode, so String additionally
// requires the contents to be valid UTF-8.
func (d *Decoder) String() (string, error) {
	bs, err := d.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(bs) {
		return "", NewError(InvalidValue, "%d-byte string is not valid UTF-8", len(bs))
	}
	return string(bs), nil
}

// List consumes a list. element is called once per element, in order,
// and must consume exactly one value from the decoder. List consumes
// the terminating end marker and returns the number of elements read.
func (d *Decoder) List(element func(i int) error) (int, error) {
	t, err := d.Next()
	if err != nil {
		return 0, err
	}
	if t.Kind != ListStart {
		return 0, mismatch("list", t)
	}
	for i := 0; ; i++ {
		t, err := d.Peek()
		if err != nil {
			return i, err
		}
		if t.Kind == End {
			d.Next()
			return i, nil
		}
		if err := element(i); err != nil {
			return i, err
		}
	}
}

// Dict consumes a dictionary. entry is called once per key, and must
// consume the corresponding value from the decoder. Dict consumes the
// terminating end marker. Keys must be byte strings; the Decoder does
// not enforce key ordering or uniqueness, that's the binding's
// concern.
func (d *Decoder) Dict(entry func(key []byte) error) error {
	t, err := d.Next()
	if err != nil {
		return err
	}
	if t.Kind != DictStart {
		return mismatch("dict", t)
	}
	for {
		t, err := d.Peek()
		if err != nil {
			return err
		}
		if t.Kind == End {
			d.Next()
			return nil
		}
		if t.Kind != ByteString {
			return NewError(InvalidType, "expected byte string dict key, got %s", t.Kind)
		}
		key, err := d.Bytes()
		if err != nil {
			return err
		}
		if err := entry(key); err != nil {
			return err
		}
	}
}

// End consumes an end marker. Fixed-arity bindings (tuples, variant
// payloads) call End after reading the elements they expect, so that
// trailing elements are an error rather than silently skipped.
func (d *Decoder) End() error {
	t, err := d.Next()
	if err != nil {
		return err
	}
	if t.Kind != End {
		return NewError(InvalidType, "expected end marker, got %s", t.Kind)
	}
	return nil
}

// Skip consumes and discards one complete value.
func (d *Decoder) Skip() error {
	t, err := d.Next()
	if err != nil {
		return err
	}
	switch t.Kind {
	case Integer, ByteString:
		return nil
	case End:
		return errEndOfStream()
	}
	// Aggregate: discard tokens until the matching end marker. Keys
	// and values need no pairing check here, the grammar nests
	// uniformly.
	for depth := 1; depth > 0; {
		t, err := d.Next()
		if err != nil {
			return err
		}
		switch t.Kind {
		case ListStart, DictStart:
			depth++
		case End:
			depth--
		}
	}
	return nil
}

// Value decodes the next value into v, using the [DecoderFunc]
// provided by [Decoder.Mapper]. v must be a non-nil pointer.
func (d *Decoder) Value(v any) error {
	if d.Mapper == nil {
		return errors.New("Mapper not provided to Decoder")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return fmt.Errorf("outval of Decoder.Value must be a pointer, got %s", rv.Type())
	}
	if rv.IsNil() {
		return fmt.Errorf("outval of Decoder.Value must not be a nil pointer")
	}
	fn, err := d.Mapper(rv.Type().Elem())
	if err != nil {
		return err
	}
	return fn(d, rv.Elem())
}
