package wire

import "fmt"

// An ErrorKind classifies a codec failure. The set is closed: every
// failure mode of lexing, encoding, or type binding maps onto exactly
// one of these kinds.
type ErrorKind int

const (
	// IO is a read failure of the underlying byte source.
	IO ErrorKind = iota + 1
	// InvalidType means a value was present but had the wrong shape,
	// e.g. an integer where a byte string was expected.
	InvalidType
	// InvalidValue means the shape was right but the content wasn't:
	// a non-UTF-8 string, an unparsable integer or length prefix, a
	// floating point value, a malformed variant tag.
	InvalidValue
	// InvalidLength means a sequence had the wrong number of elements
	// for a fixed-arity target.
	InvalidLength
	// UnknownVariant means a variant tag was not recognized by the
	// binding.
	UnknownVariant
	// UnknownField means a dictionary key did not match any field of
	// a binding that rejects unknown keys.
	UnknownField
	// MissingField means a required field was absent.
	MissingField
	// DuplicateField means the same field was bound twice.
	DuplicateField
	// EndOfStream means the input ran out mid-value.
	EndOfStream
	// Custom is the escape hatch for application-level binding
	// errors.
	Custom
)

func (k ErrorKind) String() string {
	switch k {
	case IO:
		return "io error"
	case InvalidType:
		return "invalid type"
	case InvalidValue:
		return "invalid value"
	case InvalidLength:
		return "invalid length"
	case UnknownVariant:
		return "unknown variant"
	case UnknownField:
		return "unknown field"
	case MissingField:
		return "missing field"
	case DuplicateField:
		return "duplicate field"
	case EndOfStream:
		return "end of stream"
	case Custom:
		return "error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the error type returned for anything that goes wrong while
// encoding or decoding. Malformed input is always reported as an
// Error, never as a panic.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Detail is a human-readable explanation of what went wrong.
	Detail string
	// Err is the underlying cause, if any. It is set for IO errors.
	Err error
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("bencode: %s: %v", msg, e.Err)
	}
	return "bencode: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns an Error of the given kind with a formatted
// detail message. It is exported so that Marshaler and Unmarshaler
// implementations outside this module can report failures in the
// shared taxonomy (typically UnknownVariant or Custom).
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func errEndOfStream() *Error {
	return &Error{Kind: EndOfStream, Detail: "end of stream"}
}
