package bencode

import (
	"fmt"
	"reflect"

	"github.com/torrentkit/bencode/wire"
)

// Error is the structured error returned for anything that goes wrong
// while encoding or decoding. It is shared between both directions of
// the codec and lives in the wire package; the aliases here exist so
// that ordinary callers never import wire.
type Error = wire.Error

// ErrorKind classifies an [Error]. See the wire package for the kind
// definitions.
type ErrorKind = wire.ErrorKind

const (
	IO             = wire.IO
	InvalidType    = wire.InvalidType
	InvalidValue   = wire.InvalidValue
	InvalidLength  = wire.InvalidLength
	UnknownVariant = wire.UnknownVariant
	UnknownField   = wire.UnknownField
	MissingField   = wire.MissingField
	DuplicateField = wire.DuplicateField
	EndOfStream    = wire.EndOfStream
	Custom         = wire.Custom
)

// typeErr reports a type that cannot take part in the bencode
// mapping.
func typeErr(t reflect.Type, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	if t != nil {
		detail = t.String() + ": " + detail
	}
	return wire.NewError(wire.InvalidType, "%s", detail)
}
