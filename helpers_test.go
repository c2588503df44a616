package bencode

import (
	"github.com/torrentkit/bencode/wire"
)

// Simple is a struct with simple fields.
type Simple struct {
	X int64  `bencode:"x"`
	Y string `bencode:"y"`
}

// Nested is a struct with a struct field.
type Nested struct {
	A int64  `bencode:"a"`
	B Simple `bencode:"b"`
}

// Embedded is a struct that embeds another struct by value. The
// embedded fields flatten into the outer dictionary.
type Embedded struct {
	Simple
	C int64 `bencode:"c"`
}

// EmbeddedShadow is a struct that embeds another struct by value,
// with one of the embedded fields shadowed by an outer field.
type EmbeddedShadow struct {
	Simple
	Y int64 `bencode:"y"`
}

// Embedded_P is a struct that embeds another struct by pointer.
type Embedded_P struct {
	*Simple
	C int64 `bencode:"c"`
}

// Tagged exercises the tag syntax: renaming, required, omitempty and
// field exclusion.
type Tagged struct {
	Name string `bencode:"name,required"`
	Note string `bencode:"note,omitempty"`
	Skip string `bencode:"-"`
}

// Strict rejects dictionary keys that don't match any field.
type Strict struct {
	_ DenyUnknownFields

	A int64 `bencode:"a"`
}

// Optionals is a struct whose pointer fields are absent from the wire
// when nil.
type Optionals struct {
	A *int64  `bencode:"a"`
	B *string `bencode:"b"`
}

// Tree is a self-referential type. Bencode can represent recursive
// values, so this must round-trip.
type Tree struct {
	Label string `bencode:"label"`
	Kids  []Tree `bencode:"kids,omitempty"`
}

// SelfMarshalerPtr implements Marshaler and Unmarshaler with pointer
// method receivers. It encodes its value off by one, so tests can
// tell the custom path ran.
type SelfMarshalerPtr struct {
	B int64
}

func (s *SelfMarshalerPtr) MarshalBencode(e *wire.Encoder) error {
	e.Int(s.B + 1)
	return nil
}

func (s *SelfMarshalerPtr) UnmarshalBencode(d *wire.Decoder) error {
	i, err := d.Int()
	if err != nil {
		return err
	}
	s.B = i - 1
	return nil
}

// SelfMarshalerVal implements Marshaler and Unmarshaler with value
// method receivers. The Unmarshaler implementation is deliberately
// unusable (UnmarshalBencode must have a pointer receiver).
type SelfMarshalerVal struct {
	B int64
}

func (s SelfMarshalerVal) MarshalBencode(e *wire.Encoder) error {
	e.Int(s.B + 1)
	return nil
}

func (s SelfMarshalerVal) UnmarshalBencode(d *wire.Decoder) error {
	i, err := d.Int()
	if err != nil {
		return err
	}
	s.B = i - 1
	return nil
}

// NestedSelfMarshalerPtr is a struct with a field whose type
// implements Marshaler/Unmarshaler with pointer method receivers.
type NestedSelfMarshalerPtr struct {
	A int64            `bencode:"a"`
	B SelfMarshalerPtr `bencode:"b"`
}

func ptr[T any](v T) *T {
	return &v
}
