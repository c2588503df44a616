// Package wire provides low-level lexing and encoding helpers to
// construct and parse bencode values.
//
// The provided encoder and decoder are token level, and do not bind
// any application types. The encoder guarantees canonical output:
// dictionary entries are buffered per scope and emitted sorted by raw
// key bytes, so two logically equal dictionaries always encode to the
// same byte sequence.
//
// You should not need to use this package at all, unless you are
// writing your own bencode.Marshaler/bencode.Unmarshaler
// implementations, in which case your code will be handed an
// [Encoder] or [Decoder] and expected to produce correct bencode
// with it.
package wire
