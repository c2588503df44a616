// Package bencode implements the bencode wire format: marshaling and
// unmarshaling of Go values, in the style of encoding/json.
//
// Bencode has four shapes. Integers are 64-bit signed decimal
// (`i-42e`), byte strings are length-prefixed and can hold arbitrary
// bytes (`4:spam`), lists nest values (`l...e`), and dictionaries map
// byte string keys to values (`d...e`). That's the whole format:
// there are no floats, no booleans, and no null.
//
// Encoding is canonical. Dictionary keys are always written in
// ascending order by raw key bytes, regardless of Go map iteration
// order or struct field order, so equal values always marshal to
// equal bytes. This matters for BitTorrent, where the SHA-1 of the
// encoded info dictionary is the torrent's identity.
//
// [Marshal] and [Unmarshal] bind Go structs, maps, slices and scalars
// to the wire using reflection; see their doc comments for the exact
// type mapping and the `bencode:"..."` struct tag syntax. [Value]
// holds documents whose shape isn't known ahead of time. [Variant]
// renders tagged unions. Types needing custom encodings implement
// [Marshaler] and [Unmarshaler] against the token-level API in the
// wire package.
//
// All failures are reported as [Error] values carrying an [ErrorKind]
// that classifies the failure. Malformed or truncated input is an
// error, never a panic, and a byte string's length prefix is not
// trusted for allocation, so the package is safe to feed
// attacker-controlled input.
package bencode
