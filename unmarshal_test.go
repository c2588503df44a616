package bencode

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		into any
		kind ErrorKind
	}{
		{"empty input", "", new(int64), EndOfStream},
		{"truncated string", "3:we", new(string), EndOfStream},
		{"truncated int", "i42", new(int64), EndOfStream},
		{"truncated list", "li1e", new([]int64), EndOfStream},
		{"truncated dict", "d1:xi1e", new(Simple), EndOfStream},
		{"bare end marker", "e", new(int64), EndOfStream},

		{"invalid character", "x", new(int64), InvalidValue},
		{"unparsable int", "i4x2e", new(int64), InvalidValue},
		{"unparsable length", "4x:spam", new(string), InvalidValue},
		{"huge length prefix", "9999999999:ab", new(string), EndOfStream},
		{"non-UTF-8 string", "2:\xff\xfe", new(string), InvalidValue},
		{"bool out of range", "i2e", new(bool), InvalidValue},
		{"int overflow", "i300e", new(int8), InvalidValue},
		{"negative into uint", "i-5e", new(uint32), InvalidValue},
		{"float target", "i1e", new(float64), InvalidValue},

		{"string into int", "4:spam", new(int64), InvalidType},
		{"int into string", "i5e", new(string), InvalidType},
		{"list into struct", "li1ee", new(Simple), InvalidType},
		{"dict key not string", "di1ei2ee", new(map[string]int64), InvalidType},
		{"value receiver unmarshaler", "i42e", new(SelfMarshalerVal), InvalidType},

		{"array too short", "li1ee", new([2]int64), InvalidLength},
		{"array too long", "li1ei2ei3ee", new([2]int64), InvalidLength},
		{"byte array length", "2:ab", new([4]byte), InvalidLength},

		{"missing required field", "d4:note2:hie", new(Tagged), MissingField},
		{"duplicate field", "d1:xi1e1:xi2e1:y1:ae", new(Simple), DuplicateField},
		{"unknown field strict", "d1:ai1e1:bi2ee", new(Strict), UnknownField},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Unmarshal([]byte(tc.raw), tc.into)
			if err == nil {
				t.Fatalf("decode succeeded, wanted %v error\n  raw: %q", tc.kind, tc.raw)
			}
			var werr *Error
			if !errors.As(err, &werr) {
				t.Fatalf("decode error is %T, want *Error: %v", err, err)
			}
			if werr.Kind != tc.kind {
				t.Fatalf("decode error kind is %v, want %v: %v", werr.Kind, tc.kind, err)
			}
		})
	}
}

func TestUnmarshalTarget(t *testing.T) {
	if err := Unmarshal([]byte("i1e"), nil); err == nil {
		t.Error("decode into nil succeeded, wanted error")
	}
	if err := Unmarshal([]byte("i1e"), int64(0)); err == nil {
		t.Error("decode into non-pointer succeeded, wanted error")
	}
	var p *int64
	if err := Unmarshal([]byte("i1e"), p); err == nil {
		t.Error("decode into nil pointer succeeded, wanted error")
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	// The unknown keys carry arbitrarily nested values, which must be
	// skipped whole.
	raw := "d1:qld2:zzli1ei2eee3:abce1:xi5e1:y1:ae"
	var got Simple
	if err := Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if want := (Simple{5, "a"}); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestUnmarshalDenyUnknownFields(t *testing.T) {
	var got Strict
	if err := Unmarshal([]byte("d1:ai7ee"), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.A != 7 {
		t.Fatalf("got A=%d, want 7", got.A)
	}
}

func TestUnmarshalDuplicateMapKeys(t *testing.T) {
	// Duplicate dict keys are an error for structs, but for maps the
	// last value wins.
	var got map[string]int64
	if err := Unmarshal([]byte("d1:ai1e1:ai2ee"), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(got, map[string]int64{"a": 2}); diff != "" {
		t.Fatalf("wrong map contents (-got+want):\n%s", diff)
	}
}

func TestUnmarshalAny(t *testing.T) {
	var got any
	if err := Unmarshal([]byte("d1:kli1eee"), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := Dict{"k": List{Integer(1)}}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("wrong value (-got+want):\n%s", diff)
	}
}

func TestUnmarshalTrailingData(t *testing.T) {
	// Only the first value is consumed; trailing bytes are not an
	// error.
	var got int64
	if err := Unmarshal([]byte("i5e3:abc"), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestUnmarshalReader(t *testing.T) {
	var got Simple
	if err := UnmarshalReader(strings.NewReader("d1:xi1111e1:y3:doge"), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if want := (Simple{1111, "dog"}); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestUnmarshalMapReuse(t *testing.T) {
	got := map[string]int64{"stale": 99}
	if err := Unmarshal([]byte("d1:ai1ee"), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(got, map[string]int64{"a": 1}); diff != "" {
		t.Fatalf("map not cleared before decode (-got+want):\n%s", diff)
	}
}
