package bencode

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMarshalUnmarshal(t *testing.T) {
	type testCase struct {
		name       string
		raw        string
		wantDecode any
		toEncode   any
	}
	ok := func(name string, raw string, want any) testCase {
		return testCase{name, raw, want, want}
	}
	asymmetric := func(name string, raw string, decoded any, toEncode any) testCase {
		return testCase{name, raw, decoded, toEncode}
	}

	tests := []testCase{
		ok("int", "i666e", int64(666)),
		ok("int negative", "i-42e", int64(-42)),
		ok("int zero", "i0e", int64(0)),
		ok("int max", "i9223372036854775807e", int64(math.MaxInt64)),
		ok("int min", "i-9223372036854775808e", int64(math.MinInt64)),
		ok("int narrow", "i12e", int8(12)),
		ok("uint", "i12e", uint32(12)),
		ok("true", "i1e", true),
		ok("false", "i0e", false),

		ok("string", "4:spam", "spam"),
		ok("string empty", "0:", ""),
		ok("string utf8", "8:\xc3\xa9chec\xc2\xb7", "échec·"),
		ok("bytes", "3:\x00\x01\xff", []byte{0, 1, 0xff}),
		ok("byte array", "4:abcd", [4]byte{'a', 'b', 'c', 'd'}),

		ok("list empty", "le", []int64{}),
		ok("list strings", "l3:one3:two5:threee", []string{"one", "two", "three"}),
		ok("list nested", "lli1ei2eeli3eee", [][]int64{{1, 2}, {3}}),
		ok("array", "li1ei2ee", [2]int64{1, 2}),
		ok("list of structs", "ld1:xi1e1:y1:aed1:xi2e1:y1:bee",
			[]Simple{{1, "a"}, {2, "b"}}),
		asymmetric("list nil", "le", []int64{}, []int64(nil)),

		// Dict keys come out sorted by raw bytes regardless of map
		// iteration or field declaration order.
		ok("map", "d1:ai1e1:bi2e1:ci4e1:zi3ee",
			map[string]int64{"z": 3, "a": 1, "c": 4, "b": 2}),
		ok("map empty", "de", map[string]int64{}),
		ok("map of lists", "d1:al1:xe1:blee", map[string][]string{"a": {"x"}, "b": {}}),

		ok("struct", "d1:xi1111e1:y3:doge", Simple{1111, "dog"}),
		ok("struct nested", "d1:ai7e1:bd1:xi1e1:y1:aee",
			Nested{7, Simple{1, "a"}}),
		ok("struct embedded", "d1:ci2e1:xi1e1:y1:ae",
			Embedded{Simple{1, "a"}, 2}),
		ok("struct embedded ptr", "d1:ci2e1:xi1e1:y1:ae",
			Embedded_P{&Simple{1, "a"}, 2}),
		ok("struct embedded shadow", "d1:xi5e1:yi7ee",
			EmbeddedShadow{Simple{X: 5}, 7}),
		asymmetric("struct embedded nilptr", "d1:ci2e1:xi0e1:y0:e",
			Embedded_P{&Simple{}, 2},
			Embedded_P{nil, 2}),

		ok("tagged", "d4:name3:bobe", Tagged{Name: "bob"}),
		ok("tagged with note", "d4:name3:bob4:note2:hie",
			Tagged{Name: "bob", Note: "hi"}),
		asymmetric("tagged skips excluded", "d4:name3:bobe",
			Tagged{Name: "bob"},
			Tagged{Name: "bob", Skip: "never"}),

		ok("optionals absent", "de", Optionals{}),
		ok("optionals present", "d1:ai5e1:b3:yese",
			Optionals{ptr(int64(5)), ptr("yes")}),
		ok("ptr scalar", "i5e", ptr(int64(5))),

		ok("selfmarshaler ptr", "i42e", &SelfMarshalerPtr{41}),
		ok("struct nested selfmarshaler", "d1:ai1e1:bi42ee",
			NestedSelfMarshalerPtr{1, SelfMarshalerPtr{41}}),

		ok("recursive", "d4:kidsld5:label4:leafee5:label4:roote",
			Tree{Label: "root", Kids: []Tree{{Label: "leaf"}}}),

		ok("value int", "i7e", Integer(7)),
		ok("value bytes", "3:abc", Bytes("abc")),
		ok("value mixed list", "l3:one3:two5:threei4ee",
			List{Bytes("one"), Bytes("two"), Bytes("three"), Integer(4)}),
		ok("value dict", "d1:k3:val4:listli1eee",
			Dict{"k": Bytes("val"), "list": List{Integer(1)}}),
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := reflect.New(reflect.TypeOf(tc.wantDecode))
			got := v.Interface()
			if err := Unmarshal([]byte(tc.raw), got); err != nil {
				t.Fatalf("decode failed: %v\n  raw: %q\n want: %#v", err, tc.raw, tc.wantDecode)
			}
			if diff := cmp.Diff(v.Elem().Interface(), tc.wantDecode); diff != "" {
				t.Fatalf("decode wrong value (-got+want):\n%s", diff)
			}
			bs, err := Marshal(tc.toEncode)
			if err != nil {
				t.Fatalf("encode failed: %v\n  val: %#v\n want: %q", err, tc.toEncode, tc.raw)
			}
			if string(bs) != tc.raw {
				t.Fatalf("encode wrong bytes:\n  val: %#v\n  got: %q\n want: %q", tc.toEncode, bs, tc.raw)
			}
		})
	}
}

func TestMarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind ErrorKind
	}{
		{"nil", nil, InvalidValue},
		{"float", 3.14, InvalidValue},
		{"float32", float32(3.14), InvalidValue},
		{"chan", make(chan int), InvalidType},
		{"func", func() {}, InvalidType},
		{"uint out of range", uint64(math.MaxInt64) + 1, InvalidValue},
		{"map int keys", map[int]string{1: "a"}, InvalidType},
		{"nil interface element", []any{nil}, InvalidValue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bs, err := Marshal(tc.in)
			if err == nil {
				t.Fatalf("encode succeeded, wanted error\n  val: %#v\n  got: %q", tc.in, bs)
			}
			var werr *Error
			if !errors.As(err, &werr) {
				t.Fatalf("encode error is %T, want *Error: %v", err, err)
			}
			if werr.Kind != tc.kind {
				t.Fatalf("encode error kind is %v, want %v: %v", werr.Kind, tc.kind, err)
			}
		})
	}
}

func TestMarshalDeterministic(t *testing.T) {
	in := map[string]int64{"zebra": 1, "apple": 2, "mango": 3, "kiwi": 4}
	first, err := Marshal(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	for range 20 {
		got, err := Marshal(in)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if string(got) != string(first) {
			t.Fatalf("encoding not deterministic:\n  first: %q\n  later: %q", first, got)
		}
	}
}

func TestMarshalString(t *testing.T) {
	s, err := MarshalString(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if want := "d1:k1:ve"; s != want {
		t.Fatalf("got %q, want %q", s, want)
	}

	_, err = MarshalString([]byte{0xff, 0xfe})
	var werr *Error
	if !errors.As(err, &werr) || werr.Kind != InvalidValue {
		t.Fatalf("encoding non-UTF-8 output as string, got %v, want InvalidValue", err)
	}
}
