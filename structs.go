package bencode

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
)

// DenyUnknownFields marks a struct as rejecting unknown dictionary
// keys. A struct with a field of type DenyUnknownFields returns an
// UnknownField error when Unmarshal meets a key that matches no
// field, instead of skipping the value.
type DenyUnknownFields struct{}

// structField is the information about a struct field that needs to
// be marshaled/unmarshaled.
type structField struct {
	// Name is the field's dictionary key on the wire: the Go field
	// name, or the name given in the field's "bencode" tag.
	Name string
	// GoName is the field's name in the Go struct, for diagnostics.
	GoName string
	Index  [][]int
	Type   reflect.Type
	// Required is whether Unmarshal must see the field's key. Absent
	// required fields raise MissingField.
	Required bool
	// OmitEmpty is whether Marshal drops the field when its value is
	// the zero value for its type.
	OmitEmpty bool
}

// GetWithZero loads the struct field from structVal. If loading
// requires traversing a nil pointer into an embedded struct,
// GetWithZero returns a non-settable zero value of the field.
func (f *structField) GetWithZero(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				return reflect.Zero(f.Type)
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// GetWithAlloc loads the struct field from structVal. If loading
// requires traversing a nil pointer into an embedded struct,
// GetWithAlloc allocates zero values appropriately. The returned
// [reflect.Value] is settable.
func (f *structField) GetWithAlloc(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// structInfo is the information about a struct relevant to
// marshaling/unmarshaling.
type structInfo struct {
	// Name is the struct's name, for use in diagnostics.
	Name string
	// Type is the struct's type, for use in diagnostics.
	Type reflect.Type
	// DenyUnknown is whether unknown dictionary keys are an error
	// rather than skipped.
	DenyUnknown bool

	// StructFields is the information about each struct field
	// eligible for bencode encoding/decoding, in declaration order.
	// The encoder's dictionary scope sorts entries by key, so this
	// order never reaches the wire.
	StructFields []*structField
}

// getStructInfo returns the structInfo for t.
//
// getStructInfo returns an error if t is not a struct, or if the
// struct is malformed in a way that prevents its use as a bencode
// dictionary.
func getStructInfo(t reflect.Type) (*structInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s is not a struct", t)
	}

	ret := &structInfo{
		Name: t.String(),
		Type: t,
	}

	byName := map[string]*structField{}
	byDepth := map[string]int{}
	for field := range structFields(t, nil) {
		if !field.IsExported() {
			if field.Type == reflect.TypeFor[DenyUnknownFields]() {
				ret.DenyUnknown = true
			}
			continue
		}
		name, required, omitEmpty, skip := parseStructTag(field)
		if skip {
			continue
		}
		fieldInfo := structField{
			Name:      name,
			GoName:    field.Name,
			Type:      field.Type,
			Index:     allocSteps(t, field.Index),
			Required:  required,
			OmitEmpty: omitEmpty,
		}
		depth := len(field.Index)
		if prev := byName[name]; prev != nil {
			// Embedding can shadow: when two fields map to the same key,
			// the one nearer the surface of the struct wins. At equal
			// depth the key is genuinely ambiguous.
			if byDepth[name] == depth {
				return nil, fmt.Errorf("duplicate key %q in struct %s, used by %s and %s", name, ret.Name, prev.GoName, field.Name)
			}
			if byDepth[name] < depth {
				continue
			}
			*prev = fieldInfo
			byDepth[name] = depth
			continue
		}
		byName[name] = &fieldInfo
		byDepth[name] = depth
		ret.StructFields = append(ret.StructFields, &fieldInfo)
	}

	return ret, nil
}

// parseStructTag returns the information contained in field's
// "bencode" struct tag.
func parseStructTag(field reflect.StructField) (name string, required, omitEmpty, skip bool) {
	name = field.Name
	tag, ok := field.Tag.Lookup("bencode")
	if !ok {
		return name, false, false, false
	}
	if tag == "-" {
		return "", false, false, true
	}
	for i, f := range strings.Split(tag, ",") {
		switch {
		case i == 0:
			if f != "" {
				name = f
			}
		case f == "required":
			required = true
		case f == "omitempty":
			omitEmpty = true
		}
	}
	return name, required, omitEmpty, false
}

// allocSteps partitions a multi-hop traversal of struct fields into
// segments that end at either the final value, or at a struct pointer
// that might be nil.
//
// This partition is used by [structField.GetWithZero] and
// [structField.GetWithAlloc] to load embedded struct fields that
// require traversing a nil pointer.
func allocSteps(t reflect.Type, idx []int) [][]int {
	var ret [][]int
	prev := 0
	t = t.Field(idx[0]).Type
	for i := 1; i < len(idx); i++ {
		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
			// Hop through a struct pointer that might be nil, cut.
			ret = append(ret, idx[prev:i])
			prev = i
			t = t.Elem()
		}
		t = t.Field(idx[i]).Type
	}
	ret = append(ret, idx[prev:])
	return ret
}

func structFields(t reflect.Type, idx []int) iter.Seq[reflect.StructField] {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			f := t.Field(i)
			idx = append(idx, i)
			if f.Anonymous {
				at := f.Type
				if at.Kind() == reflect.Pointer {
					at = at.Elem()
				}
				if at.Kind() == reflect.Struct {
					for af := range structFields(at, idx) {
						if !yield(af) {
							return
						}
					}
					idx = idx[:len(idx)-1]
					continue
				}
			}
			f.Index = append([]int(nil), idx...)
			if !yield(f) {
				return
			}
			idx = idx[:len(idx)-1]
		}
	}
}
