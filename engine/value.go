package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind is the closed set of shapes a resolved value can take.
type Kind int

const (
	Absent Kind = iota
	Null
	Bool
	Number
	String
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a data-context value tagged with its Kind. The zero Value is Absent.
type Value struct {
	kind Kind
	rv   reflect.Value
	om   *OrderedMap
	str  string  // String kind, and the text of Number kind
	num  float64 // Number kind
	b    bool
}

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Value
}

var (
	stringerType   = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	jsonNumberType = reflect.TypeOf(json.Number(""))
	orderedMapType = reflect.TypeOf((*OrderedMap)(nil))
)

// ValueOf classifies an arbitrary Go value.
func ValueOf(x interface{}) Value {
	switch x := x.(type) {
	case nil:
		return Value{kind: Null}
	case Value:
		return x
	case *OrderedMap:
		if x == nil {
			return Value{kind: Null}
		}
		return Value{kind: Mapping, om: x}
	}
	return valueOfReflect(reflect.ValueOf(x))
}

func valueOfReflect(rv reflect.Value) Value {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Value{kind: Null}
		}
		if rv.Type() == orderedMapType {
			return Value{kind: Mapping, om: rv.Interface().(*OrderedMap)}
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return Value{kind: Null}
	}
	if rv.Type() == jsonNumberType {
		s := rv.String()
		f, _ := strconv.ParseFloat(s, 64)
		return Value{kind: Number, num: f, str: s}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Value{kind: Bool, b: rv.Bool()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		return Value{kind: Number, num: float64(i), str: strconv.FormatInt(i, 10)}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		return Value{kind: Number, num: float64(u), str: strconv.FormatUint(u, 10)}
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return Value{kind: Number, num: f, str: formatFloat(f, rv.Type().Bits())}
	case reflect.String:
		return Value{kind: String, str: rv.String()}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Value{kind: String, str: string(rv.Bytes())}
		}
		return Value{kind: Sequence, rv: rv}
	case reflect.Array:
		return Value{kind: Sequence, rv: rv}
	case reflect.Map:
		return Value{kind: Mapping, rv: rv}
	case reflect.Struct:
		if rv.Type() == orderedMapType.Elem() {
			om := rv.Interface().(OrderedMap)
			return Value{kind: Mapping, om: &om}
		}
		if rv.Type().Implements(stringerType) {
			return Value{kind: String, str: rv.Interface().(fmt.Stringer).String()}
		}
		if reflect.PointerTo(rv.Type()).Implements(stringerType) && rv.CanAddr() {
			return Value{kind: String, str: rv.Addr().Interface().(fmt.Stringer).String()}
		}
		return Value{kind: Mapping, rv: rv}
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return Value{kind: Null}
	}
	return Value{kind: String, str: fmt.Sprint(rv.Interface())}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value could not be resolved.
func (v Value) IsAbsent() bool { return v.kind == Absent }

// Truthy applies the conditional truthiness table.
func (v Value) Truthy() bool {
	switch v.kind {
	case Absent, Null:
		return false
	case Bool:
		return v.b
	case Number:
		return v.num != 0 && !math.IsNaN(v.num)
	case String:
		return v.str != ""
	case Sequence, Mapping:
		return v.Len() > 0
	}
	return false
}

// Len returns the element count of a Sequence or the key count of a
// Mapping, and 0 for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case Sequence:
		return v.rv.Len()
	case Mapping:
		if v.om != nil {
			return v.om.Len()
		}
		if v.rv.Kind() == reflect.Struct {
			return len(structFields(v.rv.Type()))
		}
		return v.rv.Len()
	}
	return 0
}

// Field looks key up on a Mapping. ok is false for missing keys and for
// every non-Mapping value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != Mapping {
		return Value{}, false
	}
	if v.om != nil {
		x, ok := v.om.Get(key)
		if !ok {
			return Value{}, false
		}
		return ValueOf(x), true
	}
	switch v.rv.Kind() {
	case reflect.Map:
		return mapIndex(v.rv, key)
	case reflect.Struct:
		for _, f := range structFields(v.rv.Type()) {
			if f.name == key || f.goName == key {
				return fieldValue(v.rv, f), true
			}
		}
	}
	return Value{}, false
}

func mapIndex(m reflect.Value, key string) (Value, bool) {
	kt := m.Type().Key()
	if kt.Kind() == reflect.String {
		e := m.MapIndex(reflect.ValueOf(key).Convert(kt))
		if !e.IsValid() {
			return Value{}, false
		}
		return valueOfReflect(e), true
	}
	iter := m.MapRange()
	for iter.Next() {
		if fmt.Sprint(iter.Key().Interface()) == key {
			return valueOfReflect(iter.Value()), true
		}
	}
	return Value{}, false
}

// Items returns the elements of a Sequence in order.
func (v Value) Items() []Value {
	if v.kind != Sequence {
		return nil
	}
	out := make([]Value, v.rv.Len())
	for i := range out {
		out[i] = valueOfReflect(v.rv.Index(i))
	}
	return out
}

// Entries returns the pairs of a Mapping in iteration order: insertion
// order for OrderedMap, declaration order for structs and sorted key
// order for Go maps.
func (v Value) Entries() []Entry {
	if v.kind != Mapping {
		return nil
	}
	if v.om != nil {
		out := make([]Entry, 0, v.om.Len())
		for _, k := range v.om.Keys() {
			x, _ := v.om.Get(k)
			out = append(out, Entry{Key: k, Value: ValueOf(x)})
		}
		return out
	}
	if v.rv.Kind() == reflect.Struct {
		fields := structFields(v.rv.Type())
		out := make([]Entry, 0, len(fields))
		for _, f := range fields {
			out = append(out, Entry{Key: f.name, Value: fieldValue(v.rv, f)})
		}
		return out
	}
	out := make([]Entry, 0, v.rv.Len())
	iter := v.rv.MapRange()
	for iter.Next() {
		out = append(out, Entry{Key: fmt.Sprint(iter.Key().Interface()), Value: valueOfReflect(iter.Value())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// String renders the value the way a placeholder prints it.
func (v Value) String() string {
	switch v.kind {
	case Absent, Null:
		return ""
	case Bool:
		return strconv.FormatBool(v.b)
	case Number, String:
		return v.str
	case Sequence:
		items := v.Items()
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.String()
		}
		return strings.Join(parts, ",")
	case Mapping:
		if v.om != nil {
			return v.om.String()
		}
		return fmt.Sprint(v.rv.Interface())
	}
	return ""
}

// fieldValue reads f from the struct rv; a nil embedded pointer on the
// way to a promoted field yields Null.
func fieldValue(rv reflect.Value, f structField) Value {
	fv, err := rv.FieldByIndexErr(f.index)
	if err != nil {
		return Value{kind: Null}
	}
	return valueOfReflect(fv)
}

type structField struct {
	name   string // json name if tagged, else the Go name
	goName string
	index  []int
}

// structFields lists the exported, non-ignored fields of t, promoting the
// fields of embedded structs.
func structFields(t reflect.Type) []structField {
	var out []structField
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out = append(out, structField{name: name, goName: f.Name, index: f.Index})
	}
	return out
}
