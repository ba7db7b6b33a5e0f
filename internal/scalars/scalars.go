// Package scalars maps host primitive and value types onto GraphQL scalars
// and serializes leaf values for them.
package scalars

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hanpama/classgraph/internal/errs"
)

// Scalar is a schema scalar together with its output coercion.
type Scalar struct {
	Name        string
	Description string
	Builtin     bool
	serialize   func(v any) (any, error)
}

// Serialize coerces a resolved value into a JSON-safe value.
func (s *Scalar) Serialize(v any) (any, error) {
	out, err := s.serialize(v)
	if err != nil {
		return nil, errs.WrapCoercion(err, "serialize "+s.Name)
	}
	return out, nil
}

var (
	Boolean  = &Scalar{Name: "Boolean", Builtin: true, serialize: serializeBoolean}
	Int      = &Scalar{Name: "Int", Builtin: true, serialize: intSerializer(math.MinInt32, math.MaxInt32)}
	Float    = &Scalar{Name: "Float", Builtin: true, serialize: serializeFloat}
	String   = &Scalar{Name: "String", Builtin: true, serialize: serializeString}
	ID       = &Scalar{Name: "ID", Builtin: true, serialize: serializeID}
	Char     = &Scalar{Name: "Char", Description: "A single character.", serialize: serializeChar}
	Byte     = &Scalar{Name: "Byte", Description: "An 8-bit integer, signed or unsigned: -128 to 255.", serialize: intSerializer(math.MinInt8, math.MaxUint8)}
	Short    = &Scalar{Name: "Short", Description: "A 16-bit integer, signed or unsigned: -32768 to 65535.", serialize: intSerializer(math.MinInt16, math.MaxUint16)}
	Long     = &Scalar{Name: "Long", Description: "A 64-bit integer.", serialize: intSerializer(math.MinInt64, math.MaxInt64)}
	DateTime = &Scalar{Name: "DateTime", Description: "An RFC 3339 timestamp in UTC.", serialize: serializeDateTime}
)

var all = []*Scalar{Boolean, Int, Float, String, ID, Char, Byte, Short, Long, DateTime}

var byHostType = map[string]*Scalar{
	"bool": Boolean, "boolean": Boolean,
	"char": Char, "character": Char, "rune": Char,
	"byte": Byte, "int8": Byte, "uint8": Byte,
	"short": Short, "int16": Short, "uint16": Short,
	"int": Int, "integer": Int, "int32": Int, "uint32": Int,
	"long": Long, "int64": Long, "uint": Long, "uint64": Long,
	"float": Float, "float32": Float, "double": Float, "float64": Float,
	"string": String,
	"date":   DateTime, "calendar": DateTime, "gregoriancalendar": DateTime, "time.time": DateTime,
}

// Lookup maps a host type name to its scalar. Matching ignores case and the
// java.lang / java.util package prefixes host classes are usually spelled with.
// Unknown host types report false.
func Lookup(hostType string) (*Scalar, bool) {
	key := strings.ToLower(strings.TrimSpace(hostType))
	key = strings.TrimPrefix(key, "java.lang.")
	key = strings.TrimPrefix(key, "java.util.")
	s, ok := byHostType[key]
	return s, ok
}

// ByName returns the scalar with the given schema name.
func ByName(name string) (*Scalar, bool) {
	for _, s := range all {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// All returns every scalar, built-in ones first.
func All() []*Scalar { return append([]*Scalar(nil), all...) }

// Custom returns the scalars that are not part of the GraphQL built-ins.
func Custom() []*Scalar {
	var out []*Scalar
	for _, s := range all {
		if !s.Builtin {
			out = append(out, s)
		}
	}
	return out
}

// Serialize serializes v as the named scalar.
func Serialize(name string, v any) (any, error) {
	s, ok := ByName(name)
	if !ok {
		return nil, errs.WrapCoercion(fmt.Errorf("%w: unknown scalar %s", errs.ErrCoercion, name), "serialize")
	}
	return s.Serialize(v)
}

func coercionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrCoercion, fmt.Sprintf(format, args...))
}

func deref(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

func serializeBoolean(v any) (any, error) {
	rv, ok := deref(v)
	if ok && rv.Kind() == reflect.Bool {
		return rv.Bool(), nil
	}
	if s, isStr := v.(string); isStr {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, nil
		}
	}
	return nil, coercionf("cannot serialize %T as Boolean", v)
}

// intSerializer accepts integers in [min, max]. Byte and Short cover both the
// signed and unsigned host widths.
func intSerializer(min, max int64) func(any) (any, error) {
	return func(v any) (any, error) {
		rv, ok := deref(v)
		if !ok {
			return nil, coercionf("cannot serialize %T as an integer", v)
		}
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n := rv.Int()
			if n < min || n > max {
				return nil, coercionf("%d is out of range", n)
			}
			return n, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n := rv.Uint()
			if n > uint64(max) {
				return nil, coercionf("%d is out of range", n)
			}
			return int64(n), nil
		case reflect.Float32, reflect.Float64:
			// float64(max)+1 rounds to 2^63 for Long, which int64 cannot hold
			f := rv.Float()
			if f != math.Trunc(f) || f < float64(min) || f >= float64(max)+1 {
				return nil, coercionf("%v is not an integer in range", f)
			}
			return int64(f), nil
		case reflect.String:
			n, err := strconv.ParseInt(rv.String(), 10, 64)
			if err != nil || n < min || n > max {
				return nil, coercionf("%q is not an integer in range", rv.String())
			}
			return n, nil
		}
		return nil, coercionf("cannot serialize %T as an integer", v)
	}
}

func serializeFloat(v any) (any, error) {
	rv, ok := deref(v)
	if !ok {
		return nil, coercionf("cannot serialize %T as Float", v)
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, coercionf("%v is not a finite number", f)
		}
		return f, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		if err != nil {
			return nil, coercionf("%q is not a number", rv.String())
		}
		return f, nil
	}
	return nil, coercionf("cannot serialize %T as Float", v)
}

func serializeString(v any) (any, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case []byte:
		return string(tv), nil
	case time.Time:
		return formatTime(tv), nil
	case fmt.Stringer:
		return tv.String(), nil
	}
	rv, ok := deref(v)
	if !ok {
		return nil, coercionf("cannot serialize %T as String", v)
	}
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	// nested lists and unclassified values degrade to their text form
	return fmt.Sprint(rv.Interface()), nil
}

func serializeID(v any) (any, error) {
	rv, ok := deref(v)
	if !ok {
		return nil, coercionf("cannot serialize %T as ID", v)
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	if s, isStr := v.(fmt.Stringer); isStr {
		return s.String(), nil
	}
	return nil, coercionf("cannot serialize %T as ID", v)
}

func serializeChar(v any) (any, error) {
	switch tv := v.(type) {
	case rune:
		return string(tv), nil
	case byte:
		return string(rune(tv)), nil
	case string:
		if r := []rune(tv); len(r) == 1 {
			return tv, nil
		}
		return nil, coercionf("%q is not a single character", tv)
	}
	return nil, coercionf("cannot serialize %T as Char", v)
}

func serializeDateTime(v any) (any, error) {
	switch tv := v.(type) {
	case time.Time:
		return formatTime(tv), nil
	case *time.Time:
		if tv == nil {
			return nil, coercionf("nil time")
		}
		return formatTime(*tv), nil
	case string:
		t, err := ParseDateTime(tv)
		if err != nil {
			return nil, err
		}
		return formatTime(t), nil
	}
	return nil, coercionf("cannot serialize %T as DateTime", v)
}

// ParseDateTime parses an RFC 3339 timestamp and normalizes it to UTC.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, coercionf("%q is not an RFC 3339 timestamp", s)
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
