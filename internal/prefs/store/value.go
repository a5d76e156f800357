package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the primitive type of a stored value.
type Kind uint8

const (
	// KindInvalid is the zero Kind. No stored value has it.
	KindInvalid Kind = iota
	// KindBool is a boolean value.
	KindBool
	// KindInt32 is a 32-bit signed integer.
	KindInt32
	// KindInt64 is a 64-bit signed integer.
	KindInt64
	// KindFloat32 is a 32-bit float.
	KindFloat32
	// KindString is a UTF-8 string.
	KindString
)

// String returns the kind name used in file and database encodings.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "bool":
		return KindBool, nil
	case "int32":
		return KindInt32, nil
	case "int64":
		return KindInt64, nil
	case "float32":
		return KindFloat32, nil
	case "string":
		return KindString, nil
	default:
		return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, s)
	}
}

// Value is a single stored primitive. The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float32
	s    string
}

// Bool returns a bool Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int32 returns an int32 Value.
func Int32(v int32) Value { return Value{kind: KindInt32, i: int64(v)} }

// Int64 returns an int64 Value.
func Int64(v int64) Value { return Value{kind: KindInt64, i: v} }

// Float32 returns a float32 Value.
func Float32(v float32) Value { return Value{kind: KindFloat32, f: v} }

// String returns a string Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the bool held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt32 returns the int32 held by v.
func (v Value) AsInt32() (int32, bool) { return int32(v.i), v.kind == KindInt32 }

// AsInt64 returns the int64 held by v.
func (v Value) AsInt64() (int64, bool) { return v.i, v.kind == KindInt64 }

// AsFloat32 returns the float32 held by v.
func (v Value) AsFloat32() (float32, bool) { return v.f, v.kind == KindFloat32 }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Interface returns the held value as its native Go type, or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindFloat32:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Text formats the value so that Parse(v.Kind(), v.Text()) returns v.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat32:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.Text()
}

// Equal reports whether v and o have the same kind and value.
// Float values compare by bit pattern so NaN equals itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt32, KindInt64:
		return v.i == o.i
	case KindFloat32:
		return math.Float32bits(v.f) == math.Float32bits(o.f)
	case KindString:
		return v.s == o.s
	default:
		return true
	}
}

// Parse converts text produced by Value.Text back into a Value of kind.
func Parse(kind Kind, text string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Bool(b), nil
	case KindInt32:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Int32(int32(n)), nil
	case KindInt64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Int64(n), nil
	case KindFloat32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Float32(float32(f)), nil
	case KindString:
		return String(text), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot parse kind %s", ErrInvalidValue, kind)
	}
}

// FromInterface converts a decoded document value (as produced by TOML,
// YAML or JSON decoders) into a Value of the given kind. Integers and
// floats are range-checked against the target kind.
func FromInterface(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
	case KindInt32:
		if n, ok := toInt64(raw); ok {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return Value{}, fmt.Errorf("%w: %d overflows int32", ErrInvalidValue, n)
			}
			return Int32(int32(n)), nil
		}
	case KindInt64:
		if n, ok := toInt64(raw); ok {
			return Int64(n), nil
		}
	case KindFloat32:
		if f, ok := toFloat64(raw); ok {
			if !math.IsInf(f, 0) && math.IsInf(float64(float32(f)), 0) {
				return Value{}, fmt.Errorf("%w: %g overflows float32", ErrInvalidValue, f)
			}
			return Float32(float32(f)), nil
		}
	case KindString:
		if s, ok := raw.(string); ok {
			return String(s), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %T is not a valid %s", ErrInvalidValue, raw, kind)
}

func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	default:
		return 0, false
	}
}

func toFloat64(raw any) (float64, bool) {
	switch f := raw.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	default:
		if n, ok := toInt64(raw); ok {
			return float64(n), true
		}
		return 0, false
	}
}
