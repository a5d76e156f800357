package prefs

import (
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"

	"github.com/dshills/typedprefs/internal/prefs/store"
)

// Codec converts between a preference's typed value and its stored form.
type Codec[T any] interface {
	Encode(v T) (store.Value, error)
	Decode(v store.Value) (T, error)
}

// primitiveKind returns the stored kind for types whose underlying kind is
// one of the stored primitives. Narrower signed integers are widened to
// int32 and int to int64.
func primitiveKind(t reflect.Type) (store.Kind, bool) {
	if t == nil {
		return store.KindInvalid, false
	}
	switch t.Kind() {
	case reflect.Bool:
		return store.KindBool, true
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return store.KindInt32, true
	case reflect.Int, reflect.Int64:
		return store.KindInt64, true
	case reflect.Float32:
		return store.KindFloat32, true
	case reflect.String:
		return store.KindString, true
	default:
		return store.KindInvalid, false
	}
}

// primitiveCodec stores a value as the primitive of the same kind. Named
// types such as `type Theme int32` are converted through their underlying
// kind.
type primitiveCodec[T any] struct {
	kind store.Kind
}

func (c primitiveCodec[T]) Encode(v T) (store.Value, error) {
	rv := reflect.ValueOf(&v).Elem()
	switch c.kind {
	case store.KindBool:
		return store.Bool(rv.Bool()), nil
	case store.KindInt32:
		return store.Int32(int32(rv.Int())), nil
	case store.KindInt64:
		return store.Int64(rv.Int()), nil
	case store.KindFloat32:
		return store.Float32(float32(rv.Float())), nil
	case store.KindString:
		return store.String(rv.String()), nil
	}
	return store.Value{}, &CodecError{Op: OpEncode, Err: fmt.Errorf("%T is not a primitive", v)}
}

func (c primitiveCodec[T]) Decode(sv store.Value) (T, error) {
	var out T
	if sv.Kind() != c.kind {
		return out, &CodecError{Op: OpDecode, Err: fmt.Errorf("stored %s, want %s", sv.Kind(), c.kind)}
	}
	rv := reflect.ValueOf(&out).Elem()
	switch c.kind {
	case store.KindBool:
		b, _ := sv.AsBool()
		rv.SetBool(b)
	case store.KindInt32:
		n, _ := sv.AsInt32()
		if rv.OverflowInt(int64(n)) {
			return out, &CodecError{Op: OpDecode, Err: fmt.Errorf("%d overflows %s", n, rv.Type())}
		}
		rv.SetInt(int64(n))
	case store.KindInt64:
		n, _ := sv.AsInt64()
		if rv.OverflowInt(n) {
			return out, &CodecError{Op: OpDecode, Err: fmt.Errorf("%d overflows %s", n, rv.Type())}
		}
		rv.SetInt(n)
	case store.KindFloat32:
		f, _ := sv.AsFloat32()
		rv.SetFloat(float64(f))
	case store.KindString:
		s, _ := sv.AsString()
		rv.SetString(s)
	}
	return out, nil
}

// JSONCodec stores a value as JSON text. It is the default codec for
// non-primitive preferences.
type JSONCodec[T any] struct{}

// Encode implements Codec.
func (JSONCodec[T]) Encode(v T) (store.Value, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return store.Value{}, &CodecError{Op: OpEncode, Err: err}
	}
	return store.String(string(data)), nil
}

// Decode implements Codec.
func (JSONCodec[T]) Decode(sv store.Value) (T, error) {
	var out T
	text, ok := sv.AsString()
	if !ok {
		return out, &CodecError{Op: OpDecode, Err: fmt.Errorf("stored %s, want string", sv.Kind())}
	}
	if err := sonic.ConfigStd.UnmarshalFromString(text, &out); err != nil {
		return out, &CodecError{Op: OpDecode, Err: err}
	}
	return out, nil
}

// YAMLCodec stores a value as YAML text.
type YAMLCodec[T any] struct{}

// Encode implements Codec.
func (YAMLCodec[T]) Encode(v T) (store.Value, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return store.Value{}, &CodecError{Op: OpEncode, Err: err}
	}
	return store.String(string(data)), nil
}

// Decode implements Codec.
func (YAMLCodec[T]) Decode(sv store.Value) (T, error) {
	var out T
	text, ok := sv.AsString()
	if !ok {
		return out, &CodecError{Op: OpDecode, Err: fmt.Errorf("stored %s, want string", sv.Kind())}
	}
	if err := yaml.Unmarshal([]byte(text), &out); err != nil {
		return out, &CodecError{Op: OpDecode, Err: err}
	}
	return out, nil
}
