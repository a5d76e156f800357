package prefs

import (
	"fmt"
	"reflect"

	"github.com/dshills/typedprefs/internal/prefs/store"
)

// Descriptor is the type-erased view of an Item. It is implemented only by
// Item values and lets handlers and text-driven tools work with items of
// any type.
type Descriptor interface {
	// Key returns the storage key.
	Key() string

	// DefaultAny returns the default value as an interface value.
	DefaultAny() any

	// IsPrimitive reports whether the value is stored as a primitive of
	// the same kind rather than as encoded text.
	IsPrimitive() bool

	// Kind returns the stored kind.
	Kind() store.Kind

	// Type returns the preference's Go type.
	Type() reflect.Type

	// Description returns the human-readable description, if any.
	Description() string

	// ParseText converts user-supplied text into a value of the
	// preference's type. Primitive items parse the text as their kind;
	// other items decode it with their codec.
	ParseText(text string) (any, error)

	// FormatText returns the stored text form of v, which must have the
	// preference's type. It is the inverse of ParseText.
	FormatText(v any) (string, error)

	encodeAny(v any) (store.Value, error)
	decodeAny(sv store.Value) (any, error)
	codecType() reflect.Type
}

// Item declares a typed preference: a key, a default value and the codec
// that maps the value to storage. Items are immutable values. Two items
// refer to the same preference when their keys are equal.
type Item[T any] struct {
	key         string
	def         T
	typ         reflect.Type
	kind        store.Kind
	primitive   bool
	codec       Codec[T]
	description string
}

// ItemOption configures an Item.
type ItemOption[T any] func(*Item[T])

// WithCodec sets the codec of a non-primitive item. Primitive items always
// store their value directly and ignore this option.
func WithCodec[T any](c Codec[T]) ItemOption[T] {
	return func(it *Item[T]) {
		if c != nil && !it.primitive {
			it.codec = c
		}
	}
}

// NewItem declares a preference stored under key with default def.
//
// Values whose type has an underlying kind of bool, a signed integer,
// float32 or string are stored as that primitive: int8 and int16 widen to
// int32, int to int64. Everything else, including float64, is encoded as
// JSON text unless WithCodec selects another codec.
func NewItem[T any](key string, def T, opts ...ItemOption[T]) Item[T] {
	typ := reflect.TypeFor[T]()
	it := Item[T]{
		key: key,
		def: def,
		typ: typ,
	}
	if kind, ok := primitiveKind(typ); ok {
		it.kind = kind
		it.primitive = true
		it.codec = primitiveCodec[T]{kind: kind}
	} else {
		it.kind = store.KindString
		it.codec = JSONCodec[T]{}
	}
	for _, opt := range opts {
		opt(&it)
	}
	return it
}

// Key returns the storage key.
func (it Item[T]) Key() string { return it.key }

// DefaultValue returns the default value.
func (it Item[T]) DefaultValue() T { return it.def }

// DefaultAny implements Descriptor.
func (it Item[T]) DefaultAny() any { return it.def }

// IsPrimitive implements Descriptor.
func (it Item[T]) IsPrimitive() bool { return it.primitive }

// Kind implements Descriptor.
func (it Item[T]) Kind() store.Kind { return it.kind }

// Type implements Descriptor.
func (it Item[T]) Type() reflect.Type { return it.typ }

// Description implements Descriptor.
func (it Item[T]) Description() string { return it.description }

// Describe returns a copy of the item carrying a human-readable
// description.
func (it Item[T]) Describe(desc string) Item[T] {
	it.description = desc
	return it
}

// Codec returns the item's codec.
func (it Item[T]) Codec() Codec[T] { return it.codec }

// String returns the key.
func (it Item[T]) String() string { return it.key }

func (it Item[T]) codecType() reflect.Type { return reflect.TypeOf(it.codec) }

// ParseText implements Descriptor.
func (it Item[T]) ParseText(text string) (any, error) {
	sv := store.String(text)
	if it.primitive {
		var err error
		if sv, err = store.Parse(it.kind, text); err != nil {
			return nil, &PreferenceError{Key: it.key, Err: err}
		}
	}
	v, err := it.codec.Decode(sv)
	if err != nil {
		return nil, withKey(err, it.key)
	}
	return v, nil
}

// FormatText implements Descriptor.
func (it Item[T]) FormatText(v any) (string, error) {
	sv, err := it.encodeAny(v)
	if err != nil {
		return "", err
	}
	return sv.Text(), nil
}

func (it Item[T]) encodeAny(v any) (store.Value, error) {
	tv, ok := v.(T)
	if !ok {
		return store.Value{}, &PreferenceError{
			Key: it.key,
			Err: fmt.Errorf("%w: got %T, want %s", ErrTypeMismatch, v, it.typ),
		}
	}
	sv, err := it.codec.Encode(tv)
	if err != nil {
		return store.Value{}, withKey(err, it.key)
	}
	return sv, nil
}

func (it Item[T]) decodeAny(sv store.Value) (any, error) {
	v, err := it.codec.Decode(sv)
	if err != nil {
		return nil, withKey(err, it.key)
	}
	return v, nil
}

// sameDescriptor reports whether a and b declare the same preference: equal
// keys, types, codecs and defaults.
func sameDescriptor(a, b Descriptor) bool {
	return a.Key() == b.Key() &&
		a.Type() == b.Type() &&
		a.codecType() == b.codecType() &&
		reflect.DeepEqual(a.DefaultAny(), b.DefaultAny())
}
