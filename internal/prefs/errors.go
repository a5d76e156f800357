package prefs

import (
	"errors"
	"fmt"
)

// Errors returned by preference operations.
var (
	// ErrUnknownPreference indicates a get, set or clear with a descriptor
	// that is not registered with the handler, or whose type or default
	// differs from the registered one.
	ErrUnknownPreference = errors.New("unknown preference")

	// ErrDuplicateListener indicates the listener is already registered
	// for the preference. The existing subscription is kept.
	ErrDuplicateListener = errors.New("listener already registered")

	// ErrMissingDescriptor indicates a listener operation on a descriptor
	// that is not registered with the handler.
	ErrMissingDescriptor = errors.New("descriptor not registered")

	// ErrDuplicateKey indicates a registration of a key that is already
	// registered with a different type or default.
	ErrDuplicateKey = errors.New("preference key already registered")

	// ErrInvalidKey indicates an empty preference key.
	ErrInvalidKey = errors.New("invalid preference key")

	// ErrTypeMismatch indicates a value whose dynamic type differs from
	// the preference's type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrCodec indicates a value could not be encoded or decoded.
	ErrCodec = errors.New("codec error")
)

// PreferenceError attaches the preference key to an error.
type PreferenceError struct {
	// Key is the preference key.
	Key string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PreferenceError) Error() string {
	return fmt.Sprintf("preference %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *PreferenceError) Unwrap() error {
	return e.Err
}

// CodecOp is the direction of a failed codec call.
type CodecOp string

const (
	// OpEncode is a conversion from a typed value to a stored value.
	OpEncode CodecOp = "encode"
	// OpDecode is a conversion from a stored value to a typed value.
	OpDecode CodecOp = "decode"
)

// CodecError describes a failed conversion between a typed value and its
// stored form. It matches ErrCodec with errors.Is.
type CodecError struct {
	// Key is the preference key, when known.
	Key string
	// Op is the failed direction.
	Op CodecOp
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCodec.
func (e *CodecError) Is(target error) bool {
	return target == ErrCodec
}

func unknownPreference(key string) error {
	return &PreferenceError{Key: key, Err: ErrUnknownPreference}
}

// withKey fills in the key of a CodecError raised by a codec that does not
// know which preference it serves.
func withKey(err error, key string) error {
	var ce *CodecError
	if errors.As(err, &ce) && ce.Key == "" {
		return &CodecError{Key: key, Op: ce.Op, Err: ce.Err}
	}
	return err
}
