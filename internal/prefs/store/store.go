// Package store defines the backing key-value substrate that preferences
// are persisted in, together with the primitive value model it stores.
//
// A Store holds one namespace of flat string keys. Values are one of
// bool, int32, int64, float32 or string; richer types are encoded to
// strings by the prefs package before they reach a Store.
package store

import (
	"context"
	"errors"
	"maps"
	"sync"
)

var (
	// ErrInvalidValue indicates a value that cannot be represented as a
	// stored primitive of the requested kind.
	ErrInvalidValue = errors.New("store: invalid value")

	// ErrInvalidKey indicates an empty key.
	ErrInvalidKey = errors.New("store: invalid key")
)

// Store is a single namespace of persisted primitive values.
// Implementations must be safe for concurrent use.
type Store interface {
	// Name returns the namespace this store is bound to.
	Name() string

	// All returns a copy of every key and value in the namespace.
	All(ctx context.Context) (map[string]Value, error)

	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (Value, bool, error)

	// Put stores value under key. The write is committed when Put returns.
	Put(ctx context.Context, key string, value Value) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// RemoveAll deletes every key in the namespace.
	RemoveAll(ctx context.Context) error
}

// Memory is a Store held entirely in process memory.
type Memory struct {
	name string

	mu   sync.RWMutex
	data map[string]Value
}

// NewMemory creates an empty in-memory store for namespace name.
func NewMemory(name string) *Memory {
	return &Memory{
		name: name,
		data: make(map[string]Value),
	}
}

// Name implements Store.
func (m *Memory) Name() string { return m.name }

// All implements Store.
func (m *Memory) All(ctx context.Context) (map[string]Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data), nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key string) (Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, key string, value Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrInvalidKey
	}
	if !value.IsValid() {
		return ErrInvalidValue
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// RemoveAll implements Store.
func (m *Memory) RemoveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.data)
	return nil
}

var _ Store = (*Memory)(nil)
