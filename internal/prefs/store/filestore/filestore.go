// Package filestore implements store.Store on top of a single document
// file. The document encoding is supplied by a Format; see the tomlstore
// and yamlstore packages for concrete formats.
//
// Keys are flat: a dotted key such as "ui.theme" is a literal string, not a
// nested path. Each entry records the primitive kind next to the value so
// int32 and float32 survive encodings that only know int64 and float64.
//
// The file is re-read on every operation, so edits made by other writers
// are observed on the next read. Writes re-read, modify and replace the
// file atomically via a temporary file and rename.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/typedprefs/internal/prefs/store"
)

// Record is one entry of a preferences document.
type Record struct {
	Kind  string `toml:"kind" yaml:"kind"`
	Value any    `toml:"value" yaml:"value"`
}

// Format encodes and decodes a whole preferences document.
type Format interface {
	// Name returns the short format name, e.g. "toml".
	Name() string

	// Marshal encodes doc. Key order must be deterministic.
	Marshal(doc map[string]Record) ([]byte, error)

	// Unmarshal decodes data. A nil map is treated as empty.
	Unmarshal(data []byte) (map[string]Record, error)
}

// Store is a store.Store persisted in one file.
type Store struct {
	name   string
	path   string
	format Format
	perm   os.FileMode

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithName overrides the namespace name. The default is the file's base
// name without extension.
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// WithPerm sets the permission bits of newly written files.
func WithPerm(perm os.FileMode) Option {
	return func(s *Store) {
		s.perm = perm
	}
}

// New creates a Store for path. The file does not need to exist; it is
// created on the first write.
func New(path string, format Format, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("filestore: empty path")
	}
	if format == nil {
		return nil, errors.New("filestore: nil format")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolving %s: %w", path, err)
	}

	base := filepath.Base(abs)
	s := &Store{
		name:   strings.TrimSuffix(base, filepath.Ext(base)),
		path:   abs,
		format: format,
		perm:   0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements store.Store.
func (s *Store) Name() string { return s.name }

// Path returns the absolute path of the backing file.
func (s *Store) Path() string { return s.path }

// Format returns the document format.
func (s *Store) Format() Format { return s.format }

// All implements store.Store.
func (s *Store) All(ctx context.Context) (map[string]store.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (store.Value, bool, error) {
	all, err := s.All(ctx)
	if err != nil {
		return store.Value{}, false, err
	}
	v, ok := all[key]
	return v, ok, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, key string, value store.Value) error {
	if key == "" {
		return store.ErrInvalidKey
	}
	if !value.IsValid() {
		return store.ErrInvalidValue
	}
	return s.update(ctx, func(data map[string]store.Value) {
		data[key] = value
	})
}

// Remove implements store.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.update(ctx, func(data map[string]store.Value) {
		delete(data, key)
	})
}

// RemoveAll implements store.Store. The file is kept and left empty.
func (s *Store) RemoveAll(ctx context.Context) error {
	return s.update(ctx, func(data map[string]store.Value) {
		clear(data)
	})
}

// update re-reads the document, applies fn and writes the result back.
func (s *Store) update(ctx context.Context, fn func(map[string]store.Value)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	fn(data)
	return s.write(data)
}

func (s *Store) read() (map[string]store.Value, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]store.Value), nil
		}
		return nil, fmt.Errorf("filestore: reading %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return make(map[string]store.Value), nil
	}

	doc, err := s.format.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("filestore: parsing %s as %s: %w", s.path, s.format.Name(), err)
	}

	data := make(map[string]store.Value, len(doc))
	for key, rec := range doc {
		v, err := decodeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("filestore: %s: key %q: %w", s.path, key, err)
		}
		data[key] = v
	}
	return data, nil
}

func (s *Store) write(data map[string]store.Value) error {
	doc := make(map[string]Record, len(data))
	for key, v := range data {
		doc[key] = Record{Kind: v.Kind().String(), Value: v.Interface()}
	}

	raw, err := s.format.Marshal(doc)
	if err != nil {
		return fmt.Errorf("filestore: encoding %s: %w", s.format.Name(), err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("filestore: creating directory: %w", err)
	}
	return atomicWrite(s.path, raw, s.perm)
}

// decodeRecord converts a document entry into a Value. Entries written by
// hand may omit the kind, in which case it is inferred from the value.
func decodeRecord(rec Record) (store.Value, error) {
	if rec.Kind == "" {
		return inferValue(rec.Value)
	}
	kind, err := store.ParseKind(rec.Kind)
	if err != nil {
		return store.Value{}, err
	}
	return store.FromInterface(kind, rec.Value)
}

func inferValue(raw any) (store.Value, error) {
	switch raw.(type) {
	case bool:
		return store.FromInterface(store.KindBool, raw)
	case string:
		return store.FromInterface(store.KindString, raw)
	case float32, float64:
		return store.FromInterface(store.KindFloat32, raw)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return store.FromInterface(store.KindInt64, raw)
	default:
		return store.Value{}, fmt.Errorf("%w: unsupported value %T", store.ErrInvalidValue, raw)
	}
}

// atomicWrite writes data to a sibling temporary file and renames it over
// path.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp." + uuid.NewString()

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("filestore: creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("filestore: writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("filestore: syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filestore: closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filestore: replacing %s: %w", path, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
