// Package tomlstore persists preferences in a TOML file.
//
// Each key becomes a table holding the value and its kind:
//
//	["ui.theme"]
//	kind = 'int32'
//	value = 2
package tomlstore

import (
	"bytes"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/typedprefs/internal/prefs/store/filestore"
)

// Format is the TOML document encoding.
type Format struct{}

// Name implements filestore.Format.
func (Format) Name() string { return "toml" }

// Marshal implements filestore.Format.
func (Format) Marshal(doc map[string]filestore.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implements filestore.Format.
func (Format) Unmarshal(data []byte) (map[string]filestore.Record, error) {
	doc := make(map[string]filestore.Record)
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Open returns a store backed by the TOML file at path.
func Open(path string, opts ...filestore.Option) (*filestore.Store, error) {
	return filestore.New(path, Format{}, opts...)
}
