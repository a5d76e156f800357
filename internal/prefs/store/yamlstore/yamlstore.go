// Package yamlstore persists preferences in a YAML file.
//
// yaml.Marshal sorts map keys, so the file is deterministic and
// diff-friendly:
//
//	ui.theme:
//	    kind: int32
//	    value: 2
package yamlstore

import (
	"gopkg.in/yaml.v3"

	"github.com/dshills/typedprefs/internal/prefs/store/filestore"
)

// Format is the YAML document encoding.
type Format struct{}

// Name implements filestore.Format.
func (Format) Name() string { return "yaml" }

// Marshal implements filestore.Format.
func (Format) Marshal(doc map[string]filestore.Record) ([]byte, error) {
	return yaml.Marshal(doc)
}

// Unmarshal implements filestore.Format.
func (Format) Unmarshal(data []byte) (map[string]filestore.Record, error) {
	doc := make(map[string]filestore.Record)
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Open returns a store backed by the YAML file at path.
func Open(path string, opts ...filestore.Option) (*filestore.Store, error) {
	return filestore.New(path, Format{}, opts...)
}
