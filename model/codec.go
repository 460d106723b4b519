package model

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format selects the serialization surface used by Encode/Decode. Neither
// reads from nor writes to a named file — on-disk config loading remains
// out of scope; these are programmatic (de)serialization entry points
// satisfying the round-trip law in spec.md §8.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Encode writes m to w in the given format.
func Encode(w io.Writer, format Format, m *ModelSpec) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(m)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	default:
		return fmt.Errorf("model: unknown format %q", format)
	}
}

// Decode reads a ModelSpec from r in the given format. The result is not
// validated; callers must call Validate() before building an engine.
func Decode(r io.Reader, format Format) (*ModelSpec, error) {
	var m ModelSpec
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("model: decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("model: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("model: unknown format %q", format)
	}
	return &m, nil
}
