// Package tomlkeys flattens settings documents into dotted, normalized keys
// ("Stress.Max_Workers" becomes "stress.max-workers") so that layers from
// different sources can be merged key by key.
package tomlkeys

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Store is an immutable set of flattened settings values.
type Store struct {
	values map[string]any
}

// Decode parses a TOML document.
func Decode(data []byte) (Store, error) {
	raw := map[string]any{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return Store{}, err
	}
	return FromRaw(raw), nil
}

// DecodeFile picks the decoder from the extension of path: YAML for .yaml
// and .yml, TOML otherwise.
func DecodeFile(path string, data []byte) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return Decode(data)
	}
}

// FromRaw flattens nested tables. When two spellings normalize to the same
// key, the lexically first one wins.
func FromRaw(raw map[string]any) Store {
	flat := make(map[string]any)
	flatten("", raw, flat)

	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	values := make(map[string]any, len(flat))
	for _, key := range keys {
		normalized := NormalizeKey(key)
		if _, seen := values[normalized]; seen {
			continue
		}
		values[normalized] = flat[key]
	}
	return Store{values: values}
}

// FromFlat builds a store from already dotted keys. Empty keys are dropped.
func FromFlat(flat map[string]any) Store {
	values := make(map[string]any, len(flat))
	for key, value := range flat {
		if normalized := NormalizeKey(key); normalized != "" {
			values[normalized] = value
		}
	}
	return Store{values: values}
}

// Merge returns a store holding s overlaid with every key of overlay.
func (s Store) Merge(overlay Store) Store {
	values := make(map[string]any, len(s.values)+len(overlay.values))
	for key, value := range s.values {
		values[key] = value
	}
	for key, value := range overlay.values {
		values[key] = value
	}
	return Store{values: values}
}

func (s Store) Len() int {
	return len(s.values)
}

// Keys lists the normalized keys in order.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s Store) Lookup(key string) (any, bool) {
	value, ok := s.values[NormalizeKey(key)]
	return value, ok
}

func (s Store) Bool(key string) (bool, bool) {
	value, ok := s.Lookup(key)
	if !ok {
		return false, false
	}
	typed, ok := value.(bool)
	return typed, ok
}

// Int accepts any integer type, and floats without a fractional part, as
// YAML and JSON-shaped overrides produce them.
func (s Store) Int(key string) (int64, bool) {
	value, ok := s.Lookup(key)
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int16:
		return int64(typed), true
	case int8:
		return int64(typed), true
	case uint64:
		if typed > math.MaxInt64 {
			return 0, false
		}
		return int64(typed), true
	case uint:
		if uint64(typed) > math.MaxInt64 {
			return 0, false
		}
		return int64(typed), true
	case uint32:
		return int64(typed), true
	case uint16:
		return int64(typed), true
	case uint8:
		return int64(typed), true
	case float64:
		if typed == math.Trunc(typed) && math.Abs(typed) < math.MaxInt64 {
			return int64(typed), true
		}
	}
	return 0, false
}

// Text returns string values with surrounding space trimmed.
func (s Store) Text(key string) (string, bool) {
	value, ok := s.Lookup(key)
	if !ok {
		return "", false
	}
	typed, ok := value.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(typed), true
}

func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	parts := strings.Split(key, ".")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), "_", "-")
	}
	return strings.Join(parts, ".")
}

func flatten(prefix string, raw map[string]any, out map[string]any) {
	for key, value := range raw {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(full, nested, out)
			continue
		}
		out[full] = value
	}
}
