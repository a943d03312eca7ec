package tomlkeys

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML builds a Store from a YAML document. Nested mappings flatten
// to dotted keys exactly like TOML tables.
func DecodeYAML(data []byte) (Store, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Store{}, err
	}
	normalized, err := stringKeys(raw)
	if err != nil {
		return Store{}, err
	}
	return FromRaw(normalized), nil
}

func stringKeys(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		converted, err := convertYAMLValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = converted
	}
	return out, nil
}

func convertYAMLValue(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		return stringKeys(typed)
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for key, nested := range typed {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", key)
			}
			value, err := convertYAMLValue(nested)
			if err != nil {
				return nil, err
			}
			converted[name] = value
		}
		return converted, nil
	default:
		return value, nil
	}
}
