// Package catalogfile reads device catalogs from disk and watches them for
// changes.
package catalogfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/devsel/internal/device"
)

// Load reads a catalog file. Files ending in .json are parsed as JSON,
// anything else as YAML. The root must carry a device mapping.
func Load(path string) (device.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// Parse decodes catalog bytes. Mapping keys are normalised to strings so
// numeric device identifiers such as 1 or 2.0 become "1" and "2".
func Parse(data []byte, isJSON bool) (device.Source, error) {
	var root any
	if isJSON {
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	root, err := normalise(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	m, ok := root.(map[string]any)
	if !ok {
		return nil, ErrNoDeviceSection
	}
	if _, ok := m["device"].(map[string]any); !ok {
		return nil, ErrNoDeviceSection
	}
	return device.Source(m), nil
}

// normalise converts map[any]any produced by the YAML decoder into
// map[string]any, recursively. Two keys that render to the same string,
// such as 1 and "1", are an error.
func normalise(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			n, err := normalise(elem)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			key := fmt.Sprint(k)
			if _, dup := m[key]; dup {
				return nil, fmt.Errorf("duplicate key %q", key)
			}
			n, err := normalise(elem)
			if err != nil {
				return nil, err
			}
			m[key] = n
		}
		return m, nil
	case []any:
		for i, elem := range val {
			n, err := normalise(elem)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	default:
		return v, nil
	}
}
