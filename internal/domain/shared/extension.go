package shared

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ExtensionKey names a typed extension field. The version is stored next to the value
// so a reader built against a different schema fails instead of misreading data.
type ExtensionKey[T any] struct {
	name    string
	version int
}

// NewExtensionKey declares an extension field of type T
func NewExtensionKey[T any](name string, version int) ExtensionKey[T] {
	if version < 1 {
		version = 1
	}
	return ExtensionKey[T]{name: name, version: version}
}

func (k ExtensionKey[T]) Name() string { return k.name }
func (k ExtensionKey[T]) Version() int { return k.version }

type extensionField struct {
	Version int             `json:"v"`
	Value   json.RawMessage `json:"value"`
}

// Extensions holds typed, versioned extension fields attached to an aggregate
type Extensions struct {
	fields map[string]extensionField
}

// SetExtension stores v under key, replacing any previous value
func SetExtension[T any](e *Extensions, key ExtensionKey[T], v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return NewValidationError("INVALID_EXTENSION", fmt.Sprintf("extension %s: %v", key.name, err))
	}
	if e.fields == nil {
		e.fields = make(map[string]extensionField)
	}
	e.fields[key.name] = extensionField{Version: key.version, Value: raw}
	return nil
}

// GetExtension reads the value stored under key. The boolean is false when the field is absent.
func GetExtension[T any](e Extensions, key ExtensionKey[T]) (T, bool, error) {
	var zero T
	f, ok := e.fields[key.name]
	if !ok {
		return zero, false, nil
	}
	if f.Version != key.version {
		return zero, true, NewInvariantError("EXTENSION_VERSION_MISMATCH",
			fmt.Sprintf("extension %s stored at version %d, reader expects %d", key.name, f.Version, key.version))
	}
	var v T
	if err := json.Unmarshal(f.Value, &v); err != nil {
		return zero, true, NewValidationError("INVALID_EXTENSION", fmt.Sprintf("extension %s: %v", key.name, err))
	}
	return v, true, nil
}

// RemoveExtension deletes the field named by key
func RemoveExtension[T any](e *Extensions, key ExtensionKey[T]) {
	delete(e.fields, key.name)
}

// Names returns the stored field names in sorted order
func (e Extensions) Names() []string {
	names := make([]string, 0, len(e.fields))
	for n := range e.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e Extensions) Len() int { return len(e.fields) }

func (e Extensions) MarshalJSON() ([]byte, error) {
	if e.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.fields)
}

func (e *Extensions) UnmarshalJSON(data []byte) error {
	fields := make(map[string]extensionField)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	e.fields = fields
	return nil
}
