package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// EventUpgrader rewrites a stored payload from one schema version to the next
type EventUpgrader interface {
	SourceVersion() int
	TargetVersion() int
	Upgrade(payload []byte) ([]byte, error)
}

// versionedType describes how to decode one event type at its current schema
type versionedType struct {
	current   int
	prototype shared.DomainEvent
	upgraders map[int]EventUpgrader
}

// VersionRegistry knows the current schema of every event type and how to bring
// older payloads up to it
type VersionRegistry struct {
	mu    sync.RWMutex
	types map[string]*versionedType
}

func NewVersionRegistry() *VersionRegistry {
	return &VersionRegistry{types: make(map[string]*versionedType)}
}

// Register adds eventType at currentVersion. upgraders must cover every step from 1
// to currentVersion, each moving exactly one version forward.
func (r *VersionRegistry) Register(eventType string, currentVersion int, prototype shared.DomainEvent, upgraders ...EventUpgrader) error {
	if currentVersion < 1 {
		return fmt.Errorf("event %s: version must be at least 1", eventType)
	}
	steps := make(map[int]EventUpgrader, len(upgraders))
	for _, u := range upgraders {
		if u.TargetVersion() != u.SourceVersion()+1 {
			return fmt.Errorf("event %s: upgrader must be sequential, got v%d -> v%d", eventType, u.SourceVersion(), u.TargetVersion())
		}
		steps[u.SourceVersion()] = u
	}
	for v := 1; v < currentVersion; v++ {
		if _, ok := steps[v]; !ok {
			return fmt.Errorf("event %s: missing upgrader v%d -> v%d", eventType, v, v+1)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[eventType] = &versionedType{current: currentVersion, prototype: prototype, upgraders: steps}
	return nil
}

func (r *VersionRegistry) lookup(eventType string) (*versionedType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vt, ok := r.types[eventType]
	return vt, ok
}

// CurrentVersion returns the schema version new payloads of eventType are written at
func (r *VersionRegistry) CurrentVersion(eventType string) (int, bool) {
	vt, ok := r.lookup(eventType)
	if !ok {
		return 0, false
	}
	return vt.current, true
}

// RegisteredTypes returns the registered event types in sorted order
func (r *VersionRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Upgrade brings payload from its stored version up to the current one
func (r *VersionRegistry) Upgrade(eventType string, payload []byte) ([]byte, int, error) {
	vt, ok := r.lookup(eventType)
	if !ok {
		return nil, 0, fmt.Errorf("unknown event type: %s", eventType)
	}
	from := ExtractVersion(payload)
	if from > vt.current {
		return nil, 0, fmt.Errorf("event %s: stored version %d is newer than %d", eventType, from, vt.current)
	}
	out := payload
	for v := from; v < vt.current; v++ {
		next, err := vt.upgraders[v].Upgrade(out)
		if err != nil {
			return nil, 0, fmt.Errorf("event %s: upgrade v%d -> v%d: %w", eventType, v, v+1, err)
		}
		out = next
	}
	return out, vt.current, nil
}

// ExtractVersion reads schema_version from a payload; absent or unreadable means 1
func ExtractVersion(payload []byte) int {
	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(payload, &header); err != nil || header.SchemaVersion < 1 {
		return 1
	}
	return header.SchemaVersion
}

// FieldUpgrader upgrades a payload by editing its decoded JSON object
type FieldUpgrader struct {
	source    int
	transform func(data map[string]any) error
}

func NewFieldUpgrader(source int, transform func(data map[string]any) error) *FieldUpgrader {
	return &FieldUpgrader{source: source, transform: transform}
}

func (u *FieldUpgrader) SourceVersion() int { return u.source }
func (u *FieldUpgrader) TargetVersion() int { return u.source + 1 }

func (u *FieldUpgrader) Upgrade(payload []byte) ([]byte, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := u.transform(data); err != nil {
		return nil, err
	}
	data["schema_version"] = u.TargetVersion()
	return json.Marshal(data)
}

// AddField upgrades by setting name to value when the field is absent
func AddField(source int, name string, value any) *FieldUpgrader {
	return NewFieldUpgrader(source, func(data map[string]any) error {
		if _, ok := data[name]; !ok {
			data[name] = value
		}
		return nil
	})
}

// RenameField upgrades by moving a field to a new key
func RenameField(source int, from, to string) *FieldUpgrader {
	return NewFieldUpgrader(source, func(data map[string]any) error {
		if v, ok := data[from]; ok {
			data[to] = v
			delete(data, from)
		}
		return nil
	})
}

var _ EventUpgrader = (*FieldUpgrader)(nil)
