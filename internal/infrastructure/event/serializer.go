package event

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Serializer encodes domain events as JSON for the outbox and decodes stored payloads
// back into typed events, upgrading old schema versions on the way
type Serializer struct {
	versions *VersionRegistry
	logger   *zap.Logger
}

func NewSerializer(logger *zap.Logger) *Serializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{versions: NewVersionRegistry(), logger: logger}
}

// Register adds an event type whose schema is still at version 1
func (s *Serializer) Register(eventType string, prototype shared.DomainEvent) {
	// Version 1 needs no upgraders, so Register cannot fail.
	_ = s.versions.Register(eventType, 1, prototype)
}

// RegisterVersioned adds an event type at currentVersion with its upgrade chain
func (s *Serializer) RegisterVersioned(eventType string, currentVersion int, prototype shared.DomainEvent, upgraders ...EventUpgrader) error {
	return s.versions.Register(eventType, currentVersion, prototype, upgraders...)
}

func (s *Serializer) Serialize(ev shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", ev.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data as eventType, upgrading older payloads first
func (s *Serializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	vt, ok := s.versions.lookup(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	if from := ExtractVersion(data); from < vt.current {
		s.logger.Debug("upgrading event payload",
			zap.String("event_type", eventType),
			zap.Int("from_version", from),
			zap.Int("to_version", vt.current),
		)
	}
	payload, _, err := s.versions.Upgrade(eventType, data)
	if err != nil {
		return nil, err
	}

	t := reflect.TypeOf(vt.prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(payload, ptr); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	ev, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("registered type for %s does not implement DomainEvent", eventType)
	}
	return ev, nil
}

func (s *Serializer) IsRegistered(eventType string) bool {
	_, ok := s.versions.lookup(eventType)
	return ok
}

func (s *Serializer) RegisteredTypes() []string {
	return s.versions.RegisteredTypes()
}

func (s *Serializer) Versions() *VersionRegistry {
	return s.versions
}
