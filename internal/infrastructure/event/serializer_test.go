package event

import (
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSerializer_RoundTrip(t *testing.T) {
	s := NewSerializer(zap.NewNop())
	s.Register("AccountCreated", &testEvent{})

	ev := newTestEvent("AccountCreated")
	data, err := s.Serialize(ev)
	require.NoError(t, err)

	got, err := s.Deserialize("AccountCreated", data)
	require.NoError(t, err)

	decoded, ok := got.(*testEvent)
	require.True(t, ok)
	assert.Equal(t, ev.EventID(), decoded.EventID())
	assert.Equal(t, ev.AggregateID(), decoded.AggregateID())
	assert.Equal(t, "Account", decoded.AggregateType())
	assert.True(t, ev.OccurredAt().Equal(decoded.OccurredAt()))
	assert.Equal(t, "1000 Cash", decoded.Data)
}

func TestSerializer_Errors(t *testing.T) {
	s := NewSerializer(nil)
	s.Register("AccountCreated", &testEvent{})

	tests := []struct {
		name      string
		eventType string
		payload   string
		wantErr   string
	}{
		{"unknown type", "Nope", `{}`, "unknown event type"},
		{"invalid json", "AccountCreated", `{not json`, "unmarshal AccountCreated"},
		{"future version", "AccountCreated", `{"schema_version":3}`, "newer than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Deserialize(tt.eventType, []byte(tt.payload))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type memoV2Event struct {
	shared.BaseDomainEvent
	Description string `json:"description"`
	Currency    string `json:"currency"`
}

func TestSerializer_UpgradesOldPayloads(t *testing.T) {
	s := NewSerializer(zap.NewNop())
	require.NoError(t, s.RegisterVersioned("MemoChanged", 3, &memoV2Event{},
		RenameField(1, "memo", "description"),
		AddField(2, "currency", "USD"),
	))

	id := uuid.New()
	v1 := []byte(`{"id":"` + id.String() + `","type":"MemoChanged","memo":"rent"}`)

	got, err := s.Deserialize("MemoChanged", v1)
	require.NoError(t, err)

	ev := got.(*memoV2Event)
	assert.Equal(t, id, ev.EventID())
	assert.Equal(t, "rent", ev.Description)
	assert.Equal(t, "USD", ev.Currency)
	assert.Equal(t, 3, ev.SchemaVersion())

	current, ok := s.Versions().CurrentVersion("MemoChanged")
	assert.True(t, ok)
	assert.Equal(t, 3, current)
}

func TestVersionRegistry_Register(t *testing.T) {
	tests := []struct {
		name      string
		version   int
		upgraders []EventUpgrader
		wantErr   string
	}{
		{"version one needs nothing", 1, nil, ""},
		{"zero version", 0, nil, "at least 1"},
		{"missing step", 3, []EventUpgrader{AddField(1, "a", 1)}, "missing upgrader v2 -> v3"},
		{"complete chain", 3, []EventUpgrader{AddField(2, "b", 2), AddField(1, "a", 1)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewVersionRegistry()
			err := r.Register("X", tt.version, &testEvent{}, tt.upgraders...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type skippingUpgrader struct{}

func (skippingUpgrader) SourceVersion() int                     { return 1 }
func (skippingUpgrader) TargetVersion() int                     { return 3 }
func (skippingUpgrader) Upgrade(payload []byte) ([]byte, error) { return payload, nil }

func TestVersionRegistry_RejectsNonSequentialUpgrader(t *testing.T) {
	r := NewVersionRegistry()
	err := r.Register("X", 3, &testEvent{}, skippingUpgrader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequential")
}

func TestExtractVersion(t *testing.T) {
	assert.Equal(t, 1, ExtractVersion([]byte(`{}`)))
	assert.Equal(t, 1, ExtractVersion([]byte(`garbage`)))
	assert.Equal(t, 1, ExtractVersion([]byte(`{"schema_version":0}`)))
	assert.Equal(t, 4, ExtractVersion([]byte(`{"schema_version":4}`)))
}

func TestNewLedgerSerializer(t *testing.T) {
	s := NewLedgerSerializer(zap.NewNop())

	for _, eventType := range []string{
		ledger.EventTypeAccountCreated,
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeBillCreated,
		ledger.EventTypeInvoiceCreated,
		ledger.EventTypeDocumentPaid,
		ledger.EventTypePaymentProcessed,
		ledger.EventTypeReconciliationCompleted,
	} {
		assert.True(t, s.IsRegistered(eventType), eventType)
	}
	assert.Len(t, s.RegisteredTypes(), 14)

	actor := uuid.New()
	ev := &ledger.AccountStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(ledger.EventTypeAccountStatusChanged, ledger.AggregateTypeAccount, uuid.New()),
		Code:            "1000",
		PreviousStatus:  ledger.AccountStatusActive,
		NewStatus:       ledger.AccountStatusClosed,
		ActorID:         actor,
	}
	data, err := s.Serialize(ev)
	require.NoError(t, err)

	got, err := s.Deserialize(ledger.EventTypeAccountStatusChanged, data)
	require.NoError(t, err)
	decoded := got.(*ledger.AccountStatusChangedEvent)
	assert.Equal(t, ledger.AccountStatusClosed, decoded.NewStatus)
	assert.Equal(t, actor, decoded.ActorID)
	assert.Equal(t, "1000", decoded.Code)
}
