package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

const (
	EventTypeAccountCreated        = "AccountCreated"
	EventTypeAccountStatusChanged  = "AccountStatusChanged"
	EventTypeAccountBalanceUpdated = "AccountBalanceUpdated"

	AggregateTypeAccount = "Account"
)

// AccountCreatedEvent is raised when an account is added to the chart
type AccountCreatedEvent struct {
	shared.BaseDomainEvent
	Code     string               `json:"code"`
	Name     string               `json:"name"`
	Type     AccountType          `json:"type"`
	Subtype  AccountSubtype       `json:"subtype"`
	Currency valueobject.Currency `json:"currency"`
	ParentID *uuid.UUID           `json:"parent_id,omitempty"`
}

func NewAccountCreatedEvent(a *Account) *AccountCreatedEvent {
	return &AccountCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountCreated, AggregateTypeAccount, a.ID),
		Code:            a.Code,
		Name:            a.Name,
		Type:            a.Type,
		Subtype:         a.Subtype,
		Currency:        a.Currency,
		ParentID:        a.parentID,
	}
}

// AccountStatusChangedEvent is raised on activate, deactivate and close
type AccountStatusChangedEvent struct {
	shared.BaseDomainEvent
	Code           string        `json:"code"`
	PreviousStatus AccountStatus `json:"previous_status"`
	NewStatus      AccountStatus `json:"new_status"`
	ActorID        uuid.UUID     `json:"actor_id"`
}

func NewAccountStatusChangedEvent(a *Account, previous AccountStatus, actorID uuid.UUID) *AccountStatusChangedEvent {
	return &AccountStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountStatusChanged, AggregateTypeAccount, a.ID),
		Code:            a.Code,
		PreviousStatus:  previous,
		NewStatus:       a.status,
		ActorID:         actorID,
	}
}

// AccountBalanceUpdatedEvent is raised once per account for each posted journal entry
type AccountBalanceUpdatedEvent struct {
	shared.BaseDomainEvent
	Code            string            `json:"code"`
	JournalEntryID  uuid.UUID         `json:"journal_entry_id"`
	PreviousBalance valueobject.Money `json:"previous_balance"`
	NewBalance      valueobject.Money `json:"new_balance"`
}

func NewAccountBalanceUpdatedEvent(a *Account, previous valueobject.Money, entryID uuid.UUID) *AccountBalanceUpdatedEvent {
	return &AccountBalanceUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountBalanceUpdated, AggregateTypeAccount, a.ID),
		Code:            a.Code,
		JournalEntryID:  entryID,
		PreviousBalance: previous,
		NewBalance:      a.balance,
	}
}
