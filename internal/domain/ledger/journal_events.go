package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	EventTypeJournalEntryPosted   = "JournalEntryPosted"
	EventTypeJournalEntryReversed = "JournalEntryReversed"

	AggregateTypeJournalEntry = "JournalEntry"
)

// JournalEntryPostedEvent is raised when an entry moves to POSTED
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryNumber string        `json:"entry_number"`
	Date        time.Time     `json:"date"`
	Source      EntrySource   `json:"source"`
	PostedBy    uuid.UUID     `json:"posted_by"`
	Lines       []JournalLine `json:"lines"`
	ReversalOf  *uuid.UUID    `json:"reversal_of,omitempty"`
}

func NewJournalEntryPostedEvent(e *JournalEntry) *JournalEntryPostedEvent {
	ev := &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, AggregateTypeJournalEntry, e.ID),
		EntryNumber:     e.EntryNumber,
		Date:            e.Date,
		Source:          e.Source,
		Lines:           e.Lines(),
		ReversalOf:      e.reversalOf,
	}
	if e.postedBy != nil {
		ev.PostedBy = *e.postedBy
	}
	return ev
}

// JournalEntryReversedEvent is raised on the original entry when its mirror is posted
type JournalEntryReversedEvent struct {
	shared.BaseDomainEvent
	EntryNumber         string    `json:"entry_number"`
	ReversalEntryID     uuid.UUID `json:"reversal_entry_id"`
	ReversalEntryNumber string    `json:"reversal_entry_number"`
}

func NewJournalEntryReversedEvent(original, reversal *JournalEntry) *JournalEntryReversedEvent {
	return &JournalEntryReversedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeJournalEntryReversed, AggregateTypeJournalEntry, original.ID),
		EntryNumber:         original.EntryNumber,
		ReversalEntryID:     reversal.ID,
		ReversalEntryNumber: reversal.EntryNumber,
	}
}
