package event

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
)

// OutboxPublisher writes domain events to the outbox. Called inside
// TransactionManager.WithinTransaction, the events commit with the ledger change.
type OutboxPublisher struct {
	repo       shared.OutboxRepository
	serializer *Serializer
	maxRetries int
}

// OutboxPublisherOption configures an OutboxPublisher
type OutboxPublisherOption func(*OutboxPublisher)

// WithMaxRetries overrides the delivery attempts given to each new entry
func WithMaxRetries(n int) OutboxPublisherOption {
	return func(p *OutboxPublisher) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

func NewOutboxPublisher(repo shared.OutboxRepository, serializer *Serializer, opts ...OutboxPublisherOption) *OutboxPublisher {
	p := &OutboxPublisher{repo: repo, serializer: serializer, maxRetries: shared.DefaultMaxRetries}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SaveEvents implements shared.OutboxEventSaver
func (p *OutboxPublisher) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, ev := range events {
		payload, err := p.serializer.Serialize(ev)
		if err != nil {
			return shared.NewInfrastructureError("outbox", err)
		}
		entry := shared.NewOutboxEntry(ev, payload)
		entry.MaxRetries = p.maxRetries
		entries = append(entries, entry)
	}
	return p.repo.Save(ctx, entries...)
}

// Publish lets the outbox stand in wherever an EventPublisher is expected
func (p *OutboxPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return p.SaveEvents(ctx, events...)
}

var (
	_ shared.OutboxEventSaver = (*OutboxPublisher)(nil)
	_ shared.EventPublisher   = (*OutboxPublisher)(nil)
)
