package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Metrics receives the measurements services record directly. Everything that
// domain events already carry is counted by the event bus subscriber instead.
type Metrics interface {
	RecordPosting(ctx context.Context, source string, debits map[string]decimal.Decimal, took time.Duration)
	RecordConflict(ctx context.Context, operation string)
	RecordOverdue(ctx context.Context, kind string, n int)
	RecordReconciliation(ctx context.Context, outcome string)
	RecordPayment(ctx context.Context, direction string)
	RecordUnmatched(ctx context.Context, lines int)
}

type noopMetrics struct{}

func (noopMetrics) RecordPosting(context.Context, string, map[string]decimal.Decimal, time.Duration) {
}
func (noopMetrics) RecordConflict(context.Context, string)       {}
func (noopMetrics) RecordOverdue(context.Context, string, int)   {}
func (noopMetrics) RecordReconciliation(context.Context, string) {}
func (noopMetrics) RecordPayment(context.Context, string)        {}
func (noopMetrics) RecordUnmatched(context.Context, int)         {}

// DefaultPostingRetries is how many times a posting is attempted when it keeps
// losing optimistic lock races
const DefaultPostingRetries = 3

type serviceOptions struct {
	logger          *zap.Logger
	metrics         Metrics
	now             func() time.Time
	retries         int
	statementFormat csvimport.StatementFormat
	units           *valueobject.UnitRegistry
}

// Option configures a ledger application service
type Option func(*serviceOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the time source used for generated numbers and stamps
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPostingRetries sets how many attempts a conflicting posting gets
func WithPostingRetries(n int) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.retries = n
		}
	}
}

// WithStatementDelimiter sets the field separator of imported bank statements
func WithStatementDelimiter(d rune) Option {
	return func(o *serviceOptions) {
		if d != 0 {
			o.statementFormat.Delimiter = d
		}
	}
}

// WithUnitRegistry sets the units line item quantities are resolved against
func WithUnitRegistry(units *valueobject.UnitRegistry) Option {
	return func(o *serviceOptions) {
		if units != nil {
			o.units = units
		}
	}
}

func buildOptions(opts []Option) serviceOptions {
	o := serviceOptions{
		logger:          zap.NewNop(),
		metrics:         noopMetrics{},
		now:             time.Now,
		retries:         DefaultPostingRetries,
		statementFormat: csvimport.DefaultStatementFormat(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.units == nil {
		o.units = valueobject.DefaultUnitRegistry()
	}
	return o
}

// nextNumber generates numbers like JE-20240315-9F86D081
func nextNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}

// drainEvents collects and clears the pending events of every aggregate
func drainEvents(aggregates ...shared.AggregateRoot) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, a := range aggregates {
		if a == nil {
			continue
		}
		events = append(events, a.GetDomainEvents()...)
		a.ClearDomainEvents()
	}
	return events
}

// saveEvents writes the pending events of aggregates to the outbox in the
// transaction carried by ctx
func saveEvents(ctx context.Context, saver shared.OutboxEventSaver, aggregates ...shared.AggregateRoot) error {
	events := drainEvents(aggregates...)
	if saver == nil || len(events) == 0 {
		return nil
	}
	if err := saver.SaveEvents(ctx, events...); err != nil {
		return fmt.Errorf("save domain events: %w", err)
	}
	return nil
}

// retryOnConflict runs fn until it succeeds, fails with something other than a
// concurrency conflict, or attempts run out. Each attempt must reload its state.
func retryOnConflict(ctx context.Context, o serviceOptions, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= o.retries; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			if attempt > 1 {
				telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.SpanAttrAttempt, attempt)
			}
			return err
		}
		o.metrics.RecordConflict(ctx, operation)
		o.logger.Warn("Concurrency conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

func requireActor(actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return shared.NewValidationError("INVALID_ACTOR", "an authenticated actor is required")
	}
	return nil
}

func listPage(f shared.Filter) (int, int) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return page, f.Limit()
}
