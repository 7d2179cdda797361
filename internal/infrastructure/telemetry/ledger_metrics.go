package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerMetrics records the business activity of the ledger.
// It subscribes to the event bus as a wildcard handler and observes handler outcomes,
// so services only call it for things events do not carry (conflicts, durations).
type LedgerMetrics struct {
	logger *zap.Logger

	events          *Counter
	deliveries      *Counter
	postings        *Counter
	postedAmount    *FloatCounter
	postingDuration *Histogram
	conflicts       *Counter
	overdueMarked   *Counter
	reconciliations *Counter
	payments        *Counter
	unmatched       *Gauge
}

func NewLedgerMetrics(meter metric.Meter, logger *zap.Logger) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger}

	var err error
	if m.events, err = NewCounter(meter, "ledger_domain_events_total", "Domain events published", "{event}"); err != nil {
		return nil, err
	}
	if m.deliveries, err = NewCounter(meter, "ledger_event_deliveries_total", "Event handler invocations by outcome", "{delivery}"); err != nil {
		return nil, err
	}
	if m.postings, err = NewCounter(meter, "ledger_journal_postings_total", "Journal entries posted", "{entry}"); err != nil {
		return nil, err
	}
	if m.postedAmount, err = NewFloatCounter(meter, "ledger_journal_posted_amount", "Sum of debits posted", "{currency}"); err != nil {
		return nil, err
	}
	if m.postingDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_journal_posting_duration_seconds",
		Description: "Time to post one journal entry including retries",
		Unit:        "s",
		Boundaries:  DurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter, "ledger_posting_conflicts_total", "Optimistic lock conflicts hit while posting", "{conflict}"); err != nil {
		return nil, err
	}
	if m.overdueMarked, err = NewCounter(meter, "ledger_documents_overdue_total", "Documents moved to OVERDUE by the sweep", "{document}"); err != nil {
		return nil, err
	}
	if m.reconciliations, err = NewCounter(meter, "ledger_reconciliations_total", "Reconciliation statements closed by outcome", "{statement}"); err != nil {
		return nil, err
	}
	if m.payments, err = NewCounter(meter, "ledger_payments_issued_total", "Payments issued by direction", "{payment}"); err != nil {
		return nil, err
	}
	if m.unmatched, err = NewGauge(meter, "ledger_reconciliation_unmatched_lines", "Bank lines left unmatched by the last auto-match", "{line}"); err != nil {
		return nil, err
	}
	return m, nil
}

// Handle counts every published domain event by type
func (m *LedgerMetrics) Handle(ctx context.Context, ev shared.DomainEvent) error {
	m.events.Inc(ctx, AttrEventType.String(ev.EventType()))
	return nil
}

// EventTypes is empty so the bus delivers every event
func (m *LedgerMetrics) EventTypes() []string { return nil }

// EventDelivered records the outcome of one handler invocation
func (m *LedgerMetrics) EventDelivered(ctx context.Context, eventType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.deliveries.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// RecordPosting records a posted entry: its debit total per currency and how long it took
func (m *LedgerMetrics) RecordPosting(ctx context.Context, source string, debits map[string]decimal.Decimal, took time.Duration) {
	m.postings.Inc(ctx, AttrEntrySource.String(source))
	for cur, amt := range debits {
		m.postedAmount.Add(ctx, amt.InexactFloat64(), AttrCurrency.String(cur))
	}
	m.postingDuration.RecordDuration(ctx, took, AttrEntrySource.String(source))
}

func (m *LedgerMetrics) RecordConflict(ctx context.Context, operation string) {
	m.conflicts.Inc(ctx, AttrOutcome.String(operation))
}

func (m *LedgerMetrics) RecordOverdue(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}
	m.overdueMarked.Add(ctx, int64(n), AttrDocumentKind.String(kind))
}

// RecordReconciliation counts a closed statement; outcome is the final status
func (m *LedgerMetrics) RecordReconciliation(ctx context.Context, outcome string) {
	m.reconciliations.Inc(ctx, AttrOutcome.String(outcome))
}

func (m *LedgerMetrics) RecordPayment(ctx context.Context, direction string) {
	m.payments.Inc(ctx, AttrDirection.String(direction))
}

// RecordUnmatched records how many bank lines the last auto-match could not pair
func (m *LedgerMetrics) RecordUnmatched(ctx context.Context, lines int) {
	m.unmatched.Record(ctx, int64(lines))
}

var _ shared.EventHandler = (*LedgerMetrics)(nil)
