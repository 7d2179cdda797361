package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocationStrategies resolves payment allocation strategies by name; an empty
// name means the configured default
type AllocationStrategies interface {
	GetAllocationStrategy(name string) (strategy.PaymentAllocationStrategy, error)
}

// CreatePaymentCommand creates a DRAFT payment. Currency defaults to the bank account's.
type CreatePaymentCommand struct {
	Direction      string          `json:"direction"`
	PaymentNumber  string          `json:"payment_number,omitempty"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	BankAccountID  uuid.UUID       `json:"bank_account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	Method         string          `json:"method"`
	PaymentDate    time.Time       `json:"payment_date"`
	Reference      string          `json:"reference,omitempty"`
}

// AllocationInput assigns part of a payment to one document
type AllocationInput struct {
	DocumentID uuid.UUID       `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// AllocatePaymentCommand sets the allocations of a DRAFT payment. Without explicit
// allocations the named strategy spreads the amount over the counterparty's open documents.
type AllocatePaymentCommand struct {
	PaymentID   uuid.UUID         `json:"-"`
	Allocations []AllocationInput `json:"allocations,omitempty"`
	Strategy    string            `json:"strategy,omitempty"`
}

// PaymentQuery narrows ListPayments
type PaymentQuery struct {
	shared.Filter
	Direction      string
	Status         string
	CounterpartyID *uuid.UUID
	BankAccountID  *uuid.UUID
	Reconciled     *bool
}

// PaymentService manages disbursements and receipts and settles them against documents
type PaymentService struct {
	payments   ledger.PaymentRepository
	documents  ledger.DocumentRepository
	entries    ledger.JournalEntryRepository
	accounts   ledger.AccountRepository
	txm        shared.TransactionManager
	events     shared.OutboxEventSaver
	strategies AllocationStrategies
	poster     *poster
	profile    PostingProfile
	opts       serviceOptions
}

func NewPaymentService(
	payments ledger.PaymentRepository,
	documents ledger.DocumentRepository,
	entries ledger.JournalEntryRepository,
	accounts ledger.AccountRepository,
	txm shared.TransactionManager,
	events shared.OutboxEventSaver,
	strategies AllocationStrategies,
	profile PostingProfile,
	opts ...Option,
) *PaymentService {
	return &PaymentService{
		payments:   payments,
		documents:  documents,
		entries:    entries,
		accounts:   accounts,
		txm:        txm,
		events:     events,
		strategies: strategies,
		poster:     newPoster(entries, accounts, nil, events),
		profile:    profile,
		opts:       buildOptions(opts),
	}
}

func (s *PaymentService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (resp *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create", telemetry.SpanAttrPaymentDirection, cmd.Direction)
	defer func() { telemetry.End(span, err) }()

	if cmd.PaymentDate.IsZero() {
		cmd.PaymentDate = s.opts.now()
	}
	number := cmd.PaymentNumber
	if number == "" {
		number = nextNumber("PAY", cmd.PaymentDate)
	}

	var payment *ledger.Payment
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.payments.FindByNumber(ctx, number); err == nil {
			return &shared.DomainError{
				Code:    shared.ErrAlreadyExists.Code,
				Message: fmt.Sprintf("payment %s already exists", number),
				Kind:    shared.KindConflict,
			}
		} else if !isNotFound(err) {
			return err
		}

		bank, err := s.accounts.FindByID(ctx, cmd.BankAccountID)
		if err != nil {
			return err
		}
		currency := valueobject.Currency(cmd.Currency)
		if currency == "" {
			currency = bank.Currency
		}
		if currency != bank.Currency {
			return shared.NewInvariantError("CURRENCY_MISMATCH",
				fmt.Sprintf("payment in %s cannot move through bank account %s held in %s", currency, bank.Code, bank.Currency))
		}
		amount, err := valueobject.NewMoney(cmd.Amount, currency)
		if err != nil {
			return err
		}
		p, err := ledger.NewPayment(
			ledger.PaymentDirection(cmd.Direction),
			number,
			cmd.CounterpartyID,
			bank.ID,
			amount,
			ledger.PaymentMethod(cmd.Method),
			cmd.PaymentDate,
		)
		if err != nil {
			return err
		}
		p.Reference = cmd.Reference
		if err := s.payments.Save(ctx, p); err != nil {
			return err
		}
		payment = p
		return saveEvents(ctx, s.events, p)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("direction", string(payment.Direction)),
		zap.String("amount", payment.Amount.String()),
	)
	r := ToPaymentResponse(payment)
	return &r, nil
}

// AllocatePayment replaces the allocation set of a DRAFT payment. Explicit allocations
// are checked against each document; otherwise the strategy decides and must place
// the whole amount.
func (s *PaymentService) AllocatePayment(ctx context.Context, cmd AllocatePaymentCommand) (*PaymentResponse, error) {
	return s.mutate(ctx, "allocate", cmd.PaymentID, func(ctx context.Context, p *ledger.Payment) error {
		var (
			allocs []ledger.PaymentAllocation
			err    error
		)
		if len(cmd.Allocations) > 0 {
			allocs, err = s.manualAllocations(ctx, p, cmd.Allocations)
		} else {
			allocs, err = s.autoAllocations(ctx, p, cmd.Strategy)
		}
		if err != nil {
			return err
		}
		return p.AllocateToInvoices(allocs)
	})
}

func (s *PaymentService) manualAllocations(ctx context.Context, p *ledger.Payment, in []AllocationInput) ([]ledger.PaymentAllocation, error) {
	ids := make([]uuid.UUID, 0, len(in))
	for _, a := range in {
		ids = append(ids, a.DocumentID)
	}
	docs, err := s.documents.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.PaymentAllocation, 0, len(in))
	for _, a := range in {
		doc, ok := docs[a.DocumentID]
		if !ok {
			return nil, shared.NewNotFoundError("document", a.DocumentID)
		}
		if err := s.checkSettles(p, doc); err != nil {
			return nil, err
		}
		amount, err := valueobject.NewMoney(a.Amount, p.Amount.Currency())
		if err != nil {
			return nil, err
		}
		if over, _ := amount.GreaterThan(doc.OutstandingAmount()); over {
			return nil, shared.NewInvariantError(ledger.CodeExceedsOutstanding,
				fmt.Sprintf("allocation %s exceeds outstanding %s on %s", amount, doc.OutstandingAmount(), doc.Number))
		}
		out = append(out, ledger.PaymentAllocation{DocumentID: doc.ID, DocumentNumber: doc.Number, Amount: amount})
	}
	return out, nil
}

// checkSettles reports whether payment p may be applied to doc
func (s *PaymentService) checkSettles(p *ledger.Payment, doc *ledger.Document) error {
	if doc.Kind != p.Direction.DocumentKind() {
		return shared.NewValidationError("INVALID_ALLOCATION",
			fmt.Sprintf("a %s cannot settle %s %s", p.Direction, doc.Kind, doc.Number))
	}
	if doc.CounterpartyID != p.CounterpartyID {
		return shared.NewValidationError("INVALID_ALLOCATION",
			fmt.Sprintf("%s %s belongs to another counterparty", doc.Kind, doc.Number))
	}
	if !doc.Status().CanApplyPayment() {
		return shared.NewStateError(ledger.CodeInvalidTransition, doc.Status().String(),
			fmt.Sprintf("%s %s cannot take a payment", doc.Kind, doc.Number))
	}
	if doc.Currency != p.Amount.Currency() {
		return shared.NewInvariantError("CURRENCY_MISMATCH",
			fmt.Sprintf("%s %s is in %s, payment is in %s", doc.Kind, doc.Number, doc.Currency, p.Amount.Currency()))
	}
	return nil
}

func (s *PaymentService) autoAllocations(ctx context.Context, p *ledger.Payment, name string) ([]ledger.PaymentAllocation, error) {
	if s.strategies == nil {
		return nil, shared.NewValidationError("UNKNOWN_ALLOCATION_STRATEGY", "no allocation strategies are configured")
	}
	strat, err := s.strategies.GetAllocationStrategy(name)
	if err != nil {
		return nil, shared.NewValidationError("UNKNOWN_ALLOCATION_STRATEGY", err.Error())
	}
	docs, err := s.documents.FindOpen(ctx, p.Direction.DocumentKind(), p.CounterpartyID)
	if err != nil {
		return nil, err
	}
	open := make([]strategy.OpenDocument, 0, len(docs))
	for _, d := range docs {
		if d.Currency != p.Amount.Currency() || d.OutstandingAmount().IsZero() {
			continue
		}
		open = append(open, strategy.OpenDocument{
			ID:          d.ID,
			Number:      d.Number,
			IssueDate:   d.IssueDate,
			DueDate:     d.DueDate,
			Outstanding: d.OutstandingAmount(),
		})
	}
	res, err := strat.Allocate(p.Amount, open)
	if err != nil {
		return nil, err
	}
	if !res.Remaining.IsZero() {
		return nil, shared.NewInvariantError(ledger.CodeAllocationMismatch,
			fmt.Sprintf("open documents absorb only %s of payment %s; %s remains",
				res.TotalAllocated, p.PaymentNumber, res.Remaining))
	}
	out := make([]ledger.PaymentAllocation, 0, len(res.Allocations))
	for _, a := range res.Allocations {
		out = append(out, ledger.PaymentAllocation{DocumentID: a.DocumentID, DocumentNumber: a.Number, Amount: a.Amount})
	}
	s.opts.logger.Debug("Payment allocated by strategy",
		zap.String("payment_number", p.PaymentNumber),
		zap.String("strategy", strat.Name()),
		zap.Int("documents", len(out)),
	)
	return out, nil
}

func (s *PaymentService) Submit(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	return s.mutate(ctx, "submit", id, func(_ context.Context, p *ledger.Payment) error { return p.Submit() })
}

func (s *PaymentService) Approve(ctx context.Context, id, actorID uuid.UUID) (*PaymentResponse, error) {
	return s.mutate(ctx, "approve", id, func(_ context.Context, p *ledger.Payment) error { return p.Approve(actorID) })
}

// Issue releases an APPROVED payment. In one transaction it applies every allocation
// to its document, posts the bank settlement to the ledger and marks the payment ISSUED.
func (s *PaymentService) Issue(ctx context.Context, id, actorID uuid.UUID) (resp *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "issue", telemetry.SpanAttrPaymentID, id.String())
	defer func() { telemetry.End(span, err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	start := time.Now()
	var (
		payment *ledger.Payment
		entry   *ledger.JournalEntry
	)
	err = retryOnConflict(ctx, s.opts, "issue_payment", func(ctx context.Context) error {
		return s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
			p, err := s.payments.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if !p.Status().CanTransitionTo(ledger.PaymentStatusIssued) {
				return shared.NewStateError(ledger.CodeInvalidTransition, p.Status().String(),
					fmt.Sprintf("cannot issue payment %s", p.PaymentNumber))
			}

			docs, discounts, discount, err := s.applyAllocations(ctx, p)
			if err != nil {
				return err
			}
			e, err := s.poster.settlementEntry(ctx, s.profile, settlement{
				kind:        p.Direction.DocumentKind(),
				bank:        p.BankAccountID,
				cash:        p.Amount,
				discount:    discount,
				date:        p.PaymentDate,
				reference:   p.PaymentNumber,
				description: fmt.Sprintf("%s %s", p.Direction, p.PaymentNumber),
			})
			if err != nil {
				return err
			}
			if _, err := s.poster.post(ctx, e, actorID); err != nil {
				return err
			}
			entryID := e.ID
			if err := p.Issue(actorID, &entryID, discounts); err != nil {
				return err
			}

			aggregates := make([]shared.AggregateRoot, 0, len(docs)+1)
			for _, d := range docs {
				if err := s.documents.Save(ctx, d); err != nil {
					return err
				}
				aggregates = append(aggregates, d)
			}
			if err := s.payments.Save(ctx, p); err != nil {
				return err
			}
			aggregates = append(aggregates, p)
			payment, entry = p, e
			return saveEvents(ctx, s.events, aggregates...)
		})
	})
	if err != nil {
		return nil, err
	}

	s.opts.metrics.RecordPosting(ctx, string(entry.Source), debitTotals(entry), time.Since(start))
	s.opts.metrics.RecordPayment(ctx, string(payment.Direction))
	s.opts.logger.Info("Payment issued",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("journal_entry", entry.EntryNumber),
		zap.Int("allocations", len(payment.Allocations())),
	)
	r := ToPaymentResponse(payment)
	return &r, nil
}

// applyAllocations settles each allocation on its document. It returns the changed
// documents, the discount each granted, and the discount total.
func (s *PaymentService) applyAllocations(ctx context.Context, p *ledger.Payment) ([]*ledger.Document, map[uuid.UUID]valueobject.Money, valueobject.Money, error) {
	total := valueobject.Zero(p.Amount.Currency())
	allocs := p.Allocations()
	if len(allocs) == 0 {
		return nil, nil, total, nil
	}
	ids := make([]uuid.UUID, 0, len(allocs))
	for _, a := range allocs {
		ids = append(ids, a.DocumentID)
	}
	found, err := s.documents.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, total, err
	}

	docs := make([]*ledger.Document, 0, len(allocs))
	discounts := make(map[uuid.UUID]valueobject.Money, len(allocs))
	paymentID := p.ID
	for _, a := range allocs {
		doc, ok := found[a.DocumentID]
		if !ok {
			return nil, nil, total, shared.NewNotFoundError("document", a.DocumentID)
		}
		if err := s.checkSettles(p, doc); err != nil {
			return nil, nil, total, err
		}
		rec, err := doc.ProcessPayment(a.Amount, p.PaymentDate, p.Method, &paymentID)
		if err != nil {
			return nil, nil, total, fmt.Errorf("%s: %w", doc.Number, err)
		}
		discounts[doc.ID] = rec.Discount
		total, _ = total.Add(rec.Discount)
		docs = append(docs, doc)
	}
	return docs, discounts, total, nil
}

// VoidPayment cancels a payment. An issued payment that settled documents cannot be
// voided; an issued unallocated payment has its ledger entry reversed.
func (s *PaymentService) VoidPayment(ctx context.Context, id uuid.UUID, reason string, actorID uuid.UUID) (resp *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "void", telemetry.SpanAttrPaymentID, id.String())
	defer func() { telemetry.End(span, err) }()

	var payment *ledger.Payment
	err = retryOnConflict(ctx, s.opts, "void_payment", func(ctx context.Context) error {
		return s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
			p, err := s.payments.FindByID(ctx, id)
			if err != nil {
				return err
			}
			issued := p.Status() == ledger.PaymentStatusIssued
			if issued && len(p.Allocations()) > 0 {
				return shared.NewStateError("PAYMENT_APPLIED", p.Status().String(),
					fmt.Sprintf("payment %s has been applied to documents and cannot be voided", p.PaymentNumber))
			}
			if err := p.Void(reason); err != nil {
				return err
			}
			if issued && p.JournalEntryID != nil {
				if err := requireActor(actorID); err != nil {
					return err
				}
				original, err := s.entries.FindByID(ctx, *p.JournalEntryID)
				if err != nil {
					return err
				}
				date := s.opts.now()
				if _, err := s.poster.reverse(ctx, original, nextNumber("REV", date), date, actorID); err != nil {
					return err
				}
			}
			if err := s.payments.Save(ctx, p); err != nil {
				return err
			}
			payment = p
			return saveEvents(ctx, s.events, p)
		})
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Payment voided",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("reason", reason),
	)
	r := ToPaymentResponse(payment)
	return &r, nil
}

func (s *PaymentService) mutate(ctx context.Context, method string, id uuid.UUID, fn func(context.Context, *ledger.Payment) error) (resp *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", method, telemetry.SpanAttrPaymentID, id.String())
	defer func() { telemetry.End(span, err) }()

	var payment *ledger.Payment
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, p); err != nil {
			return err
		}
		if err := s.payments.Save(ctx, p); err != nil {
			return err
		}
		payment = p
		return saveEvents(ctx, s.events, p)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Payment changed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("operation", method),
		zap.String("status", payment.Status().String()),
	)
	r := ToPaymentResponse(payment)
	return &r, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := ToPaymentResponse(p)
	return &r, nil
}

func (s *PaymentService) GetByNumber(ctx context.Context, number string) (*PaymentResponse, error) {
	p, err := s.payments.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	r := ToPaymentResponse(p)
	return &r, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, q PaymentQuery) (*shared.Paginated[PaymentResponse], error) {
	filter := ledger.PaymentFilter{
		Filter:         q.Filter,
		CounterpartyID: q.CounterpartyID,
		BankAccountID:  q.BankAccountID,
		Reconciled:     q.Reconciled,
	}
	if q.Direction != "" {
		d := ledger.PaymentDirection(q.Direction)
		if !d.IsValid() {
			return nil, shared.NewValidationError("INVALID_DIRECTION", fmt.Sprintf("unknown payment direction %q", q.Direction))
		}
		filter.Direction = &d
	}
	if q.Status != "" {
		st := ledger.PaymentStatus(q.Status)
		filter.Status = &st
	}
	items, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := mapPage(items, total, q.Filter, ToPaymentResponse)
	return &page, nil
}
