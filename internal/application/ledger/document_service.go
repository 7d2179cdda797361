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

// TaxCalculators resolves tax strategies by name
type TaxCalculators interface {
	GetTaxCalculator(name string) (strategy.TaxCalculator, error)
}

// LineItemInput prices one document line. Unit defaults to EA and TaxCalculator to
// the plain rate calculator.
type LineItemInput struct {
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit,omitempty"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxCalculator string          `json:"tax_calculator,omitempty"`
}

// EarlyPaymentInput grants Rate off payments made on or before DiscountDate
type EarlyPaymentInput struct {
	DiscountDate time.Time       `json:"discount_date"`
	Rate         decimal.Decimal `json:"rate"`
}

// CreateDocumentCommand creates a DRAFT bill or invoice
type CreateDocumentCommand struct {
	Kind           string             `json:"kind"`
	Number         string             `json:"number,omitempty"`
	CounterpartyID uuid.UUID          `json:"counterparty_id"`
	Currency       string             `json:"currency,omitempty"`
	IssueDate      time.Time          `json:"issue_date"`
	DueDate        time.Time          `json:"due_date"`
	Description    string             `json:"description,omitempty"`
	Lines          []LineItemInput    `json:"lines"`
	Discount       *decimal.Decimal   `json:"discount,omitempty"`
	EarlyPayment   *EarlyPaymentInput `json:"early_payment,omitempty"`
}

// ProcessDocumentPaymentCommand applies a payment directly to one document.
// With BankAccountID set, and GL posting enabled, the settlement is also posted.
type ProcessDocumentPaymentCommand struct {
	DocumentID    uuid.UUID       `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Method        string          `json:"method"`
	BankAccountID *uuid.UUID      `json:"bank_account_id,omitempty"`
	ActorID       uuid.UUID       `json:"-"`
}

// DocumentQuery narrows ListDocuments
type DocumentQuery struct {
	shared.Filter
	Kind           string
	Status         string
	CounterpartyID *uuid.UUID
	DueBefore      *time.Time
}

// DefaultOverdueBatchSize bounds how many documents one sweep transaction touches
const DefaultOverdueBatchSize = 200

// DocumentService manages vendor bills and customer invoices
type DocumentService struct {
	documents       ledger.DocumentRepository
	txm             shared.TransactionManager
	events          shared.OutboxEventSaver
	taxes           TaxCalculators
	units           *valueobject.UnitRegistry
	poster          *poster
	profile         PostingProfile
	postPayments    bool
	defaultCurrency string
	batchSize       int
	opts            serviceOptions
}

// DocumentServiceConfig carries the settings DocumentService reads from configuration
type DocumentServiceConfig struct {
	DefaultCurrency      string
	PostDocumentPayments bool
	Profile              PostingProfile
	OverdueBatchSize     int
}

func NewDocumentService(
	documents ledger.DocumentRepository,
	entries ledger.JournalEntryRepository,
	accounts ledger.AccountRepository,
	txm shared.TransactionManager,
	events shared.OutboxEventSaver,
	taxes TaxCalculators,
	cfg DocumentServiceConfig,
	opts ...Option,
) *DocumentService {
	if cfg.OverdueBatchSize <= 0 {
		cfg.OverdueBatchSize = DefaultOverdueBatchSize
	}
	o := buildOptions(opts)
	return &DocumentService{
		documents:       documents,
		txm:             txm,
		events:          events,
		taxes:           taxes,
		units:           o.units,
		poster:          newPoster(entries, accounts, nil, events),
		profile:         cfg.Profile,
		postPayments:    cfg.PostDocumentPayments,
		defaultCurrency: cfg.DefaultCurrency,
		batchSize:       cfg.OverdueBatchSize,
		opts:            o,
	}
}

func (s *DocumentService) CreateDocument(ctx context.Context, cmd CreateDocumentCommand) (resp *DocumentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "create", telemetry.SpanAttrDocumentKind, cmd.Kind)
	defer func() { telemetry.End(span, err) }()

	kind := ledger.DocumentKind(cmd.Kind)
	if !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", cmd.Kind))
	}
	currency := valueobject.Currency(cmd.Currency)
	if currency == "" {
		currency = valueobject.Currency(s.defaultCurrency)
	}
	if cmd.IssueDate.IsZero() {
		cmd.IssueDate = s.opts.now()
	}
	number := cmd.Number
	if number == "" {
		prefix := "BILL"
		if kind == ledger.DocumentKindInvoice {
			prefix = "INV"
		}
		number = nextNumber(prefix, cmd.IssueDate)
	}

	var doc *ledger.Document
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.documents.FindByNumber(ctx, kind, number); err == nil {
			return &shared.DomainError{
				Code:    shared.ErrAlreadyExists.Code,
				Message: fmt.Sprintf("%s %s already exists", kind, number),
				Kind:    shared.KindConflict,
			}
		} else if !isNotFound(err) {
			return err
		}

		var d *ledger.Document
		var err error
		if kind == ledger.DocumentKindBill {
			d, err = ledger.NewVendorBill(number, cmd.CounterpartyID, currency, cmd.IssueDate, cmd.DueDate)
		} else {
			d, err = ledger.NewCustomerInvoice(number, cmd.CounterpartyID, currency, cmd.IssueDate, cmd.DueDate)
		}
		if err != nil {
			return err
		}
		d.Description = cmd.Description
		for i, in := range cmd.Lines {
			item, err := s.lineItem(in, currency)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			if err := d.AddLineItem(item); err != nil {
				return err
			}
		}
		if cmd.Discount != nil {
			m, err := valueobject.NewMoney(*cmd.Discount, currency)
			if err != nil {
				return err
			}
			if err := d.SetDiscount(m); err != nil {
				return err
			}
		}
		if cmd.EarlyPayment != nil {
			if err := d.SetEarlyPaymentTerms(&ledger.EarlyPaymentTerms{
				DiscountDate: cmd.EarlyPayment.DiscountDate,
				DiscountRate: cmd.EarlyPayment.Rate,
			}); err != nil {
				return err
			}
		}
		if err := s.documents.Save(ctx, d); err != nil {
			return err
		}
		doc = d
		return saveEvents(ctx, s.events, d)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
		zap.String("number", doc.Number),
		zap.String("total", doc.TotalAmount().String()),
	)
	r := ToDocumentResponse(doc)
	return &r, nil
}

func (s *DocumentService) lineItem(in LineItemInput, currency valueobject.Currency) (ledger.LineItem, error) {
	unitCode := in.Unit
	if unitCode == "" {
		unitCode = "EA"
	}
	qty, err := s.units.NewQuantity(in.Quantity, unitCode)
	if err != nil {
		return ledger.LineItem{}, err
	}
	cost, err := valueobject.NewMoney(in.UnitCost, currency)
	if err != nil {
		return ledger.LineItem{}, err
	}
	var calc strategy.TaxCalculator
	if in.TaxCalculator != "" {
		if s.taxes == nil {
			return ledger.LineItem{}, shared.NewValidationError("UNKNOWN_TAX_CALCULATOR",
				fmt.Sprintf("tax calculator %q is not available", in.TaxCalculator))
		}
		if calc, err = s.taxes.GetTaxCalculator(in.TaxCalculator); err != nil {
			return ledger.LineItem{}, shared.NewValidationError("UNKNOWN_TAX_CALCULATOR", err.Error())
		}
	}
	return ledger.NewLineItem(in.Description, qty, cost, in.TaxRate, calc)
}

func (s *DocumentService) AddLineItem(ctx context.Context, id uuid.UUID, in LineItemInput) (*DocumentResponse, error) {
	return s.mutate(ctx, "add_line_item", id, func(d *ledger.Document) error {
		item, err := s.lineItem(in, d.Currency)
		if err != nil {
			return err
		}
		return d.AddLineItem(item)
	})
}

func (s *DocumentService) RemoveLineItem(ctx context.Context, id uuid.UUID, index int) (*DocumentResponse, error) {
	return s.mutate(ctx, "remove_line_item", id, func(d *ledger.Document) error {
		return d.RemoveLineItem(index)
	})
}

func (s *DocumentService) SetDiscount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*DocumentResponse, error) {
	return s.mutate(ctx, "set_discount", id, func(d *ledger.Document) error {
		m, err := valueobject.NewMoney(amount, d.Currency)
		if err != nil {
			return err
		}
		return d.SetDiscount(m)
	})
}

// SetEarlyPaymentTerms replaces the terms; nil clears them
func (s *DocumentService) SetEarlyPaymentTerms(ctx context.Context, id uuid.UUID, in *EarlyPaymentInput) (*DocumentResponse, error) {
	return s.mutate(ctx, "set_early_payment_terms", id, func(d *ledger.Document) error {
		if in == nil {
			return d.SetEarlyPaymentTerms(nil)
		}
		return d.SetEarlyPaymentTerms(&ledger.EarlyPaymentTerms{DiscountDate: in.DiscountDate, DiscountRate: in.Rate})
	})
}

func (s *DocumentService) Submit(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	return s.mutate(ctx, "submit", id, func(d *ledger.Document) error { return d.Submit() })
}

func (s *DocumentService) Approve(ctx context.Context, id, actorID uuid.UUID) (*DocumentResponse, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "approve", id, func(d *ledger.Document) error { return d.Approve(actorID) })
}

func (s *DocumentService) Reject(ctx context.Context, id uuid.UUID, reason string) (*DocumentResponse, error) {
	return s.mutate(ctx, "reject", id, func(d *ledger.Document) error { return d.Reject(reason) })
}

func (s *DocumentService) ReturnToDraft(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	return s.mutate(ctx, "return_to_draft", id, func(d *ledger.Document) error { return d.ReturnToDraft() })
}

// Issue sends an approved invoice to the customer
func (s *DocumentService) Issue(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	return s.mutate(ctx, "issue", id, func(d *ledger.Document) error { return d.Issue() })
}

func (s *DocumentService) Void(ctx context.Context, id uuid.UUID, reason string) (*DocumentResponse, error) {
	return s.mutate(ctx, "void", id, func(d *ledger.Document) error { return d.Void(reason) })
}

func (s *DocumentService) mutate(ctx context.Context, method string, id uuid.UUID, fn func(*ledger.Document) error) (resp *DocumentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", method, telemetry.SpanAttrDocumentID, id.String())
	defer func() { telemetry.End(span, err) }()

	var doc *ledger.Document
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		d, err := s.documents.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		if err := s.documents.Save(ctx, d); err != nil {
			return err
		}
		doc = d
		return saveEvents(ctx, s.events, d)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Document changed",
		zap.String("document_id", doc.ID.String()),
		zap.String("operation", method),
		zap.String("status", doc.Status().String()),
	)
	r := ToDocumentResponse(doc)
	return &r, nil
}

// ProcessPayment applies cash to a document, earning any early-payment discount.
// When GL posting is enabled and a bank account is given, the settlement is posted in
// the same transaction.
func (s *DocumentService) ProcessPayment(ctx context.Context, cmd ProcessDocumentPaymentCommand) (resp *DocumentPaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "process_payment", telemetry.SpanAttrDocumentID, cmd.DocumentID.String())
	defer func() { telemetry.End(span, err) }()

	post := s.postPayments && cmd.BankAccountID != nil
	if post {
		if err := requireActor(cmd.ActorID); err != nil {
			return nil, err
		}
	}
	if cmd.Date.IsZero() {
		cmd.Date = s.opts.now()
	}

	var (
		doc     *ledger.Document
		rec     ledger.DocumentPayment
		entryID *uuid.UUID
	)
	err = retryOnConflict(ctx, s.opts, "process_document_payment", func(ctx context.Context) error {
		entryID = nil
		return s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
			d, err := s.documents.FindByID(ctx, cmd.DocumentID)
			if err != nil {
				return err
			}
			amount, err := valueobject.NewMoney(cmd.Amount, d.Currency)
			if err != nil {
				return err
			}
			r, err := d.ProcessPayment(amount, cmd.Date, ledger.PaymentMethod(cmd.Method), nil)
			if err != nil {
				return err
			}
			if post {
				entry, err := s.poster.settlementEntry(ctx, s.profile, settlement{
					kind:        d.Kind,
					bank:        *cmd.BankAccountID,
					cash:        r.Amount,
					discount:    r.Discount,
					date:        r.Date,
					reference:   d.Number,
					description: fmt.Sprintf("Payment on %s %s", d.Kind, d.Number),
				})
				if err != nil {
					return err
				}
				if _, err := s.poster.post(ctx, entry, cmd.ActorID); err != nil {
					return err
				}
				id := entry.ID
				entryID = &id
			}
			if err := s.documents.Save(ctx, d); err != nil {
				return err
			}
			doc, rec = d, r
			return saveEvents(ctx, s.events, d)
		})
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Document payment applied",
		zap.String("document_id", doc.ID.String()),
		zap.String("amount", rec.Amount.String()),
		zap.String("discount", rec.Discount.String()),
		zap.String("status", doc.Status().String()),
		zap.Bool("posted", entryID != nil),
	)
	return &DocumentPaymentResponse{
		Document:       ToDocumentResponse(doc),
		Payment:        rec,
		JournalEntryID: entryID,
	}, nil
}

// MarkOverdue moves every document past due on asOf to OVERDUE. Work is done in
// batches, each in its own transaction, so one sweep never holds a long lock.
func (s *DocumentService) MarkOverdue(ctx context.Context, asOf time.Time) (result *OverdueSweepResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "mark_overdue")
	defer func() { telemetry.End(span, err) }()

	if asOf.IsZero() {
		asOf = s.opts.now()
	}
	result = &OverdueSweepResult{AsOf: ledger.DateOf(asOf)}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		var found, marked int
		err := s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
			docs, err := s.documents.FindPastDue(ctx, asOf, s.batchSize)
			if err != nil {
				return err
			}
			found, marked = len(docs), 0
			var changed []shared.AggregateRoot
			for _, d := range docs {
				ok, err := d.MarkOverdue(asOf)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := s.documents.Save(ctx, d); err != nil {
					return err
				}
				marked++
				if d.Kind == ledger.DocumentKindBill {
					result.Bills++
				} else {
					result.Invoices++
				}
				changed = append(changed, d)
			}
			return saveEvents(ctx, s.events, changed...)
		})
		if err != nil {
			return result, err
		}
		if found < s.batchSize || marked == 0 {
			break
		}
	}

	if result.Bills > 0 {
		s.opts.metrics.RecordOverdue(ctx, string(ledger.DocumentKindBill), result.Bills)
	}
	if result.Invoices > 0 {
		s.opts.metrics.RecordOverdue(ctx, string(ledger.DocumentKindInvoice), result.Invoices)
	}
	telemetry.SetAttributes(span, "bills", result.Bills, "invoices", result.Invoices)
	s.opts.logger.Info("Overdue sweep finished",
		zap.Time("as_of", result.AsOf),
		zap.Int("bills", result.Bills),
		zap.Int("invoices", result.Invoices),
	)
	return result, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	d, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := ToDocumentResponse(d)
	return &r, nil
}

func (s *DocumentService) GetByNumber(ctx context.Context, kind, number string) (*DocumentResponse, error) {
	k := ledger.DocumentKind(kind)
	if !k.IsValid() {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", kind))
	}
	d, err := s.documents.FindByNumber(ctx, k, number)
	if err != nil {
		return nil, err
	}
	r := ToDocumentResponse(d)
	return &r, nil
}

func (s *DocumentService) ListDocuments(ctx context.Context, q DocumentQuery) (*shared.Paginated[DocumentResponse], error) {
	filter := ledger.DocumentFilter{
		Filter:         q.Filter,
		CounterpartyID: q.CounterpartyID,
		DueBefore:      q.DueBefore,
	}
	if q.Kind != "" {
		k := ledger.DocumentKind(q.Kind)
		if !k.IsValid() {
			return nil, shared.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", q.Kind))
		}
		filter.Kind = &k
	}
	if q.Status != "" {
		st := ledger.DocumentStatus(q.Status)
		filter.Status = &st
	}
	items, total, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := mapPage(items, total, q.Filter, ToDocumentResponse)
	return &page, nil
}
