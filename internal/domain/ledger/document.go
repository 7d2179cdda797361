package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DocumentKind distinguishes payables from receivables
type DocumentKind string

const (
	DocumentKindBill    DocumentKind = "BILL"
	DocumentKindInvoice DocumentKind = "INVOICE"
)

func (k DocumentKind) IsValid() bool { return k == DocumentKindBill || k == DocumentKindInvoice }

func (k DocumentKind) label() string {
	if k == DocumentKindBill {
		return "vendor bill"
	}
	return "customer invoice"
}

// DocumentStatus is the lifecycle state of a bill or invoice
type DocumentStatus string

const (
	DocumentStatusDraft           DocumentStatus = "DRAFT"
	DocumentStatusPendingApproval DocumentStatus = "PENDING_APPROVAL"
	DocumentStatusApproved        DocumentStatus = "APPROVED"
	DocumentStatusIssued          DocumentStatus = "ISSUED"
	DocumentStatusPartiallyPaid   DocumentStatus = "PARTIALLY_PAID"
	DocumentStatusPaid            DocumentStatus = "PAID"
	DocumentStatusOverdue         DocumentStatus = "OVERDUE"
	DocumentStatusVoided          DocumentStatus = "VOIDED"
	DocumentStatusRejected        DocumentStatus = "REJECTED"
)

func (s DocumentStatus) String() string { return string(s) }

// IsTerminal is true for PAID and VOIDED
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusPaid || s == DocumentStatusVoided
}

// documentAction names a lifecycle operation
type documentAction string

const (
	actionEdit    documentAction = "edit"
	actionSubmit  documentAction = "submit"
	actionApprove documentAction = "approve"
	actionReject  documentAction = "reject"
	actionReopen  documentAction = "return to draft"
	actionIssue   documentAction = "issue"
	actionPay     documentAction = "apply payment to"
	actionVoid    documentAction = "void"
	actionOverdue documentAction = "mark overdue"
)

// documentLifecycle lists the states each action is allowed from
var documentLifecycle = map[documentAction][]DocumentStatus{
	actionEdit:    {DocumentStatusDraft, DocumentStatusRejected},
	actionSubmit:  {DocumentStatusDraft},
	actionApprove: {DocumentStatusPendingApproval},
	actionReject:  {DocumentStatusPendingApproval, DocumentStatusApproved, DocumentStatusIssued},
	actionReopen:  {DocumentStatusRejected},
	actionIssue:   {DocumentStatusApproved},
	actionPay:     {DocumentStatusApproved, DocumentStatusIssued, DocumentStatusPartiallyPaid, DocumentStatusOverdue},
	actionVoid: {DocumentStatusDraft, DocumentStatusPendingApproval, DocumentStatusApproved,
		DocumentStatusIssued, DocumentStatusOverdue, DocumentStatusRejected},
	actionOverdue: {DocumentStatusApproved, DocumentStatusIssued, DocumentStatusPartiallyPaid},
}

func (s DocumentStatus) allows(a documentAction) bool {
	for _, st := range documentLifecycle[a] {
		if st == s {
			return true
		}
	}
	return false
}

// CanApplyPayment reports whether payments may be applied in this state
func (s DocumentStatus) CanApplyPayment() bool { return s.allows(actionPay) }

// PayableStatuses lists the states a payment can be applied in
func PayableStatuses() []DocumentStatus {
	return append([]DocumentStatus(nil), documentLifecycle[actionPay]...)
}

// OverdueCandidateStatuses lists the states MarkOverdue acts on
func OverdueCandidateStatuses() []DocumentStatus {
	return append([]DocumentStatus(nil), documentLifecycle[actionOverdue]...)
}

// DocumentPayment records one payment applied to a document
type DocumentPayment struct {
	ID        uuid.UUID         `json:"id"`
	PaymentID *uuid.UUID        `json:"payment_id,omitempty"`
	Amount    valueobject.Money `json:"amount"`
	Discount  valueobject.Money `json:"discount"`
	Date      time.Time         `json:"date"`
	Method    PaymentMethod     `json:"method"`
}

// Settled is the cash amount plus any early-payment discount
func (p DocumentPayment) Settled() valueobject.Money {
	s, _ := p.Amount.Add(p.Discount)
	return s
}

// Document is a vendor bill or a customer invoice
type Document struct {
	shared.BaseAggregateRoot
	Kind            DocumentKind         `json:"kind"`
	Number          string               `json:"number"`
	CounterpartyID  uuid.UUID            `json:"counterparty_id"`
	Currency        valueobject.Currency `json:"currency"`
	IssueDate       time.Time            `json:"issue_date"`
	DueDate         time.Time            `json:"due_date"`
	Description     string               `json:"description"`
	Extensions      shared.Extensions    `json:"extensions"`
	ApprovedBy      *uuid.UUID           `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time           `json:"approved_at,omitempty"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	VoidReason      string               `json:"void_reason,omitempty"`
	lineItems       []LineItem
	subtotal        valueobject.Money
	taxAmount       valueobject.Money
	discountAmount  valueobject.Money
	totalAmount     valueobject.Money
	paidAmount      valueobject.Money
	discountTaken   valueobject.Money
	earlyPayment    *EarlyPaymentTerms
	payments        []DocumentPayment
	status          DocumentStatus
}

// NewVendorBill creates a DRAFT bill owed to a vendor
func NewVendorBill(number string, vendorID uuid.UUID, currency valueobject.Currency, issueDate, dueDate time.Time) (*Document, error) {
	return newDocument(DocumentKindBill, number, vendorID, currency, issueDate, dueDate)
}

// NewCustomerInvoice creates a DRAFT invoice owed by a customer
func NewCustomerInvoice(number string, customerID uuid.UUID, currency valueobject.Currency, issueDate, dueDate time.Time) (*Document, error) {
	return newDocument(DocumentKindInvoice, number, customerID, currency, issueDate, dueDate)
}

func newDocument(
	kind DocumentKind,
	number string,
	counterpartyID uuid.UUID,
	currency valueobject.Currency,
	issueDate, dueDate time.Time,
) (*Document, error) {
	number = strings.TrimSpace(number)
	if number == "" || len(number) > 50 {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "document number must be 1-50 characters")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_COUNTERPARTY", "counterparty is required")
	}
	cur, err := valueobject.ParseCurrency(string(currency))
	if err != nil {
		return nil, err
	}
	if issueDate.IsZero() || dueDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_DATE", "issue and due dates are required")
	}
	if DateOf(dueDate).Before(DateOf(issueDate)) {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_DATE", "due date cannot be before issue date")
	}

	zero := valueobject.Zero(cur)
	d := &Document{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              kind,
		Number:            number,
		CounterpartyID:    counterpartyID,
		Currency:          cur,
		IssueDate:         DateOf(issueDate),
		DueDate:           DateOf(dueDate),
		subtotal:          zero,
		taxAmount:         zero,
		discountAmount:    zero,
		totalAmount:       zero,
		paidAmount:        zero,
		discountTaken:     zero,
		status:            DocumentStatusDraft,
	}
	d.AddDomainEvent(NewDocumentCreatedEvent(d))
	return d, nil
}

func (d *Document) Status() DocumentStatus                { return d.status }
func (d *Document) Subtotal() valueobject.Money           { return d.subtotal }
func (d *Document) TaxAmount() valueobject.Money          { return d.taxAmount }
func (d *Document) DiscountAmount() valueobject.Money     { return d.discountAmount }
func (d *Document) TotalAmount() valueobject.Money        { return d.totalAmount }
func (d *Document) PaidAmount() valueobject.Money         { return d.paidAmount }
func (d *Document) DiscountTaken() valueobject.Money      { return d.discountTaken }
func (d *Document) EarlyPaymentTerms() *EarlyPaymentTerms { return d.earlyPayment }

func (d *Document) LineItems() []LineItem {
	return append([]LineItem(nil), d.lineItems...)
}

func (d *Document) Payments() []DocumentPayment {
	return append([]DocumentPayment(nil), d.payments...)
}

// OutstandingAmount is total minus everything settled so far
func (d *Document) OutstandingAmount() valueobject.Money {
	o, _ := d.totalAmount.Subtract(d.paidAmount)
	return o
}

// IsOverdue reports whether the document is unpaid past its due date on asOf
func (d *Document) IsOverdue(asOf time.Time) bool {
	if d.status.IsTerminal() || d.status == DocumentStatusDraft || d.status == DocumentStatusRejected {
		return false
	}
	return DateOf(asOf).After(d.DueDate)
}

func (d *Document) require(a documentAction) error {
	if !d.status.allows(a) {
		return invalidTransition(d.Kind.label()+" "+d.Number, d.status.String(), string(a))
	}
	return nil
}

// AddLineItem appends a priced line and recalculates totals
func (d *Document) AddLineItem(item LineItem) error {
	if err := d.require(actionEdit); err != nil {
		return err
	}
	if item.NetAmount.Currency() != d.Currency {
		return shared.NewInvariantError("CURRENCY_MISMATCH",
			fmt.Sprintf("line item in %s cannot be added to a %s document", item.NetAmount.Currency(), d.Currency))
	}
	lines := append(d.LineItems(), item)
	return d.recalculate(lines, d.discountAmount)
}

// RemoveLineItem removes the line at index (zero based) and recalculates totals
func (d *Document) RemoveLineItem(index int) error {
	if err := d.require(actionEdit); err != nil {
		return err
	}
	if index < 0 || index >= len(d.lineItems) {
		return shared.NewNotFoundError("line item", index)
	}
	lines := d.LineItems()
	lines = append(lines[:index], lines[index+1:]...)
	return d.recalculate(lines, d.discountAmount)
}

// SetDiscount sets the document-level discount
func (d *Document) SetDiscount(discount valueobject.Money) error {
	if err := d.require(actionEdit); err != nil {
		return err
	}
	if discount.IsNegative() {
		return shared.NewValidationError("INVALID_DISCOUNT", "discount cannot be negative")
	}
	return d.recalculate(d.lineItems, discount)
}

// SetEarlyPaymentTerms sets or clears (nil) the early payment discount
func (d *Document) SetEarlyPaymentTerms(terms *EarlyPaymentTerms) error {
	if err := d.require(actionEdit); err != nil {
		return err
	}
	if terms != nil {
		if err := terms.validate(); err != nil {
			return err
		}
		if DateOf(terms.DiscountDate).After(d.DueDate) {
			return shared.NewValidationError("INVALID_PAYMENT_TERMS", "discount date cannot be after the due date")
		}
		t := *terms
		t.DiscountDate = DateOf(t.DiscountDate)
		terms = &t
	}
	d.earlyPayment = terms
	d.touch()
	return nil
}

// recalculate derives subtotal, tax and total from lines and discount.
// Nothing is assigned unless the result is valid.
func (d *Document) recalculate(lines []LineItem, discount valueobject.Money) error {
	subtotal := valueobject.Zero(d.Currency)
	tax := valueobject.Zero(d.Currency)
	for _, l := range lines {
		var err error
		if subtotal, err = subtotal.Add(l.NetAmount); err != nil {
			return err
		}
		if tax, err = tax.Add(l.TaxAmount); err != nil {
			return err
		}
	}
	gross, err := subtotal.Add(tax)
	if err != nil {
		return err
	}
	total, err := gross.Subtract(discount)
	if err != nil {
		return err
	}
	if total.IsNegative() {
		return shared.NewInvariantError("INVALID_DISCOUNT",
			fmt.Sprintf("discount %s exceeds subtotal plus tax %s", discount, gross))
	}
	d.lineItems = lines
	d.subtotal = subtotal
	d.taxAmount = tax
	d.discountAmount = discount
	d.totalAmount = total
	d.touch()
	return nil
}

// Submit sends a DRAFT document for approval
func (d *Document) Submit() error {
	if err := d.require(actionSubmit); err != nil {
		return err
	}
	if len(d.lineItems) == 0 || !d.totalAmount.IsPositive() {
		return shared.NewValidationError("EMPTY_DOCUMENT", "a document needs at least one line and a positive total")
	}
	return d.moveTo(DocumentStatusPendingApproval, uuid.Nil)
}

func (d *Document) Approve(actorID uuid.UUID) error {
	if err := d.require(actionApprove); err != nil {
		return err
	}
	if actorID == uuid.Nil {
		return shared.NewValidationError("INVALID_ACTOR", "approver is required")
	}
	now := time.Now()
	d.ApprovedBy = &actorID
	d.ApprovedAt = &now
	return d.moveTo(DocumentStatusApproved, actorID)
}

// Reject sends an unpaid document back for correction
func (d *Document) Reject(reason string) error {
	if err := d.require(actionReject); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "rejection reason is required")
	}
	if !d.paidAmount.IsZero() {
		return shared.NewStateError(CodeInvalidTransition, d.status.String(), "cannot reject a document with payments")
	}
	d.RejectionReason = reason
	return d.moveTo(DocumentStatusRejected, uuid.Nil)
}

// ReturnToDraft reopens a rejected document for editing
func (d *Document) ReturnToDraft() error {
	if err := d.require(actionReopen); err != nil {
		return err
	}
	d.ApprovedBy = nil
	d.ApprovedAt = nil
	return d.moveTo(DocumentStatusDraft, uuid.Nil)
}

// Issue sends an approved invoice to the customer. Bills are not issued.
func (d *Document) Issue() error {
	if d.Kind != DocumentKindInvoice {
		return shared.NewStateError(CodeInvalidTransition, d.status.String(), "only invoices can be issued")
	}
	if err := d.require(actionIssue); err != nil {
		return err
	}
	return d.moveTo(DocumentStatusIssued, uuid.Nil)
}

// Void cancels a document that has received no payment. VOIDED is terminal.
func (d *Document) Void(reason string) error {
	if err := d.require(actionVoid); err != nil {
		return err
	}
	if !d.paidAmount.IsZero() {
		return shared.NewStateError(CodeInvalidTransition, d.status.String(),
			fmt.Sprintf("cannot void %s %s with %s already paid", d.Kind.label(), d.Number, d.paidAmount))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "void reason is required")
	}
	previous := d.status
	d.VoidReason = reason
	d.status = DocumentStatusVoided
	d.touch()
	d.AddDomainEvent(NewDocumentVoidedEvent(d, previous))
	return nil
}

// MarkOverdue flags the document OVERDUE if it is past due on asOf.
// It returns false without error when nothing changed.
func (d *Document) MarkOverdue(asOf time.Time) (bool, error) {
	if !d.status.allows(actionOverdue) || !d.IsOverdue(asOf) {
		return false, nil
	}
	return true, d.moveTo(DocumentStatusOverdue, uuid.Nil)
}

// ProcessPayment applies a payment of amount made on date.
// An amount above the outstanding balance is rejected. When early payment terms apply
// the earned discount is settled too and recorded separately.
func (d *Document) ProcessPayment(amount valueobject.Money, date time.Time, method PaymentMethod, paymentID *uuid.UUID) (DocumentPayment, error) {
	if err := d.require(actionPay); err != nil {
		return DocumentPayment{}, err
	}
	if !method.IsValid() {
		return DocumentPayment{}, shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("unknown payment method %q", method))
	}
	if amount.Currency() != d.Currency {
		return DocumentPayment{}, shared.NewInvariantError("CURRENCY_MISMATCH",
			fmt.Sprintf("payment in %s cannot settle a %s document", amount.Currency(), d.Currency))
	}
	if !amount.IsPositive() {
		return DocumentPayment{}, shared.NewValidationError(CodeInvalidAmount, "payment amount must be positive")
	}
	outstanding := d.OutstandingAmount()
	if over, _ := amount.GreaterThan(outstanding); over {
		return DocumentPayment{}, shared.NewInvariantError(CodeExceedsOutstanding,
			fmt.Sprintf("payment %s exceeds outstanding %s on %s", amount, outstanding, d.Number))
	}

	discount := valueobject.Zero(d.Currency)
	if d.earlyPayment != nil && d.earlyPayment.Applies(date) {
		discount = d.earlyPayment.discountFor(amount, outstanding)
	}

	rec := DocumentPayment{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Amount:    amount,
		Discount:  discount,
		Date:      DateOf(date),
		Method:    method,
	}
	d.paidAmount, _ = d.paidAmount.Add(rec.Settled())
	d.discountTaken, _ = d.discountTaken.Add(discount)
	d.payments = append(d.payments, rec)

	if d.OutstandingAmount().IsZero() {
		d.status = DocumentStatusPaid
		d.AddDomainEvent(NewDocumentPaymentAppliedEvent(d, rec))
		d.AddDomainEvent(NewDocumentPaidEvent(d))
	} else {
		d.status = DocumentStatusPartiallyPaid
		d.AddDomainEvent(NewDocumentPaymentAppliedEvent(d, rec))
	}
	d.touch()
	return rec, nil
}

func (d *Document) moveTo(next DocumentStatus, actorID uuid.UUID) error {
	previous := d.status
	d.status = next
	d.touch()
	d.AddDomainEvent(NewDocumentStatusChangedEvent(d, previous, actorID))
	return nil
}

func (d *Document) touch() {
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
}

// DocumentState is the persisted form of a document
type DocumentState struct {
	ID              uuid.UUID
	Kind            DocumentKind
	Number          string
	CounterpartyID  uuid.UUID
	Currency        valueobject.Currency
	IssueDate       time.Time
	DueDate         time.Time
	Description     string
	Extensions      shared.Extensions
	LineItems       []LineItem
	Subtotal        valueobject.Money
	TaxAmount       valueobject.Money
	DiscountAmount  valueobject.Money
	TotalAmount     valueobject.Money
	PaidAmount      valueobject.Money
	DiscountTaken   valueobject.Money
	EarlyPayment    *EarlyPaymentTerms
	Payments        []DocumentPayment
	Status          DocumentStatus
	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	RejectionReason string
	VoidReason      string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (d *Document) Snapshot() DocumentState {
	return DocumentState{
		ID:              d.ID,
		Kind:            d.Kind,
		Number:          d.Number,
		CounterpartyID:  d.CounterpartyID,
		Currency:        d.Currency,
		IssueDate:       d.IssueDate,
		DueDate:         d.DueDate,
		Description:     d.Description,
		Extensions:      d.Extensions,
		LineItems:       d.LineItems(),
		Subtotal:        d.subtotal,
		TaxAmount:       d.taxAmount,
		DiscountAmount:  d.discountAmount,
		TotalAmount:     d.totalAmount,
		PaidAmount:      d.paidAmount,
		DiscountTaken:   d.discountTaken,
		EarlyPayment:    d.earlyPayment,
		Payments:        d.Payments(),
		Status:          d.status,
		ApprovedBy:      d.ApprovedBy,
		ApprovedAt:      d.ApprovedAt,
		RejectionReason: d.RejectionReason,
		VoidReason:      d.VoidReason,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func ReconstituteDocument(s DocumentState) *Document {
	d := &Document{
		Kind:            s.Kind,
		Number:          s.Number,
		CounterpartyID:  s.CounterpartyID,
		Currency:        s.Currency,
		IssueDate:       s.IssueDate,
		DueDate:         s.DueDate,
		Description:     s.Description,
		Extensions:      s.Extensions,
		ApprovedBy:      s.ApprovedBy,
		ApprovedAt:      s.ApprovedAt,
		RejectionReason: s.RejectionReason,
		VoidReason:      s.VoidReason,
		lineItems:       append([]LineItem(nil), s.LineItems...),
		subtotal:        s.Subtotal,
		taxAmount:       s.TaxAmount,
		discountAmount:  s.DiscountAmount,
		totalAmount:     s.TotalAmount,
		paidAmount:      s.PaidAmount,
		discountTaken:   s.DiscountTaken,
		earlyPayment:    s.EarlyPayment,
		payments:        append([]DocumentPayment(nil), s.Payments...),
		status:          s.Status,
	}
	d.ID = s.ID
	d.CreatedAt = s.CreatedAt
	d.UpdatedAt = s.UpdatedAt
	d.RestoreVersion(s.Version)
	return d
}
