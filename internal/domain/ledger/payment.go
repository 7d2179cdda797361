package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentDirection says whether cash leaves or enters the bank account
type PaymentDirection string

const (
	PaymentDisbursement PaymentDirection = "DISBURSEMENT"
	PaymentReceipt      PaymentDirection = "RECEIPT"
)

func (d PaymentDirection) IsValid() bool { return d == PaymentDisbursement || d == PaymentReceipt }

// DocumentKind is the kind of document a payment in this direction settles
func (d PaymentDirection) DocumentKind() DocumentKind {
	if d == PaymentDisbursement {
		return DocumentKindBill
	}
	return DocumentKindInvoice
}

// PaymentMethod is how the money moved
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodCheck PaymentMethod = "CHECK"
	PaymentMethodACH   PaymentMethod = "ACH"
	PaymentMethodWire  PaymentMethod = "WIRE"
	PaymentMethodCard  PaymentMethod = "CARD"
	PaymentMethodOther PaymentMethod = "OTHER"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCheck, PaymentMethodACH,
		PaymentMethodWire, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusDraft           PaymentStatus = "DRAFT"
	PaymentStatusPendingApproval PaymentStatus = "PENDING_APPROVAL"
	PaymentStatusApproved        PaymentStatus = "APPROVED"
	PaymentStatusIssued          PaymentStatus = "ISSUED"
	PaymentStatusVoided          PaymentStatus = "VOIDED"
)

func (s PaymentStatus) String() string   { return string(s) }
func (s PaymentStatus) IsTerminal() bool { return s == PaymentStatusVoided }

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusDraft:           {PaymentStatusPendingApproval, PaymentStatusVoided},
	PaymentStatusPendingApproval: {PaymentStatusApproved, PaymentStatusDraft, PaymentStatusVoided},
	PaymentStatusApproved:        {PaymentStatusIssued, PaymentStatusVoided},
	PaymentStatusIssued:          {PaymentStatusVoided},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, st := range paymentTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// PaymentAllocation assigns part of a payment to one document
type PaymentAllocation struct {
	DocumentID     uuid.UUID         `json:"document_id"`
	DocumentNumber string            `json:"document_number,omitempty"`
	Amount         valueobject.Money `json:"amount"`
	DiscountTaken  valueobject.Money `json:"discount_taken"`
}

// Payment is a disbursement to a vendor or a receipt from a customer
type Payment struct {
	shared.BaseAggregateRoot
	PaymentNumber  string            `json:"payment_number"`
	Direction      PaymentDirection  `json:"direction"`
	CounterpartyID uuid.UUID         `json:"counterparty_id"`
	BankAccountID  uuid.UUID         `json:"bank_account_id"`
	Amount         valueobject.Money `json:"amount"`
	Method         PaymentMethod     `json:"method"`
	PaymentDate    time.Time         `json:"payment_date"`
	Reference      string            `json:"reference,omitempty"`
	Extensions     shared.Extensions `json:"extensions"`
	ApprovedBy     *uuid.UUID        `json:"approved_by,omitempty"`
	IssuedBy       *uuid.UUID        `json:"issued_by,omitempty"`
	IssuedAt       *time.Time        `json:"issued_at,omitempty"`
	JournalEntryID *uuid.UUID        `json:"journal_entry_id,omitempty"`
	VoidReason     string            `json:"void_reason,omitempty"`
	allocations    []PaymentAllocation
	status         PaymentStatus
	isReconciled   bool
	reconciledAt   *time.Time
}

func NewPayment(
	direction PaymentDirection,
	number string,
	counterpartyID, bankAccountID uuid.UUID,
	amount valueobject.Money,
	method PaymentMethod,
	paymentDate time.Time,
) (*Payment, error) {
	number = strings.TrimSpace(number)
	if !direction.IsValid() {
		return nil, shared.NewValidationError("INVALID_DIRECTION", fmt.Sprintf("unknown payment direction %q", direction))
	}
	if number == "" || len(number) > 50 {
		return nil, shared.NewValidationError("INVALID_PAYMENT_NUMBER", "payment number must be 1-50 characters")
	}
	if counterpartyID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_COUNTERPARTY", "counterparty is required")
	}
	if bankAccountID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_BANK_ACCOUNT", "bank account is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError(CodeInvalidAmount, "payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("unknown payment method %q", method))
	}
	if paymentDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_DATE", "payment date is required")
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentNumber:     number,
		Direction:         direction,
		CounterpartyID:    counterpartyID,
		BankAccountID:     bankAccountID,
		Amount:            amount,
		Method:            method,
		PaymentDate:       DateOf(paymentDate),
		status:            PaymentStatusDraft,
	}, nil
}

func (p *Payment) Status() PaymentStatus    { return p.status }
func (p *Payment) IsReconciled() bool       { return p.isReconciled }
func (p *Payment) ReconciledAt() *time.Time { return p.reconciledAt }

func (p *Payment) Allocations() []PaymentAllocation {
	return append([]PaymentAllocation(nil), p.allocations...)
}

// AllocatedAmount sums the allocation amounts
func (p *Payment) AllocatedAmount() valueobject.Money {
	total := valueobject.Zero(p.Amount.Currency())
	for _, a := range p.allocations {
		total, _ = total.Add(a.Amount)
	}
	return total
}

// AllocateToInvoices replaces the allocation set. The amounts must add up to the
// payment amount exactly and each document may appear once.
func (p *Payment) AllocateToInvoices(allocations []PaymentAllocation) error {
	if p.status != PaymentStatusDraft {
		return invalidTransition("payment "+p.PaymentNumber, p.status.String(), "allocate")
	}
	cur := p.Amount.Currency()
	seen := make(map[uuid.UUID]struct{}, len(allocations))
	total := valueobject.Zero(cur)
	next := make([]PaymentAllocation, 0, len(allocations))
	for _, a := range allocations {
		if a.DocumentID == uuid.Nil {
			return shared.NewValidationError("INVALID_ALLOCATION", "allocation requires a document")
		}
		if _, dup := seen[a.DocumentID]; dup {
			return shared.NewValidationError("DUPLICATE_ALLOCATION",
				fmt.Sprintf("document %s is allocated more than once", a.DocumentID))
		}
		seen[a.DocumentID] = struct{}{}
		if a.Amount.Currency() != cur {
			return shared.NewInvariantError("CURRENCY_MISMATCH",
				fmt.Sprintf("allocation in %s cannot use a %s payment", a.Amount.Currency(), cur))
		}
		if !a.Amount.IsPositive() {
			return shared.NewValidationError(CodeInvalidAmount, "allocation amount must be positive")
		}
		if a.DiscountTaken.Currency() == "" {
			a.DiscountTaken = valueobject.Zero(cur)
		}
		total, _ = total.Add(a.Amount)
		next = append(next, a)
	}
	if len(next) > 0 && !total.Equals(p.Amount) {
		return shared.NewInvariantError(CodeAllocationMismatch,
			fmt.Sprintf("allocations total %s but payment %s is %s", total, p.PaymentNumber, p.Amount))
	}
	p.allocations = next
	p.touch()
	return nil
}

func (p *Payment) Submit() error {
	return p.moveTo(PaymentStatusPendingApproval, "submit")
}

func (p *Payment) Approve(actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return shared.NewValidationError("INVALID_ACTOR", "approver is required")
	}
	if err := p.moveTo(PaymentStatusApproved, "approve"); err != nil {
		return err
	}
	p.ApprovedBy = &actorID
	return nil
}

// Issue releases an approved payment. discounts holds the early payment discount each
// document granted when the allocation was applied; it may be nil.
func (p *Payment) Issue(actorID uuid.UUID, journalEntryID *uuid.UUID, discounts map[uuid.UUID]valueobject.Money) error {
	if actorID == uuid.Nil {
		return shared.NewValidationError("INVALID_ACTOR", "issuer is required")
	}
	if !p.status.CanTransitionTo(PaymentStatusIssued) {
		return invalidTransition("payment "+p.PaymentNumber, p.status.String(), "issue")
	}
	for i := range p.allocations {
		if d, ok := discounts[p.allocations[i].DocumentID]; ok {
			p.allocations[i].DiscountTaken = d
		}
	}
	now := time.Now()
	p.IssuedBy = &actorID
	p.IssuedAt = &now
	p.JournalEntryID = journalEntryID
	p.status = PaymentStatusIssued
	p.touch()
	p.AddDomainEvent(NewPaymentProcessedEvent(p))
	return nil
}

// Void cancels the payment. Reconciled payments cannot be voided.
func (p *Payment) Void(reason string) error {
	if p.isReconciled {
		return shared.NewStateError(CodePaymentReconciled, p.status.String(),
			fmt.Sprintf("payment %s is reconciled and cannot be voided", p.PaymentNumber))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "void reason is required")
	}
	previous := p.status
	if err := p.moveTo(PaymentStatusVoided, "void"); err != nil {
		return err
	}
	p.VoidReason = reason
	p.AddDomainEvent(NewPaymentVoidedEvent(p, previous))
	return nil
}

// MarkReconciled flags an issued payment as cleared by the bank
func (p *Payment) MarkReconciled(at time.Time) error {
	if p.status != PaymentStatusIssued {
		return invalidTransition("payment "+p.PaymentNumber, p.status.String(), "reconcile")
	}
	if p.isReconciled {
		return nil
	}
	p.isReconciled = true
	p.reconciledAt = &at
	p.touch()
	return nil
}

func (p *Payment) moveTo(next PaymentStatus, action string) error {
	if !p.status.CanTransitionTo(next) {
		return invalidTransition("payment "+p.PaymentNumber, p.status.String(), action)
	}
	p.status = next
	p.touch()
	return nil
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// PaymentState is the persisted form of a payment
type PaymentState struct {
	ID             uuid.UUID
	PaymentNumber  string
	Direction      PaymentDirection
	CounterpartyID uuid.UUID
	BankAccountID  uuid.UUID
	Amount         valueobject.Money
	Method         PaymentMethod
	PaymentDate    time.Time
	Reference      string
	Extensions     shared.Extensions
	Allocations    []PaymentAllocation
	Status         PaymentStatus
	IsReconciled   bool
	ReconciledAt   *time.Time
	ApprovedBy     *uuid.UUID
	IssuedBy       *uuid.UUID
	IssuedAt       *time.Time
	JournalEntryID *uuid.UUID
	VoidReason     string
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Payment) Snapshot() PaymentState {
	return PaymentState{
		ID:             p.ID,
		PaymentNumber:  p.PaymentNumber,
		Direction:      p.Direction,
		CounterpartyID: p.CounterpartyID,
		BankAccountID:  p.BankAccountID,
		Amount:         p.Amount,
		Method:         p.Method,
		PaymentDate:    p.PaymentDate,
		Reference:      p.Reference,
		Extensions:     p.Extensions,
		Allocations:    p.Allocations(),
		Status:         p.status,
		IsReconciled:   p.isReconciled,
		ReconciledAt:   p.reconciledAt,
		ApprovedBy:     p.ApprovedBy,
		IssuedBy:       p.IssuedBy,
		IssuedAt:       p.IssuedAt,
		JournalEntryID: p.JournalEntryID,
		VoidReason:     p.VoidReason,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func ReconstitutePayment(s PaymentState) *Payment {
	p := &Payment{
		PaymentNumber:  s.PaymentNumber,
		Direction:      s.Direction,
		CounterpartyID: s.CounterpartyID,
		BankAccountID:  s.BankAccountID,
		Amount:         s.Amount,
		Method:         s.Method,
		PaymentDate:    s.PaymentDate,
		Reference:      s.Reference,
		Extensions:     s.Extensions,
		ApprovedBy:     s.ApprovedBy,
		IssuedBy:       s.IssuedBy,
		IssuedAt:       s.IssuedAt,
		JournalEntryID: s.JournalEntryID,
		VoidReason:     s.VoidReason,
		allocations:    append([]PaymentAllocation(nil), s.Allocations...),
		status:         s.Status,
		isReconciled:   s.IsReconciled,
		reconciledAt:   s.ReconciledAt,
	}
	p.ID = s.ID
	p.CreatedAt = s.CreatedAt
	p.UpdatedAt = s.UpdatedAt
	p.RestoreVersion(s.Version)
	return p
}
