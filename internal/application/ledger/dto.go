package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountResponse is the API view of an account
type AccountResponse struct {
	ID                 uuid.UUID         `json:"id"`
	Code               string            `json:"code"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	Type               string            `json:"type"`
	Subtype            string            `json:"subtype"`
	Currency           string            `json:"currency"`
	ParentID           *uuid.UUID        `json:"parent_id,omitempty"`
	Status             string            `json:"status"`
	Balance            valueobject.Money `json:"balance"`
	IsControlAccount   bool              `json:"is_control_account"`
	IsSystemAccount    bool              `json:"is_system_account"`
	AllowManualEntries bool              `json:"allow_manual_entries"`
	ClosedAt           *time.Time        `json:"closed_at,omitempty"`
	Version            int               `json:"version"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func ToAccountResponse(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:                 a.ID,
		Code:               a.Code,
		Name:               a.Name,
		Description:        a.Description,
		Type:               string(a.Type),
		Subtype:            string(a.Subtype),
		Currency:           string(a.Currency),
		ParentID:           a.ParentID(),
		Status:             a.Status().String(),
		Balance:            a.Balance(),
		IsControlAccount:   a.IsControlAccount,
		IsSystemAccount:    a.IsSystemAccount,
		AllowManualEntries: a.AllowManualEntries,
		ClosedAt:           a.ClosedAt,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAccountResponses(accounts []*ledger.Account) []AccountResponse {
	out := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		out[i] = ToAccountResponse(a)
	}
	return out
}

// AccountNode is one account in the chart hierarchy with its subtree total
type AccountNode struct {
	AccountResponse
	Depth         int               `json:"depth"`
	RollupBalance valueobject.Money `json:"rollup_balance"`
	IsLeaf        bool              `json:"is_leaf"`
	Children      []*AccountNode    `json:"children,omitempty"`
}

// JournalEntryResponse is the API view of a journal entry
type JournalEntryResponse struct {
	ID          uuid.UUID                                      `json:"id"`
	EntryNumber string                                         `json:"entry_number"`
	Date        time.Time                                      `json:"date"`
	Description string                                         `json:"description"`
	Source      string                                         `json:"source"`
	Reference   string                                         `json:"reference,omitempty"`
	Status      string                                         `json:"status"`
	Lines       []ledger.JournalLine                           `json:"lines"`
	Totals      map[valueobject.Currency]ledger.CurrencyTotals `json:"totals"`
	PostedBy    *uuid.UUID                                     `json:"posted_by,omitempty"`
	PostedAt    *time.Time                                     `json:"posted_at,omitempty"`
	ReversalOf  *uuid.UUID                                     `json:"reversal_of,omitempty"`
	ReversedBy  *uuid.UUID                                     `json:"reversed_by,omitempty"`
	Version     int                                            `json:"version"`
	CreatedAt   time.Time                                      `json:"created_at"`
}

func ToJournalEntryResponse(e *ledger.JournalEntry) JournalEntryResponse {
	return JournalEntryResponse{
		ID:          e.ID,
		EntryNumber: e.EntryNumber,
		Date:        e.Date,
		Description: e.Description,
		Source:      string(e.Source),
		Reference:   e.Reference,
		Status:      e.Status().String(),
		Lines:       e.Lines(),
		Totals:      e.Totals(),
		PostedBy:    e.PostedBy(),
		PostedAt:    e.PostedAt(),
		ReversalOf:  e.ReversalOf(),
		ReversedBy:  e.ReversedBy(),
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
	}
}

// PostingResponse reports a posted entry and the balances it moved
type PostingResponse struct {
	Entry    JournalEntryResponse `json:"entry"`
	Accounts []AccountResponse    `json:"accounts"`
}

// ReversalResponse reports a reversal and the original it offsets
type ReversalResponse struct {
	Original JournalEntryResponse `json:"original"`
	Reversal JournalEntryResponse `json:"reversal"`
	Accounts []AccountResponse    `json:"accounts"`
}

// BalanceVerification is the outcome of folding an account's posted lines
type BalanceVerification struct {
	AccountID   uuid.UUID                  `json:"account_id"`
	Code        string                     `json:"code"`
	Balanced    bool                       `json:"balanced"`
	Discrepancy *ledger.BalanceDiscrepancy `json:"discrepancy,omitempty"`
}

// DocumentResponse is the API view of a bill or invoice
type DocumentResponse struct {
	ID                uuid.UUID                 `json:"id"`
	Kind              string                    `json:"kind"`
	Number            string                    `json:"number"`
	CounterpartyID    uuid.UUID                 `json:"counterparty_id"`
	Currency          string                    `json:"currency"`
	IssueDate         time.Time                 `json:"issue_date"`
	DueDate           time.Time                 `json:"due_date"`
	Description       string                    `json:"description,omitempty"`
	Status            string                    `json:"status"`
	LineItems         []ledger.LineItem         `json:"line_items"`
	Subtotal          valueobject.Money         `json:"subtotal"`
	TaxAmount         valueobject.Money         `json:"tax_amount"`
	DiscountAmount    valueobject.Money         `json:"discount_amount"`
	TotalAmount       valueobject.Money         `json:"total_amount"`
	PaidAmount        valueobject.Money         `json:"paid_amount"`
	DiscountTaken     valueobject.Money         `json:"discount_taken"`
	Outstanding       valueobject.Money         `json:"outstanding"`
	EarlyPaymentTerms *ledger.EarlyPaymentTerms `json:"early_payment_terms,omitempty"`
	Payments          []ledger.DocumentPayment  `json:"payments"`
	ApprovedBy        *uuid.UUID                `json:"approved_by,omitempty"`
	RejectionReason   string                    `json:"rejection_reason,omitempty"`
	VoidReason        string                    `json:"void_reason,omitempty"`
	Version           int                       `json:"version"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func ToDocumentResponse(d *ledger.Document) DocumentResponse {
	return DocumentResponse{
		ID:                d.ID,
		Kind:              string(d.Kind),
		Number:            d.Number,
		CounterpartyID:    d.CounterpartyID,
		Currency:          string(d.Currency),
		IssueDate:         d.IssueDate,
		DueDate:           d.DueDate,
		Description:       d.Description,
		Status:            d.Status().String(),
		LineItems:         d.LineItems(),
		Subtotal:          d.Subtotal(),
		TaxAmount:         d.TaxAmount(),
		DiscountAmount:    d.DiscountAmount(),
		TotalAmount:       d.TotalAmount(),
		PaidAmount:        d.PaidAmount(),
		DiscountTaken:     d.DiscountTaken(),
		Outstanding:       d.OutstandingAmount(),
		EarlyPaymentTerms: d.EarlyPaymentTerms(),
		Payments:          d.Payments(),
		ApprovedBy:        d.ApprovedBy,
		RejectionReason:   d.RejectionReason,
		VoidReason:        d.VoidReason,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// DocumentPaymentResponse reports a payment applied directly to a document
type DocumentPaymentResponse struct {
	Document       DocumentResponse       `json:"document"`
	Payment        ledger.DocumentPayment `json:"payment"`
	JournalEntryID *uuid.UUID             `json:"journal_entry_id,omitempty"`
}

// OverdueSweepResult counts documents moved to OVERDUE by kind
type OverdueSweepResult struct {
	AsOf     time.Time `json:"as_of"`
	Bills    int       `json:"bills"`
	Invoices int       `json:"invoices"`
}

func (r OverdueSweepResult) Total() int { return r.Bills + r.Invoices }

// PaymentResponse is the API view of a payment
type PaymentResponse struct {
	ID              uuid.UUID                  `json:"id"`
	PaymentNumber   string                     `json:"payment_number"`
	Direction       string                     `json:"direction"`
	CounterpartyID  uuid.UUID                  `json:"counterparty_id"`
	BankAccountID   uuid.UUID                  `json:"bank_account_id"`
	Amount          valueobject.Money          `json:"amount"`
	AllocatedAmount valueobject.Money          `json:"allocated_amount"`
	Method          string                     `json:"method"`
	PaymentDate     time.Time                  `json:"payment_date"`
	Reference       string                     `json:"reference,omitempty"`
	Status          string                     `json:"status"`
	Allocations     []ledger.PaymentAllocation `json:"allocations"`
	JournalEntryID  *uuid.UUID                 `json:"journal_entry_id,omitempty"`
	IsReconciled    bool                       `json:"is_reconciled"`
	ReconciledAt    *time.Time                 `json:"reconciled_at,omitempty"`
	ApprovedBy      *uuid.UUID                 `json:"approved_by,omitempty"`
	IssuedBy        *uuid.UUID                 `json:"issued_by,omitempty"`
	IssuedAt        *time.Time                 `json:"issued_at,omitempty"`
	VoidReason      string                     `json:"void_reason,omitempty"`
	Version         int                        `json:"version"`
	CreatedAt       time.Time                  `json:"created_at"`
}

func ToPaymentResponse(p *ledger.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		PaymentNumber:   p.PaymentNumber,
		Direction:       string(p.Direction),
		CounterpartyID:  p.CounterpartyID,
		BankAccountID:   p.BankAccountID,
		Amount:          p.Amount,
		AllocatedAmount: p.AllocatedAmount(),
		Method:          string(p.Method),
		PaymentDate:     p.PaymentDate,
		Reference:       p.Reference,
		Status:          p.Status().String(),
		Allocations:     p.Allocations(),
		JournalEntryID:  p.JournalEntryID,
		IsReconciled:    p.IsReconciled(),
		ReconciledAt:    p.ReconciledAt(),
		ApprovedBy:      p.ApprovedBy,
		IssuedBy:        p.IssuedBy,
		IssuedAt:        p.IssuedAt,
		VoidReason:      p.VoidReason,
		Version:         p.Version,
		CreatedAt:       p.CreatedAt,
	}
}

// ReconciliationResponse is the API view of a statement with its computed balances
type ReconciliationResponse struct {
	ID                  uuid.UUID                `json:"id"`
	BankAccountID       uuid.UUID                `json:"bank_account_id"`
	Currency            string                   `json:"currency"`
	StatementDate       time.Time                `json:"statement_date"`
	PeriodStart         time.Time                `json:"period_start"`
	PeriodEnd           time.Time                `json:"period_end"`
	BankBalance         valueobject.Money        `json:"bank_balance"`
	BookBalance         valueobject.Money        `json:"book_balance"`
	AdjustedBank        valueobject.Money        `json:"adjusted_bank_balance"`
	AdjustedBook        valueobject.Money        `json:"adjusted_book_balance"`
	Variance            valueobject.Money        `json:"variance"`
	Tolerance           decimal.Decimal          `json:"tolerance"`
	IsBalanced          bool                     `json:"is_balanced"`
	Status              string                   `json:"status"`
	OutstandingItems    []ledger.OutstandingItem `json:"outstanding_items"`
	BankAdjustments     []ledger.Adjustment      `json:"bank_adjustments"`
	BookAdjustments     []ledger.Adjustment      `json:"book_adjustments"`
	BankLines           []ledger.BankLine        `json:"bank_lines"`
	VarianceExplanation string                   `json:"variance_explanation,omitempty"`
	RejectionReason     string                   `json:"rejection_reason,omitempty"`
	CompletedBy         *uuid.UUID               `json:"completed_by,omitempty"`
	CompletedAt         *time.Time               `json:"completed_at,omitempty"`
	Version             int                      `json:"version"`
}

func ToReconciliationResponse(r *ledger.ReconciliationStatement) ReconciliationResponse {
	return ReconciliationResponse{
		ID:                  r.ID,
		BankAccountID:       r.BankAccountID,
		Currency:            string(r.Currency),
		StatementDate:       r.StatementDate,
		PeriodStart:         r.PeriodStart,
		PeriodEnd:           r.PeriodEnd,
		BankBalance:         r.BankBalance,
		BookBalance:         r.BookBalance,
		AdjustedBank:        r.AdjustedBankBalance(),
		AdjustedBook:        r.AdjustedBookBalance(),
		Variance:            r.CalculateVariance(),
		Tolerance:           r.Tolerance,
		IsBalanced:          r.IsBalanced(),
		Status:              r.Status().String(),
		OutstandingItems:    r.OutstandingItems(),
		BankAdjustments:     r.BankAdjustments(),
		BookAdjustments:     r.BookAdjustments(),
		BankLines:           r.BankLines(),
		VarianceExplanation: r.VarianceExplanation,
		RejectionReason:     r.RejectionReason,
		CompletedBy:         r.CompletedBy,
		CompletedAt:         r.CompletedAt,
		Version:             r.Version,
	}
}

// AutoMatchResult summarises one matching run
type AutoMatchResult struct {
	Matched       int                    `json:"matched"`
	UnmatchedBank int                    `json:"unmatched_bank"`
	Outstanding   int                    `json:"outstanding"`
	Cleared       int                    `json:"cleared"`
	Statement     ReconciliationResponse `json:"statement"`
}

func mapPage[T any, R any](items []T, total int64, f shared.Filter, conv func(T) R) shared.Paginated[R] {
	out := make([]R, len(items))
	for i, it := range items {
		out[i] = conv(it)
	}
	page, size := listPage(f)
	return shared.NewPaginated(out, total, page, size)
}
