package ledger

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
)

// Error codes returned by the ledger domain
const (
	CodeInvalidAccountCode   = "INVALID_ACCOUNT_CODE"
	CodeDuplicateAccountCode = "DUPLICATE_ACCOUNT_CODE"
	CodeInvalidAccountType   = "INVALID_ACCOUNT_TYPE"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeAccountHasBalance    = "ACCOUNT_HAS_BALANCE"
	CodeAccountHasChildren   = "ACCOUNT_HAS_ACTIVE_CHILDREN"
	CodeCycleDetected        = "CYCLE_DETECTED"
	CodeAccountClosed        = "ACCOUNT_CLOSED"
	CodeAccountInactive      = "ACCOUNT_INACTIVE"
	CodeManualNotAllowed     = "MANUAL_ENTRY_NOT_ALLOWED"
	CodeUnbalancedEntry      = "UNBALANCED_ENTRY"
	CodeInvalidLine          = "INVALID_JOURNAL_LINE"
	CodeAlreadyReversed      = "ALREADY_REVERSED"
	CodeExceedsOutstanding   = "PAYMENT_EXCEEDS_OUTSTANDING"
	CodeAllocationMismatch   = "ALLOCATION_MISMATCH"
	CodePaymentReconciled    = "PAYMENT_RECONCILED"
	CodeImbalanced           = "RECONCILIATION_IMBALANCED"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidStatementFile = "INVALID_STATEMENT_FILE"
)

// ErrUnbalancedEntry reports a currency group whose debits and credits differ
func ErrUnbalancedEntry(currency string, debits, credits string) error {
	return shared.NewInvariantError(CodeUnbalancedEntry,
		fmt.Sprintf("entry is unbalanced in %s: debits %s, credits %s", currency, debits, credits))
}

func invalidTransition(aggregate, state, action string) error {
	return shared.NewStateError(CodeInvalidTransition, state, fmt.Sprintf("cannot %s %s", action, aggregate))
}

// Sentinels for errors.Is matching; only the code is compared
var (
	ErrDuplicateAccountCode = shared.NewInvariantError(CodeDuplicateAccountCode, "account code already exists")
	ErrCycleDetected        = shared.NewInvariantError(CodeCycleDetected, "account hierarchy would contain a cycle")
	ErrUnbalanced           = shared.NewInvariantError(CodeUnbalancedEntry, "journal entry is unbalanced")
	ErrAlreadyReversed      = shared.NewStateError(CodeAlreadyReversed, "REVERSED", "journal entry already reversed")
	ErrAllocationMismatch   = shared.NewInvariantError(CodeAllocationMismatch, "allocations do not sum to the payment amount")
	ErrImbalanced           = shared.NewInvariantError(CodeImbalanced, "reconciliation has an unexplained variance")
	ErrAccountClosed        = shared.NewStateError(CodeAccountClosed, "CLOSED", "account is closed")
	ErrInvalidTransition    = shared.NewStateError(CodeInvalidTransition, "", "invalid transition")
	ErrExceedsOutstanding   = shared.NewInvariantError(CodeExceedsOutstanding, "payment exceeds outstanding balance")
	ErrPaymentReconciled    = shared.NewStateError(CodePaymentReconciled, "RECONCILED", "payment is reconciled")
)
