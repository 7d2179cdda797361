package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusClosed   AccountStatus = "CLOSED"
)

var accountTransitions = map[AccountStatus][]AccountStatus{
	AccountStatusActive:   {AccountStatusInactive, AccountStatusClosed},
	AccountStatusInactive: {AccountStatusActive, AccountStatusClosed},
	AccountStatusClosed:   {},
}

func (s AccountStatus) IsValid() bool {
	_, ok := accountTransitions[s]
	return ok
}

func (s AccountStatus) String() string {
	return string(s)
}

// IsTerminal is true for CLOSED; closure cannot be undone
func (s AccountStatus) IsTerminal() bool {
	return len(accountTransitions[s]) == 0
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	for _, allowed := range accountTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var accountCodePattern = regexp.MustCompile(`^[0-9]{3,10}(-[A-Za-z0-9]+)*$`)

// ValidateAccountCode checks the chart code format, e.g. "1000" or "1000-Cash"
func ValidateAccountCode(code string) error {
	if !accountCodePattern.MatchString(code) {
		return shared.NewValidationError(CodeInvalidAccountCode,
			fmt.Sprintf("account code %q must be 3-10 digits optionally followed by -suffix segments", code))
	}
	if len(code) > 50 {
		return shared.NewValidationError(CodeInvalidAccountCode, "account code cannot exceed 50 characters")
	}
	return nil
}

// Account is a node in the chart of accounts. Its balance changes only through posting.
type Account struct {
	shared.BaseAggregateRoot
	Code               string               `json:"code"`
	Name               string               `json:"name"`
	Description        string               `json:"description"`
	Type               AccountType          `json:"type"`
	Subtype            AccountSubtype       `json:"subtype"`
	Currency           valueobject.Currency `json:"currency"`
	IsControlAccount   bool                 `json:"is_control_account"`
	IsSystemAccount    bool                 `json:"is_system_account"`
	AllowManualEntries bool                 `json:"allow_manual_entries"`
	Extensions         shared.Extensions    `json:"extensions"`
	ClosedAt           *time.Time           `json:"closed_at,omitempty"`
	ClosedBy           *uuid.UUID           `json:"closed_by,omitempty"`
	parentID           *uuid.UUID
	status             AccountStatus
	balance            valueobject.Money
}

// AccountOption customises a new account
type AccountOption func(*Account)

func WithSubtype(s AccountSubtype) AccountOption {
	return func(a *Account) { a.Subtype = AccountSubtype(strings.ToUpper(string(s))) }
}

func WithDescription(d string) AccountOption {
	return func(a *Account) { a.Description = d }
}

// AsControlAccount marks the account as summarising a subsidiary ledger
func AsControlAccount() AccountOption {
	return func(a *Account) { a.IsControlAccount = true }
}

// AsSystemAccount marks the account as maintained by the system
func AsSystemAccount() AccountOption {
	return func(a *Account) { a.IsSystemAccount = true }
}

// NewAccount creates an ACTIVE account with a zero balance.
// Code uniqueness is checked by the caller against the repository.
func NewAccount(
	code, name string,
	accountType AccountType,
	currency valueobject.Currency,
	parentID *uuid.UUID,
	opts ...AccountOption,
) (*Account, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if err := ValidateAccountCode(code); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, shared.NewValidationError("INVALID_ACCOUNT_NAME", "account name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("INVALID_ACCOUNT_NAME", "account name cannot exceed 200 characters")
	}
	if !accountType.IsValid() {
		return nil, shared.NewValidationError(CodeInvalidAccountType, fmt.Sprintf("unknown account type %q", accountType))
	}
	cur, err := valueobject.ParseCurrency(string(currency))
	if err != nil {
		return nil, err
	}
	if parentID != nil && *parentID == uuid.Nil {
		parentID = nil
	}

	a := &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Type:              accountType,
		Currency:          cur,
		parentID:          parentID,
		status:            AccountStatusActive,
		balance:           valueobject.Zero(cur),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.Subtype == "" {
		a.Subtype = defaultSubtype[accountType]
	}
	info, ok := LookupSubtype(a.Subtype)
	if !ok {
		return nil, shared.NewValidationError(CodeInvalidAccountType, fmt.Sprintf("unknown account subtype %q", a.Subtype))
	}
	if info.Type != accountType {
		return nil, shared.NewValidationError(CodeInvalidAccountType,
			fmt.Sprintf("subtype %s belongs to %s, not %s", a.Subtype, info.Type, accountType))
	}
	if info.Control {
		a.IsControlAccount = true
	}
	a.AllowManualEntries = !a.IsControlAccount && !a.IsSystemAccount

	a.AddDomainEvent(NewAccountCreatedEvent(a))
	return a, nil
}

func (a *Account) Status() AccountStatus      { return a.status }
func (a *Account) Balance() valueobject.Money { return a.balance }
func (a *Account) ParentID() *uuid.UUID       { return a.parentID }
func (a *Account) IsActive() bool             { return a.status == AccountStatusActive }
func (a *Account) IsClosed() bool             { return a.status == AccountStatusClosed }

// Activate moves an INACTIVE account back to ACTIVE
func (a *Account) Activate(actorID uuid.UUID) error {
	return a.transition(AccountStatusActive, actorID, "activate")
}

// Deactivate stops an ACTIVE account from accepting postings until it is reactivated
func (a *Account) Deactivate(actorID uuid.UUID) error {
	return a.transition(AccountStatusInactive, actorID, "deactivate")
}

// Close is terminal. The balance must be zero and no child may still be active.
func (a *Account) Close(actorID uuid.UUID, hasActiveChildren bool) error {
	if !a.status.CanTransitionTo(AccountStatusClosed) {
		return invalidTransition("account "+a.Code, a.status.String(), "close")
	}
	if !a.balance.IsZero() {
		return shared.NewStateError(CodeAccountHasBalance, a.status.String(),
			fmt.Sprintf("cannot close account %s with balance %s", a.Code, a.balance))
	}
	if hasActiveChildren {
		return shared.NewStateError(CodeAccountHasChildren, a.status.String(),
			fmt.Sprintf("cannot close account %s while it has active children", a.Code))
	}
	if err := a.transition(AccountStatusClosed, actorID, "close"); err != nil {
		return err
	}
	now := time.Now()
	a.ClosedAt = &now
	a.ClosedBy = &actorID
	return nil
}

func (a *Account) transition(next AccountStatus, actorID uuid.UUID, action string) error {
	if actorID == uuid.Nil {
		return shared.NewValidationError("INVALID_ACTOR", "actor is required")
	}
	if !a.status.CanTransitionTo(next) {
		return invalidTransition("account "+a.Code, a.status.String(), action)
	}
	previous := a.status
	a.status = next
	a.touch()
	a.AddDomainEvent(NewAccountStatusChangedEvent(a, previous, actorID))
	return nil
}

// Reparent moves the account under newParent, or to the root when newParent is nil.
// The chart is consulted to reject moves that would make the account its own ancestor.
func (a *Account) Reparent(newParent *Account, chart *Chart) error {
	if a.IsClosed() {
		return invalidTransition("account "+a.Code, a.status.String(), "reparent")
	}
	if newParent == nil {
		a.parentID = nil
		a.touch()
		return nil
	}
	if newParent.ID == a.ID {
		return shared.NewInvariantError(CodeCycleDetected, fmt.Sprintf("account %s cannot be its own parent", a.Code))
	}
	if newParent.IsClosed() {
		return shared.NewStateError(CodeAccountClosed, newParent.status.String(),
			fmt.Sprintf("parent account %s is closed", newParent.Code))
	}
	if newParent.Type != a.Type {
		return shared.NewValidationError("INVALID_PARENT",
			fmt.Sprintf("parent %s is %s but account %s is %s", newParent.Code, newParent.Type, a.Code, a.Type))
	}
	if chart != nil {
		for _, anc := range chart.Ancestors(newParent.ID) {
			if anc == a.ID {
				return shared.NewInvariantError(CodeCycleDetected,
					fmt.Sprintf("account %s is an ancestor of %s", a.Code, newParent.Code))
			}
		}
	}
	id := newParent.ID
	a.parentID = &id
	a.touch()
	return nil
}

// UpdateDetails changes descriptive fields; closed accounts are frozen
func (a *Account) UpdateDetails(name, description string) error {
	if a.IsClosed() {
		return invalidTransition("account "+a.Code, a.status.String(), "update")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("INVALID_ACCOUNT_NAME", "account name cannot be empty")
	}
	a.Name = name
	a.Description = description
	a.touch()
	return nil
}

// SetPostingRules changes the control flag and whether manual journal entries may hit the account
func (a *Account) SetPostingRules(control, allowManual bool) error {
	if a.IsClosed() {
		return invalidTransition("account "+a.Code, a.status.String(), "update")
	}
	a.IsControlAccount = control
	a.AllowManualEntries = allowManual
	a.touch()
	return nil
}

// CanPost reports why the account cannot take a posting, or nil
func (a *Account) CanPost(manual bool) error {
	switch a.status {
	case AccountStatusClosed:
		return shared.NewStateError(CodeAccountClosed, a.status.String(), fmt.Sprintf("account %s is closed", a.Code))
	case AccountStatusInactive:
		return shared.NewStateError(CodeAccountInactive, a.status.String(), fmt.Sprintf("account %s is inactive", a.Code))
	}
	if manual && !a.AllowManualEntries {
		return shared.NewInvariantError(CodeManualNotAllowed, fmt.Sprintf("account %s does not accept manual entries", a.Code))
	}
	return nil
}

// SignedAmount converts a posting on side into the change it makes to this account's balance
func (a *Account) SignedAmount(side Side, amount valueobject.Money) valueobject.Money {
	if side == a.Type.NormalSide() {
		return amount
	}
	return amount.Negate()
}

// applyPosting adds delta to the balance. Only the posting engine calls it.
func (a *Account) applyPosting(delta valueobject.Money, entryID uuid.UUID) error {
	next, err := a.balance.Add(delta)
	if err != nil {
		return err
	}
	previous := a.balance
	a.balance = next
	a.touch()
	a.AddDomainEvent(NewAccountBalanceUpdatedEvent(a, previous, entryID))
	return nil
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// AccountState is the persisted form of an account
type AccountState struct {
	ID                 uuid.UUID
	Code               string
	Name               string
	Description        string
	Type               AccountType
	Subtype            AccountSubtype
	ParentID           *uuid.UUID
	Currency           valueobject.Currency
	Balance            decimal.Decimal
	Status             AccountStatus
	IsControlAccount   bool
	IsSystemAccount    bool
	AllowManualEntries bool
	Extensions         shared.Extensions
	ClosedAt           *time.Time
	ClosedBy           *uuid.UUID
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Snapshot exports the account for persistence
func (a *Account) Snapshot() AccountState {
	return AccountState{
		ID:                 a.ID,
		Code:               a.Code,
		Name:               a.Name,
		Description:        a.Description,
		Type:               a.Type,
		Subtype:            a.Subtype,
		ParentID:           a.parentID,
		Currency:           a.Currency,
		Balance:            a.balance.Amount(),
		Status:             a.status,
		IsControlAccount:   a.IsControlAccount,
		IsSystemAccount:    a.IsSystemAccount,
		AllowManualEntries: a.AllowManualEntries,
		Extensions:         a.Extensions,
		ClosedAt:           a.ClosedAt,
		ClosedBy:           a.ClosedBy,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// ReconstituteAccount rebuilds an account loaded from storage without raising events
func ReconstituteAccount(s AccountState) *Account {
	a := &Account{
		Code:               s.Code,
		Name:               s.Name,
		Description:        s.Description,
		Type:               s.Type,
		Subtype:            s.Subtype,
		Currency:           s.Currency,
		IsControlAccount:   s.IsControlAccount,
		IsSystemAccount:    s.IsSystemAccount,
		AllowManualEntries: s.AllowManualEntries,
		Extensions:         s.Extensions,
		ClosedAt:           s.ClosedAt,
		ClosedBy:           s.ClosedBy,
		parentID:           s.ParentID,
		status:             s.Status,
	}
	a.ID = s.ID
	a.CreatedAt = s.CreatedAt
	a.UpdatedAt = s.UpdatedAt
	a.RestoreVersion(s.Version)
	a.balance, _ = valueobject.NewMoney(s.Balance.RoundBank(valueobject.MoneyScale), s.Currency)
	return a
}
