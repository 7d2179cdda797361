package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateAccountCommand creates one account in the chart
type CreateAccountCommand struct {
	AccountCode      string     `json:"account_code"`
	AccountName      string     `json:"account_name"`
	AccountType      string     `json:"account_type"`
	Subtype          string     `json:"subtype,omitempty"`
	Currency         string     `json:"currency,omitempty"`
	ParentAccountID  *uuid.UUID `json:"parent_account_id,omitempty"`
	Description      string     `json:"description,omitempty"`
	IsControlAccount bool       `json:"is_control_account"`
	IsSystemAccount  bool       `json:"is_system_account"`
}

// UpdateAccountCommand changes descriptive fields and posting rules. Nil fields are
// left alone. When Version is set it must equal the stored version.
type UpdateAccountCommand struct {
	ID                 uuid.UUID `json:"-"`
	AccountName        *string   `json:"account_name,omitempty"`
	Description        *string   `json:"description,omitempty"`
	AllowManualEntries *bool     `json:"allow_manual_entries,omitempty"`
	IsControlAccount   *bool     `json:"is_control_account,omitempty"`
	Version            *int      `json:"version,omitempty"`
}

// AccountQuery narrows ListAccounts
type AccountQuery struct {
	shared.Filter
	Type     string
	Status   string
	ParentID *uuid.UUID
	RootOnly bool
}

// AccountService manages the chart of accounts
type AccountService struct {
	accounts        ledger.AccountRepository
	txm             shared.TransactionManager
	events          shared.OutboxEventSaver
	defaultCurrency valueobject.Currency
	opts            serviceOptions
}

func NewAccountService(
	accounts ledger.AccountRepository,
	txm shared.TransactionManager,
	events shared.OutboxEventSaver,
	defaultCurrency string,
	opts ...Option,
) *AccountService {
	return &AccountService{
		accounts:        accounts,
		txm:             txm,
		events:          events,
		defaultCurrency: valueobject.Currency(defaultCurrency),
		opts:            buildOptions(opts),
	}
}

// CreateAccount validates the code is unused and the parent can hold the account
func (s *AccountService) CreateAccount(ctx context.Context, cmd CreateAccountCommand) (resp *AccountResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "create", telemetry.SpanAttrAccountCode, cmd.AccountCode)
	defer func() { telemetry.End(span, err) }()

	var created *ledger.Account
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		a, err := s.create(ctx, cmd)
		if err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Account created",
		zap.String("account_id", created.ID.String()),
		zap.String("code", created.Code),
		zap.String("type", string(created.Type)),
	)
	r := ToAccountResponse(created)
	return &r, nil
}

// create runs inside the caller's transaction
func (s *AccountService) create(ctx context.Context, cmd CreateAccountCommand) (*ledger.Account, error) {
	typ, ok := ledger.ParseAccountType(cmd.AccountType)
	if !ok {
		return nil, shared.NewValidationError(ledger.CodeInvalidAccountType, fmt.Sprintf("unknown account type %q", cmd.AccountType))
	}
	currency := valueobject.Currency(cmd.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	exists, err := s.accounts.ExistsByCode(ctx, cmd.AccountCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewInvariantError(ledger.CodeDuplicateAccountCode,
			fmt.Sprintf("account code %s already exists", cmd.AccountCode))
	}

	if cmd.ParentAccountID != nil && *cmd.ParentAccountID != uuid.Nil {
		parent, err := s.accounts.FindByID(ctx, *cmd.ParentAccountID)
		if err != nil {
			return nil, err
		}
		if parent.IsClosed() {
			return nil, shared.NewStateError(ledger.CodeAccountClosed, parent.Status().String(),
				fmt.Sprintf("parent account %s is closed", parent.Code))
		}
		if parent.Type != typ {
			return nil, shared.NewValidationError("INVALID_PARENT",
				fmt.Sprintf("parent %s is %s but the new account is %s", parent.Code, parent.Type, typ))
		}
	}

	var opts []ledger.AccountOption
	if cmd.Subtype != "" {
		opts = append(opts, ledger.WithSubtype(ledger.AccountSubtype(cmd.Subtype)))
	}
	if cmd.Description != "" {
		opts = append(opts, ledger.WithDescription(cmd.Description))
	}
	if cmd.IsControlAccount {
		opts = append(opts, ledger.AsControlAccount())
	}
	if cmd.IsSystemAccount {
		opts = append(opts, ledger.AsSystemAccount())
	}
	account, err := ledger.NewAccount(cmd.AccountCode, cmd.AccountName, typ, currency, cmd.ParentAccountID, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	if err := saveEvents(ctx, s.events, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, cmd UpdateAccountCommand) (*AccountResponse, error) {
	return s.mutate(ctx, "update", cmd.ID, func(ctx context.Context, a *ledger.Account) error {
		if cmd.Version != nil && *cmd.Version != a.Version {
			return shared.NewConflictError(fmt.Sprintf("account %s is at version %d, not %d", a.Code, a.Version, *cmd.Version))
		}
		if cmd.AccountName != nil || cmd.Description != nil {
			name, desc := a.Name, a.Description
			if cmd.AccountName != nil {
				name = *cmd.AccountName
			}
			if cmd.Description != nil {
				desc = *cmd.Description
			}
			if err := a.UpdateDetails(name, desc); err != nil {
				return err
			}
		}
		if cmd.AllowManualEntries != nil || cmd.IsControlAccount != nil {
			control, manual := a.IsControlAccount, a.AllowManualEntries
			if cmd.IsControlAccount != nil {
				control = *cmd.IsControlAccount
			}
			if cmd.AllowManualEntries != nil {
				manual = *cmd.AllowManualEntries
			}
			if err := a.SetPostingRules(control, manual); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *AccountService) Activate(ctx context.Context, id, actorID uuid.UUID) (*AccountResponse, error) {
	return s.mutate(ctx, "activate", id, func(_ context.Context, a *ledger.Account) error {
		return a.Activate(actorID)
	})
}

func (s *AccountService) Deactivate(ctx context.Context, id, actorID uuid.UUID) (*AccountResponse, error) {
	return s.mutate(ctx, "deactivate", id, func(_ context.Context, a *ledger.Account) error {
		return a.Deactivate(actorID)
	})
}

// Close requires a zero balance and no active children
func (s *AccountService) Close(ctx context.Context, id, actorID uuid.UUID) (*AccountResponse, error) {
	return s.mutate(ctx, "close", id, func(ctx context.Context, a *ledger.Account) error {
		chart, err := s.loadChart(ctx)
		if err != nil {
			return err
		}
		return a.Close(actorID, chart.HasActiveChildren(a.ID))
	})
}

// Reparent moves an account under newParentID, or to the root when it is nil
func (s *AccountService) Reparent(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*AccountResponse, error) {
	return s.mutate(ctx, "reparent", id, func(ctx context.Context, a *ledger.Account) error {
		if newParentID == nil || *newParentID == uuid.Nil {
			return a.Reparent(nil, nil)
		}
		chart, err := s.loadChart(ctx)
		if err != nil {
			return err
		}
		parent, ok := chart.Get(*newParentID)
		if !ok {
			return shared.NewNotFoundError("account", *newParentID)
		}
		return a.Reparent(parent, chart)
	})
}

// mutate loads an account, applies fn and saves it with its events in one transaction
func (s *AccountService) mutate(
	ctx context.Context,
	method string,
	id uuid.UUID,
	fn func(ctx context.Context, a *ledger.Account) error,
) (resp *AccountResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", method, telemetry.SpanAttrAccountID, id.String())
	defer func() { telemetry.End(span, err) }()

	var account *ledger.Account
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		a, err := s.accounts.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, a); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, a); err != nil {
			return err
		}
		account = a
		return saveEvents(ctx, s.events, a)
	})
	if err != nil {
		return nil, err
	}
	s.opts.logger.Info("Account changed",
		zap.String("operation", method),
		zap.String("account_id", account.ID.String()),
		zap.String("code", account.Code),
		zap.String("status", account.Status().String()),
	)
	r := ToAccountResponse(account)
	return &r, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*AccountResponse, error) {
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := ToAccountResponse(a)
	return &r, nil
}

func (s *AccountService) GetByCode(ctx context.Context, code string) (*AccountResponse, error) {
	a, err := s.accounts.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	r := ToAccountResponse(a)
	return &r, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, q AccountQuery) (*shared.Paginated[AccountResponse], error) {
	filter := ledger.AccountFilter{Filter: q.Filter, ParentID: q.ParentID, RootOnly: q.RootOnly}
	if q.Type != "" {
		t, ok := ledger.ParseAccountType(q.Type)
		if !ok {
			return nil, shared.NewValidationError(ledger.CodeInvalidAccountType, fmt.Sprintf("unknown account type %q", q.Type))
		}
		filter.Type = &t
	}
	if q.Status != "" {
		st := ledger.AccountStatus(q.Status)
		if !st.IsValid() {
			return nil, shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("unknown account status %q", q.Status))
		}
		filter.Status = &st
	}
	items, total, err := s.accounts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := mapPage(items, total, q.Filter, ToAccountResponse)
	return &page, nil
}

// GetHierarchy returns the chart as a forest ordered by code, each node carrying
// the rolled-up balance of its subtree
func (s *AccountService) GetHierarchy(ctx context.Context) ([]*AccountNode, error) {
	chart, err := s.loadChart(ctx)
	if err != nil {
		return nil, err
	}
	roots := chart.Roots()
	nodes := make([]*AccountNode, 0, len(roots))
	for _, r := range roots {
		n, err := buildNode(chart, r)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func buildNode(chart *ledger.Chart, a *ledger.Account) (*AccountNode, error) {
	rollup, err := chart.RollupBalance(a.ID)
	if err != nil {
		return nil, err
	}
	node := &AccountNode{
		AccountResponse: ToAccountResponse(a),
		Depth:           chart.Depth(a.ID),
		RollupBalance:   rollup,
		IsLeaf:          chart.IsLeaf(a.ID),
	}
	for _, child := range chart.Children(a.ID) {
		cn, err := buildNode(chart, child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, cn)
	}
	return node, nil
}

func (s *AccountService) loadChart(ctx context.Context) (*ledger.Chart, error) {
	all, err := s.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.NewChart(all), nil
}
