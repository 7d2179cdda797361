package handler

import (
	"context"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AccountHandler handles chart of accounts endpoints
type AccountHandler struct {
	BaseHandler
	accountService *ledgerapp.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *ledgerapp.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountRequest represents a request to open a ledger account
// @Description Request body for creating an account
type CreateAccountRequest struct {
	AccountCode      string     `json:"account_code" binding:"required,max=20" example:"1010"`
	AccountName      string     `json:"account_name" binding:"required,max=200" example:"Operating account"`
	AccountType      string     `json:"account_type" binding:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE" example:"ASSET"`
	Subtype          string     `json:"subtype" binding:"omitempty,max=50" example:"BANK_CHECKING"`
	Currency         string     `json:"currency" binding:"omitempty,len=3" example:"USD"`
	ParentAccountID  *uuid.UUID `json:"parent_account_id"`
	Description      string     `json:"description" binding:"omitempty,max=500"`
	IsControlAccount bool       `json:"is_control_account"`
	IsSystemAccount  bool       `json:"is_system_account"`
}

// UpdateAccountRequest carries the editable account fields; absent fields are left alone
type UpdateAccountRequest struct {
	AccountName        *string `json:"account_name" binding:"omitempty,min=1,max=200"`
	Description        *string `json:"description" binding:"omitempty,max=500"`
	AllowManualEntries *bool   `json:"allow_manual_entries"`
	IsControlAccount   *bool   `json:"is_control_account"`
	Version            *int    `json:"version" binding:"omitempty,min=1"`
}

// ReparentRequest moves an account under a new parent, or to the root when ParentID is null
type ReparentRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// AccountListRequest filters the account list
type AccountListRequest struct {
	dto.ListRequest
	Type     string `form:"type" binding:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Status   string `form:"status" binding:"omitempty,oneof=ACTIVE INACTIVE CLOSED"`
	RootOnly bool   `form:"root_only"`
}

// Create godoc
// @ID           createAccount
// @Summary      Create an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request body CreateAccountRequest true "Account"
// @Success      201 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), ledgerapp.CreateAccountCommand{
		AccountCode:      req.AccountCode,
		AccountName:      req.AccountName,
		AccountType:      req.AccountType,
		Subtype:          req.Subtype,
		Currency:         req.Currency,
		ParentAccountID:  req.ParentAccountID,
		Description:      req.Description,
		IsControlAccount: req.IsControlAccount,
		IsSystemAccount:  req.IsSystemAccount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// Update godoc
// @ID           updateAccount
// @Summary      Update an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        request body UpdateAccountRequest true "Fields to change"
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id} [patch]
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	account, err := h.accountService.UpdateAccount(c.Request.Context(), ledgerapp.UpdateAccountCommand{
		ID:                 id,
		AccountName:        req.AccountName,
		Description:        req.Description,
		AllowManualEntries: req.AllowManualEntries,
		IsControlAccount:   req.IsControlAccount,
		Version:            req.Version,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Get godoc
// @ID           getAccount
// @Summary      Get an account
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	account, err := h.accountService.GetAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// GetByCode godoc
// @ID           getAccountByCode
// @Summary      Get an account by its code
// @Tags         accounts
// @Produce      json
// @Param        code path string true "Account code"
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/code/{code} [get]
func (h *AccountHandler) GetByCode(c *gin.Context) {
	account, err := h.accountService.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// List godoc
// @ID           listAccounts
// @Summary      List accounts
// @Tags         accounts
// @Produce      json
// @Param        type query string false "Account type"
// @Param        status query string false "Account status"
// @Param        parent_id query string false "Parent account" format(uuid)
// @Param        root_only query bool false "Only top level accounts"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]ledgerapp.AccountResponse]
// @Security     BearerAuth
// @Router       /accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	var req AccountListRequest
	if !h.bindQuery(c, &req) {
		return
	}
	parentID, ok := h.queryUUID(c, "parent_id")
	if !ok {
		return
	}

	result, err := h.accountService.ListAccounts(c.Request.Context(), ledgerapp.AccountQuery{
		Filter:   req.Filter(),
		Type:     req.Type,
		Status:   req.Status,
		ParentID: parentID,
		RootOnly: req.RootOnly,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page(c, result)
}

// Hierarchy godoc
// @ID           getAccountHierarchy
// @Summary      Chart of accounts as a tree
// @Tags         accounts
// @Produce      json
// @Success      200 {object} APIResponse[[]ledgerapp.AccountNode]
// @Security     BearerAuth
// @Router       /accounts/hierarchy [get]
func (h *AccountHandler) Hierarchy(c *gin.Context) {
	tree, err := h.accountService.GetHierarchy(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tree)
}

// Activate godoc
// @ID           activateAccount
// @Summary      Activate an account
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id}/activate [post]
func (h *AccountHandler) Activate(c *gin.Context) {
	h.transition(c, h.accountService.Activate)
}

// Deactivate godoc
// @ID           deactivateAccount
// @Summary      Deactivate an account
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id}/deactivate [post]
func (h *AccountHandler) Deactivate(c *gin.Context) {
	h.transition(c, h.accountService.Deactivate)
}

// Close godoc
// @ID           closeAccount
// @Summary      Close an account
// @Description  Only accounts with a zero balance can be closed
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id}/close [post]
func (h *AccountHandler) Close(c *gin.Context) {
	h.transition(c, h.accountService.Close)
}

func (h *AccountHandler) transition(c *gin.Context, fn func(ctx context.Context, id, actorID uuid.UUID) (*ledgerapp.AccountResponse, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	account, err := fn(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Reparent godoc
// @ID           reparentAccount
// @Summary      Move an account in the hierarchy
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        request body ReparentRequest true "New parent"
// @Success      200 {object} APIResponse[ledgerapp.AccountResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id}/parent [put]
func (h *AccountHandler) Reparent(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ReparentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := h.accountService.Reparent(c.Request.Context(), id, req.ParentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// ImportChart godoc
// @ID           importChartOfAccounts
// @Summary      Import a chart of accounts
// @Description  Creates the accounts in a YAML chart. Codes that already exist are skipped.
// @Tags         accounts
// @Accept       application/yaml
// @Produce      json
// @Success      200 {object} APIResponse[ledgerapp.ChartImportResult]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/import [post]
func (h *AccountHandler) ImportChart(c *gin.Context) {
	seed, err := ledgerapp.ParseChartSeed(c.Request.Body)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	result, err := h.accountService.ImportChart(c.Request.Context(), seed)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
