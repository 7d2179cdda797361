package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationHandler handles bank reconciliation endpoints
type ReconciliationHandler struct {
	BaseHandler
	reconciliationService *ledgerapp.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciliationService *ledgerapp.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService}
}

// StartReconciliationRequest opens a statement for a bank account and period.
// The book balance is computed from posted lines unless given.
// @Description Request body for starting a reconciliation
type StartReconciliationRequest struct {
	BankAccountID uuid.UUID        `json:"bank_account_id" binding:"required"`
	StatementDate *dto.Date        `json:"statement_date" swaggertype:"string" example:"2024-03-31"`
	PeriodStart   *dto.Date        `json:"period_start" binding:"required" swaggertype:"string" example:"2024-03-01"`
	PeriodEnd     *dto.Date        `json:"period_end" binding:"required" swaggertype:"string" example:"2024-03-31"`
	BankBalance   decimal.Decimal  `json:"bank_balance" swaggertype:"string" example:"650.00"`
	BookBalance   *decimal.Decimal `json:"book_balance" swaggertype:"string"`
}

// BankLineRequest is one line of the bank statement. Withdrawals are negative.
type BankLineRequest struct {
	Reference string          `json:"reference" binding:"max=100"`
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"-250.00"`
	Date      *dto.Date       `json:"date" binding:"required" swaggertype:"string"`
}

// AddBankLinesRequest appends statement lines
type AddBankLinesRequest struct {
	Lines []BankLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// OutstandingItemRequest records a cheque or deposit the bank has not seen yet
type OutstandingItemRequest struct {
	Kind           string          `json:"kind" binding:"required" example:"CHECK"`
	Reference      string          `json:"reference" binding:"max=100"`
	Amount         decimal.Decimal `json:"amount" binding:"positive_amount" swaggertype:"string"`
	Date           *dto.Date       `json:"date" binding:"required" swaggertype:"string"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id"`
}

// AdjustmentRequest explains part of the difference on one side
type AdjustmentRequest struct {
	Side        string          `json:"side" binding:"required" example:"BOOK"`
	Description string          `json:"description" binding:"required,max=500" example:"monthly service fee"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"-15.00"`
}

// VarianceRequest parks a statement with an unexplained variance
type VarianceRequest struct {
	Explanation string `json:"explanation" binding:"required,max=1000"`
}

// ReconciliationListRequest filters statements
type ReconciliationListRequest struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty,oneof=IN_PROGRESS VARIANCE_PENDING COMPLETED REJECTED"`
}

// Start godoc
// @ID           startReconciliation
// @Summary      Start a bank reconciliation
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Param        request body StartReconciliationRequest true "Statement"
// @Success      201 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations [post]
func (h *ReconciliationHandler) Start(c *gin.Context) {
	var req StartReconciliationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	st, err := h.reconciliationService.StartReconciliation(c.Request.Context(), ledgerapp.StartReconciliationCommand{
		BankAccountID: req.BankAccountID,
		StatementDate: timeOf(req.StatementDate),
		PeriodStart:   req.PeriodStart.Time,
		PeriodEnd:     req.PeriodEnd.Time,
		BankBalance:   req.BankBalance,
		BookBalance:   req.BookBalance,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, st)
}

// AddBankLines godoc
// @ID           addReconciliationBankLines
// @Summary      Add bank statement lines
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Param        request body AddBankLinesRequest true "Lines"
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/bank-lines [post]
func (h *ReconciliationHandler) AddBankLines(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AddBankLinesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	lines := make([]ledgerapp.BankLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = ledgerapp.BankLineInput{Reference: l.Reference, Amount: l.Amount, Date: l.Date.Time}
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return h.reconciliationService.AddBankLines(ctx, id, lines)
	})
}

// ImportBankStatement godoc
// @ID           importReconciliationBankStatement
// @Summary      Import bank statement lines from a CSV export
// @Description  Accepts a multipart upload in field "file" or a raw text/csv body. Rows need a date
// @Description  and either a signed amount or withdrawal and deposit columns. Any rejected row
// @Description  rejects the whole file.
// @Tags         reconciliations
// @Accept       mpfd,plain
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Param        file formData file false "Statement CSV"
// @Success      200 {object} APIResponse[ledgerapp.BankStatementImport]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} APIResponse[ledgerapp.BankStatementImport]
// @Security     BearerAuth
// @Router       /reconciliations/{id}/bank-lines/import [post]
func (h *ReconciliationHandler) ImportBankStatement(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			h.BadRequest(c, "multipart upload needs a \"file\" field")
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.BadRequest(c, "cannot read uploaded file")
			return
		}
		defer f.Close()
		body = f
	}

	res, err := h.reconciliationService.ImportBankStatement(c.Request.Context(), id, body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if len(res.Errors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, dto.Response{
			Success: false,
			Data:    res,
			Error: &dto.ErrorInfo{
				Code:      ledger.CodeInvalidStatementFile,
				Message:   "bank statement has rejected rows",
				RequestID: middleware.GetRequestID(c),
			},
		})
		return
	}
	h.Success(c, res)
}

// AddOutstandingItem godoc
// @ID           addReconciliationOutstandingItem
// @Summary      Record an outstanding cheque or deposit
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Param        request body OutstandingItemRequest true "Item"
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/outstanding-items [post]
func (h *ReconciliationHandler) AddOutstandingItem(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req OutstandingItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return h.reconciliationService.AddOutstandingItem(ctx, id, ledgerapp.OutstandingItemInput{
			Kind:           req.Kind,
			Reference:      req.Reference,
			Amount:         req.Amount,
			Date:           req.Date.Time,
			JournalEntryID: req.JournalEntryID,
		})
	})
}

// AddAdjustment godoc
// @ID           addReconciliationAdjustment
// @Summary      Add a bank or book side adjustment
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Param        request body AdjustmentRequest true "Adjustment"
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/adjustments [post]
func (h *ReconciliationHandler) AddAdjustment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AdjustmentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return h.reconciliationService.AddAdjustment(ctx, id, ledgerapp.AdjustmentInput{
			Side:        req.Side,
			Description: req.Description,
			Amount:      req.Amount,
		})
	})
}

// AutoMatch godoc
// @ID           autoMatchReconciliation
// @Summary      Match bank lines to posted book lines
// @Description  Unmatched book lines in the period become outstanding items
// @Tags         reconciliations
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.AutoMatchResult]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/auto-match [post]
func (h *ReconciliationHandler) AutoMatch(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.reconciliationService.AutoMatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Complete godoc
// @ID           completeReconciliation
// @Summary      Complete a balanced reconciliation
// @Tags         reconciliations
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/complete [post]
func (h *ReconciliationHandler) Complete(c *gin.Context) {
	h.withActor(c, h.reconciliationService.Complete)
}

// MarkVariancePending godoc
// @ID           markReconciliationVariancePending
// @Summary      Park a reconciliation with an explained variance
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Param        request body VarianceRequest true "Explanation"
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/variance-pending [post]
func (h *ReconciliationHandler) MarkVariancePending(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req VarianceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return h.reconciliationService.MarkVariancePending(ctx, id, req.Explanation)
	})
}

// AcceptVariance godoc
// @ID           acceptReconciliationVariance
// @Summary      Accept a pending variance and complete
// @Tags         reconciliations
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/accept-variance [post]
func (h *ReconciliationHandler) AcceptVariance(c *gin.Context) {
	h.withActor(c, h.reconciliationService.AcceptVariance)
}

// Reject godoc
// @ID           rejectReconciliation
// @Summary      Reject a reconciliation
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Param        request body ReasonRequest true "Reason"
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/reject [post]
func (h *ReconciliationHandler) Reject(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ReasonRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return h.reconciliationService.Reject(ctx, id, req.Reason)
	})
}

// Reopen godoc
// @ID           reopenReconciliation
// @Summary      Reopen a rejected or parked reconciliation
// @Tags         reconciliations
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id}/reopen [post]
func (h *ReconciliationHandler) Reopen(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return h.reconciliationService.Reopen(ctx, id)
	})
}

// Get godoc
// @ID           getReconciliation
// @Summary      Get a reconciliation
// @Tags         reconciliations
// @Produce      json
// @Param        id path string true "Reconciliation ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.ReconciliationResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /reconciliations/{id} [get]
func (h *ReconciliationHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return h.reconciliationService.GetReconciliation(ctx, id)
	})
}

// List godoc
// @ID           listReconciliations
// @Summary      List reconciliations
// @Tags         reconciliations
// @Produce      json
// @Param        bank_account_id query string false "Bank account" format(uuid)
// @Param        status query string false "Reconciliation status"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]ledgerapp.ReconciliationResponse]
// @Security     BearerAuth
// @Router       /reconciliations [get]
func (h *ReconciliationHandler) List(c *gin.Context) {
	var req ReconciliationListRequest
	if !h.bindQuery(c, &req) {
		return
	}
	bank, ok := h.queryUUID(c, "bank_account_id")
	if !ok {
		return
	}
	result, err := h.reconciliationService.ListReconciliations(c.Request.Context(), ledgerapp.ReconciliationQuery{
		Filter:        req.Filter(),
		BankAccountID: bank,
		Status:        req.Status,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page(c, result)
}

func (h *ReconciliationHandler) withActor(c *gin.Context, fn func(ctx context.Context, id, actorID uuid.UUID) (*ledgerapp.ReconciliationResponse, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error) {
		return fn(ctx, id, actor(c))
	})
}

func (h *ReconciliationHandler) respond(c *gin.Context, fn func(ctx context.Context) (*ledgerapp.ReconciliationResponse, error)) {
	st, err := fn(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, st)
}
