package handler

import (
	"context"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentHandler handles vendor bill and customer invoice endpoints
type DocumentHandler struct {
	BaseHandler
	documentService *ledgerapp.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *ledgerapp.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// LineItemRequest is one priced line of a bill or invoice
type LineItemRequest struct {
	Description   string          `json:"description" binding:"required,max=500"`
	Quantity      decimal.Decimal `json:"quantity" binding:"positive_amount" swaggertype:"string" example:"2"`
	Unit          string          `json:"unit" binding:"omitempty,max=20" example:"EA"`
	UnitCost      decimal.Decimal `json:"unit_cost" swaggertype:"string" example:"49.99"`
	TaxRate       decimal.Decimal `json:"tax_rate" swaggertype:"string" example:"0.08"`
	TaxCalculator string          `json:"tax_calculator" binding:"omitempty,max=50"`
}

func (r LineItemRequest) input() ledgerapp.LineItemInput {
	return ledgerapp.LineItemInput{
		Description:   r.Description,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		UnitCost:      r.UnitCost,
		TaxRate:       r.TaxRate,
		TaxCalculator: r.TaxCalculator,
	}
}

// EarlyPaymentRequest offers a discount for settling before DiscountDate
type EarlyPaymentRequest struct {
	DiscountDate *dto.Date       `json:"discount_date" binding:"required" swaggertype:"string" example:"2024-03-10"`
	Rate         decimal.Decimal `json:"rate" binding:"positive_amount" swaggertype:"string" example:"0.02"`
}

func (r *EarlyPaymentRequest) input() *ledgerapp.EarlyPaymentInput {
	if r == nil {
		return nil
	}
	return &ledgerapp.EarlyPaymentInput{DiscountDate: r.DiscountDate.Time, Rate: r.Rate}
}

// CreateDocumentRequest represents a request to draft a bill or invoice
// @Description Request body for a draft document
type CreateDocumentRequest struct {
	Kind           string               `json:"kind" binding:"required,oneof=BILL INVOICE" example:"BILL"`
	Number         string               `json:"number" binding:"omitempty,max=50"`
	CounterpartyID uuid.UUID            `json:"counterparty_id" binding:"required"`
	Currency       string               `json:"currency" binding:"omitempty,len=3"`
	IssueDate      *dto.Date            `json:"issue_date" binding:"required" swaggertype:"string" example:"2024-03-01"`
	DueDate        *dto.Date            `json:"due_date" binding:"required" swaggertype:"string" example:"2024-03-31"`
	Description    string               `json:"description" binding:"omitempty,max=500"`
	Lines          []LineItemRequest    `json:"lines" binding:"omitempty,dive"`
	Discount       *decimal.Decimal     `json:"discount" swaggertype:"string"`
	EarlyPayment   *EarlyPaymentRequest `json:"early_payment"`
}

// DiscountRequest sets a flat document discount
type DiscountRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"10.00"`
}

// ReasonRequest carries the reason for a rejection or void
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// DocumentPaymentRequest records a payment straight against a document
type DocumentPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"positive_amount" swaggertype:"string" example:"100.00"`
	Date          *dto.Date       `json:"date" binding:"required" swaggertype:"string" example:"2024-03-20"`
	Method        string          `json:"method" binding:"required,oneof=CASH CHECK ACH WIRE CARD OTHER"`
	BankAccountID *uuid.UUID      `json:"bank_account_id"`
}

// OverdueSweepRequest runs the overdue sweep as of a date; the default is today
type OverdueSweepRequest struct {
	AsOf *dto.Date `json:"as_of" swaggertype:"string"`
}

// DocumentListRequest filters bills and invoices
type DocumentListRequest struct {
	dto.ListRequest
	Kind   string `form:"kind" binding:"omitempty,oneof=BILL INVOICE"`
	Status string `form:"status" binding:"omitempty,oneof=DRAFT PENDING_APPROVAL APPROVED ISSUED PARTIALLY_PAID PAID OVERDUE VOIDED REJECTED"`
}

// Create godoc
// @ID           createDocument
// @Summary      Draft a bill or invoice
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request body CreateDocumentRequest true "Document"
// @Success      201 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	lines := make([]ledgerapp.LineItemInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = l.input()
	}

	doc, err := h.documentService.CreateDocument(c.Request.Context(), ledgerapp.CreateDocumentCommand{
		Kind:           req.Kind,
		Number:         req.Number,
		CounterpartyID: req.CounterpartyID,
		Currency:       req.Currency,
		IssueDate:      req.IssueDate.Time,
		DueDate:        req.DueDate.Time,
		Description:    req.Description,
		Lines:          lines,
		Discount:       req.Discount,
		EarlyPayment:   req.EarlyPayment.input(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// AddLineItem godoc
// @ID           addDocumentLineItem
// @Summary      Add a line item to a draft
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body LineItemRequest true "Line item"
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/lines [post]
func (h *DocumentHandler) AddLineItem(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req LineItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return h.documentService.AddLineItem(ctx, id, req.input())
	})
}

// RemoveLineItem godoc
// @ID           removeDocumentLineItem
// @Summary      Remove a line item from a draft
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        index path int true "Zero based line index"
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/lines/{index} [delete]
func (h *DocumentHandler) RemoveLineItem(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	index, ok := h.pathInt(c, "index")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return h.documentService.RemoveLineItem(ctx, id, index)
	})
}

// SetDiscount godoc
// @ID           setDocumentDiscount
// @Summary      Set the flat discount of a draft
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body DiscountRequest true "Discount"
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/discount [put]
func (h *DocumentHandler) SetDiscount(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req DiscountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return h.documentService.SetDiscount(ctx, id, req.Amount)
	})
}

// SetEarlyPaymentTerms godoc
// @ID           setDocumentEarlyPayment
// @Summary      Set or clear early payment terms
// @Description  A null body clears the terms
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body EarlyPaymentRequest false "Terms"
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/early-payment [put]
func (h *DocumentHandler) SetEarlyPaymentTerms(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req *EarlyPaymentRequest
	if c.Request.ContentLength != 0 {
		req = &EarlyPaymentRequest{}
		if !h.bindJSON(c, req) {
			return
		}
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return h.documentService.SetEarlyPaymentTerms(ctx, id, req.input())
	})
}

// Submit godoc
// @ID           submitDocument
// @Summary      Submit a draft for approval
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/submit [post]
func (h *DocumentHandler) Submit(c *gin.Context) {
	h.byID(c, h.documentService.Submit)
}

// Approve godoc
// @ID           approveDocument
// @Summary      Approve a submitted document
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/approve [post]
func (h *DocumentHandler) Approve(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return h.documentService.Approve(ctx, id, actor(c))
	})
}

// Reject godoc
// @ID           rejectDocument
// @Summary      Reject a submitted document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body ReasonRequest true "Reason"
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/reject [post]
func (h *DocumentHandler) Reject(c *gin.Context) {
	h.withReason(c, h.documentService.Reject)
}

// ReturnToDraft godoc
// @ID           returnDocumentToDraft
// @Summary      Reopen a rejected document for editing
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/return-to-draft [post]
func (h *DocumentHandler) ReturnToDraft(c *gin.Context) {
	h.byID(c, h.documentService.ReturnToDraft)
}

// Issue godoc
// @ID           issueDocument
// @Summary      Issue an approved document
// @Description  Posts the document to the ledger
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/issue [post]
func (h *DocumentHandler) Issue(c *gin.Context) {
	h.byID(c, h.documentService.Issue)
}

// Void godoc
// @ID           voidDocument
// @Summary      Void a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body ReasonRequest true "Reason"
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/void [post]
func (h *DocumentHandler) Void(c *gin.Context) {
	h.withReason(c, h.documentService.Void)
}

// ProcessPayment godoc
// @ID           payDocument
// @Summary      Apply a payment to a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body DocumentPaymentRequest true "Payment"
// @Success      200 {object} APIResponse[ledgerapp.DocumentPaymentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/payments [post]
func (h *DocumentHandler) ProcessPayment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req DocumentPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.documentService.ProcessPayment(c.Request.Context(), ledgerapp.ProcessDocumentPaymentCommand{
		DocumentID:    id,
		Amount:        req.Amount,
		Date:          req.Date.Time,
		Method:        req.Method,
		BankAccountID: req.BankAccountID,
		ActorID:       actor(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// MarkOverdue godoc
// @ID           markDocumentsOverdue
// @Summary      Move past-due documents to OVERDUE
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        request body OverdueSweepRequest false "Sweep date"
// @Success      200 {object} APIResponse[ledgerapp.OverdueSweepResult]
// @Security     BearerAuth
// @Router       /documents/overdue-sweep [post]
func (h *DocumentHandler) MarkOverdue(c *gin.Context) {
	var req OverdueSweepRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	result, err := h.documentService.MarkOverdue(c.Request.Context(), timeOf(req.AsOf))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Get godoc
// @ID           getDocument
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	h.byID(c, h.documentService.GetDocument)
}

// GetByNumber godoc
// @ID           getDocumentByNumber
// @Summary      Get a document by kind and number
// @Tags         documents
// @Produce      json
// @Param        kind path string true "BILL or INVOICE"
// @Param        number path string true "Document number"
// @Success      200 {object} APIResponse[ledgerapp.DocumentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /documents/number/{kind}/{number} [get]
func (h *DocumentHandler) GetByNumber(c *gin.Context) {
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return h.documentService.GetByNumber(ctx, c.Param("kind"), c.Param("number"))
	})
}

// List godoc
// @ID           listDocuments
// @Summary      List documents
// @Tags         documents
// @Produce      json
// @Param        kind query string false "BILL or INVOICE"
// @Param        status query string false "Document status"
// @Param        counterparty_id query string false "Vendor or customer" format(uuid)
// @Param        due_before query string false "Due strictly before this date" format(date)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]ledgerapp.DocumentResponse]
// @Security     BearerAuth
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var req DocumentListRequest
	if !h.bindQuery(c, &req) {
		return
	}
	counterparty, ok := h.queryUUID(c, "counterparty_id")
	if !ok {
		return
	}
	dueBefore, ok := h.queryDate(c, "due_before")
	if !ok {
		return
	}
	result, err := h.documentService.ListDocuments(c.Request.Context(), ledgerapp.DocumentQuery{
		Filter:         req.Filter(),
		Kind:           req.Kind,
		Status:         req.Status,
		CounterpartyID: counterparty,
		DueBefore:      dueBefore,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page(c, result)
}

func (h *DocumentHandler) byID(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*ledgerapp.DocumentResponse, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return fn(ctx, id)
	})
}

func (h *DocumentHandler) withReason(c *gin.Context, fn func(ctx context.Context, id uuid.UUID, reason string) (*ledgerapp.DocumentResponse, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ReasonRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.DocumentResponse, error) {
		return fn(ctx, id, req.Reason)
	})
}

func (h *DocumentHandler) respond(c *gin.Context, fn func(ctx context.Context) (*ledgerapp.DocumentResponse, error)) {
	doc, err := fn(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}
