package handler

import (
	"context"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles disbursement and receipt endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *ledgerapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *ledgerapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreatePaymentRequest represents a request to draft a payment
// @Description Request body for a draft payment
type CreatePaymentRequest struct {
	Direction      string          `json:"direction" binding:"required,oneof=DISBURSEMENT RECEIPT" example:"DISBURSEMENT"`
	PaymentNumber  string          `json:"payment_number" binding:"omitempty,max=50"`
	CounterpartyID uuid.UUID       `json:"counterparty_id" binding:"required"`
	BankAccountID  uuid.UUID       `json:"bank_account_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"positive_amount" swaggertype:"string" example:"250.00"`
	Currency       string          `json:"currency" binding:"omitempty,len=3"`
	Method         string          `json:"method" binding:"required,oneof=CASH CHECK ACH WIRE CARD OTHER"`
	PaymentDate    *dto.Date       `json:"payment_date" binding:"required" swaggertype:"string" example:"2024-03-15"`
	Reference      string          `json:"reference" binding:"omitempty,max=100"`
}

// AllocationRequest assigns part of a payment to one document
type AllocationRequest struct {
	DocumentID uuid.UUID       `json:"document_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"positive_amount" swaggertype:"string"`
}

// AllocatePaymentRequest allocates explicitly or by strategy when Allocations is empty
type AllocatePaymentRequest struct {
	Allocations []AllocationRequest `json:"allocations" binding:"omitempty,dive"`
	Strategy    string              `json:"strategy" binding:"omitempty,max=50" example:"fifo"`
}

// VoidPaymentRequest voids an issued payment
type VoidPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentListRequest filters payments
type PaymentListRequest struct {
	dto.ListRequest
	Direction  string `form:"direction" binding:"omitempty,oneof=DISBURSEMENT RECEIPT"`
	Status     string `form:"status" binding:"omitempty,oneof=DRAFT PENDING_APPROVAL APPROVED ISSUED VOIDED"`
	Reconciled *bool  `form:"reconciled"`
}

// Create godoc
// @ID           createPayment
// @Summary      Draft a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body CreatePaymentRequest true "Payment"
// @Success      201 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	payment, err := h.paymentService.CreatePayment(c.Request.Context(), ledgerapp.CreatePaymentCommand{
		Direction:      req.Direction,
		PaymentNumber:  req.PaymentNumber,
		CounterpartyID: req.CounterpartyID,
		BankAccountID:  req.BankAccountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		PaymentDate:    req.PaymentDate.Time,
		Reference:      req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// Allocate godoc
// @ID           allocatePayment
// @Summary      Allocate a payment to documents
// @Description  Without explicit allocations the named strategy (or the default) spreads the amount over open documents
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body AllocatePaymentRequest true "Allocations"
// @Success      200 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/allocations [put]
func (h *PaymentHandler) Allocate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AllocatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	allocations := make([]ledgerapp.AllocationInput, len(req.Allocations))
	for i, a := range req.Allocations {
		allocations[i] = ledgerapp.AllocationInput{DocumentID: a.DocumentID, Amount: a.Amount}
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.PaymentResponse, error) {
		return h.paymentService.AllocatePayment(ctx, ledgerapp.AllocatePaymentCommand{
			PaymentID:   id,
			Allocations: allocations,
			Strategy:    req.Strategy,
		})
	})
}

// Submit godoc
// @ID           submitPayment
// @Summary      Submit a payment for approval
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/submit [post]
func (h *PaymentHandler) Submit(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.PaymentResponse, error) {
		return h.paymentService.Submit(ctx, id)
	})
}

// Approve godoc
// @ID           approvePayment
// @Summary      Approve a payment
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/approve [post]
func (h *PaymentHandler) Approve(c *gin.Context) {
	h.withActor(c, h.paymentService.Approve)
}

// Issue godoc
// @ID           issuePayment
// @Summary      Issue an approved payment
// @Description  Posts the cash movement and settles the allocated documents
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/issue [post]
func (h *PaymentHandler) Issue(c *gin.Context) {
	h.withActor(c, h.paymentService.Issue)
}

// Void godoc
// @ID           voidPayment
// @Summary      Void a payment
// @Description  Issued payments are reversed in the ledger. Reconciled payments cannot be voided.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body VoidPaymentRequest true "Reason"
// @Success      200 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id}/void [post]
func (h *PaymentHandler) Void(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req VoidPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.PaymentResponse, error) {
		return h.paymentService.VoidPayment(ctx, id, req.Reason, actor(c))
	})
}

// Get godoc
// @ID           getPayment
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.PaymentResponse, error) {
		return h.paymentService.GetPayment(ctx, id)
	})
}

// GetByNumber godoc
// @ID           getPaymentByNumber
// @Summary      Get a payment by number
// @Tags         payments
// @Produce      json
// @Param        number path string true "Payment number"
// @Success      200 {object} APIResponse[ledgerapp.PaymentResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /payments/number/{number} [get]
func (h *PaymentHandler) GetByNumber(c *gin.Context) {
	h.respond(c, func(ctx context.Context) (*ledgerapp.PaymentResponse, error) {
		return h.paymentService.GetByNumber(ctx, c.Param("number"))
	})
}

// List godoc
// @ID           listPayments
// @Summary      List payments
// @Tags         payments
// @Produce      json
// @Param        direction query string false "DISBURSEMENT or RECEIPT"
// @Param        status query string false "Payment status"
// @Param        counterparty_id query string false "Vendor or customer" format(uuid)
// @Param        bank_account_id query string false "Bank account" format(uuid)
// @Param        reconciled query bool false "Reconciliation state"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]ledgerapp.PaymentResponse]
// @Security     BearerAuth
// @Router       /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var req PaymentListRequest
	if !h.bindQuery(c, &req) {
		return
	}
	counterparty, ok := h.queryUUID(c, "counterparty_id")
	if !ok {
		return
	}
	bank, ok := h.queryUUID(c, "bank_account_id")
	if !ok {
		return
	}
	result, err := h.paymentService.ListPayments(c.Request.Context(), ledgerapp.PaymentQuery{
		Filter:         req.Filter(),
		Direction:      req.Direction,
		Status:         req.Status,
		CounterpartyID: counterparty,
		BankAccountID:  bank,
		Reconciled:     req.Reconciled,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page(c, result)
}

func (h *PaymentHandler) withActor(c *gin.Context, fn func(ctx context.Context, id, actorID uuid.UUID) (*ledgerapp.PaymentResponse, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*ledgerapp.PaymentResponse, error) {
		return fn(ctx, id, actor(c))
	})
}

func (h *PaymentHandler) respond(c *gin.Context, fn func(ctx context.Context) (*ledgerapp.PaymentResponse, error)) {
	payment, err := fn(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}
