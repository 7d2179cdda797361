package handler

import (
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalHandler handles journal entry, posting and trial balance endpoints
type JournalHandler struct {
	BaseHandler
	journalService *ledgerapp.JournalService
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(journalService *ledgerapp.JournalService) *JournalHandler {
	return &JournalHandler{journalService: journalService}
}

// JournalLineRequest is one debit or credit line. Exactly one side must be set.
// @Description Journal line
type JournalLineRequest struct {
	AccountID uuid.UUID        `json:"account_id" binding:"required"`
	Debit     *decimal.Decimal `json:"debit" swaggertype:"string" example:"100.00"`
	Credit    *decimal.Decimal `json:"credit" swaggertype:"string"`
	Currency  string           `json:"currency" binding:"omitempty,len=3"`
	Memo      string           `json:"memo" binding:"omitempty,max=500"`
}

// CreateJournalEntryRequest represents a request to draft a journal entry
// @Description Request body for a draft journal entry
type CreateJournalEntryRequest struct {
	EntryNumber string               `json:"entry_number" binding:"omitempty,max=50"`
	Date        *dto.Date            `json:"date" binding:"required" swaggertype:"string" example:"2024-03-15"`
	Description string               `json:"description" binding:"required,max=500"`
	Source      string               `json:"source" binding:"omitempty,oneof=MANUAL SYSTEM"`
	Reference   string               `json:"reference" binding:"omitempty,max=100"`
	Lines       []JournalLineRequest `json:"lines" binding:"omitempty,dive"`
}

// AddLinesRequest appends lines to a draft
type AddLinesRequest struct {
	Lines []JournalLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PostBatchRequest posts several drafts atomically
type PostBatchRequest struct {
	EntryIDs []uuid.UUID `json:"entry_ids" binding:"required,min=1,max=100"`
}

// ReverseEntryRequest dates a reversal; the default is the original entry date
type ReverseEntryRequest struct {
	Date *dto.Date `json:"date" swaggertype:"string" example:"2024-03-31"`
}

// JournalEntryListRequest filters the journal
type JournalEntryListRequest struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty,oneof=DRAFT POSTED REVERSED"`
	Source string `form:"source" binding:"omitempty,oneof=MANUAL SYSTEM BILL INVOICE PAYMENT REVERSAL"`
}

func toLineInputs(lines []JournalLineRequest) []ledgerapp.JournalLineInput {
	out := make([]ledgerapp.JournalLineInput, len(lines))
	for i, l := range lines {
		out[i] = ledgerapp.JournalLineInput{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Currency:  l.Currency,
			Memo:      l.Memo,
		}
	}
	return out
}

// CreateDraft godoc
// @ID           createJournalEntry
// @Summary      Draft a journal entry
// @Tags         journal
// @Accept       json
// @Produce      json
// @Param        request body CreateJournalEntryRequest true "Entry"
// @Success      201 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries [post]
func (h *JournalHandler) CreateDraft(c *gin.Context) {
	var req CreateJournalEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	entry, err := h.journalService.CreateDraft(c.Request.Context(), ledgerapp.CreateJournalEntryCommand{
		EntryNumber: req.EntryNumber,
		Date:        req.Date.Time,
		Description: req.Description,
		Source:      req.Source,
		Reference:   req.Reference,
		Lines:       toLineInputs(req.Lines),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// AddLines godoc
// @ID           addJournalLines
// @Summary      Append lines to a draft
// @Tags         journal
// @Accept       json
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Param        request body AddLinesRequest true "Lines"
// @Success      200 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries/{id}/lines [post]
func (h *JournalHandler) AddLines(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req AddLinesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entry, err := h.journalService.AddLines(c.Request.Context(), id, toLineInputs(req.Lines))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RemoveLine godoc
// @ID           removeJournalLine
// @Summary      Remove a line from a draft
// @Tags         journal
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Param        line path int true "Line number"
// @Success      200 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries/{id}/lines/{line} [delete]
func (h *JournalHandler) RemoveLine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	lineNo, ok := h.pathInt(c, "line")
	if !ok {
		return
	}
	entry, err := h.journalService.RemoveLine(c.Request.Context(), id, lineNo)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Post godoc
// @ID           postJournalEntry
// @Summary      Post a draft entry
// @Description  Validates balance per currency and updates every touched account atomically
// @Tags         journal
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.PostingResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries/{id}/post [post]
func (h *JournalHandler) Post(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.journalService.PostEntry(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PostBatch godoc
// @ID           postJournalBatch
// @Summary      Post several drafts as one unit
// @Description  Either every entry posts or none does
// @Tags         journal
// @Accept       json
// @Produce      json
// @Param        request body PostBatchRequest true "Entries"
// @Success      200 {object} APIResponse[ledgerapp.BatchPostingResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries/post-batch [post]
func (h *JournalHandler) PostBatch(c *gin.Context) {
	var req PostBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.journalService.PostBatch(c.Request.Context(), req.EntryIDs, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reverse godoc
// @ID           reverseJournalEntry
// @Summary      Reverse a posted entry
// @Tags         journal
// @Accept       json
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Param        request body ReverseEntryRequest false "Reversal date"
// @Success      201 {object} APIResponse[ledgerapp.ReversalResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries/{id}/reverse [post]
func (h *JournalHandler) Reverse(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ReverseEntryRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	result, err := h.journalService.ReverseEntry(c.Request.Context(), ledgerapp.ReverseEntryCommand{
		EntryID: id,
		Date:    timeOf(req.Date),
		ActorID: actor(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Get godoc
// @ID           getJournalEntry
// @Summary      Get a journal entry
// @Tags         journal
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries/{id} [get]
func (h *JournalHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.journalService.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// GetByNumber godoc
// @ID           getJournalEntryByNumber
// @Summary      Get a journal entry by number
// @Tags         journal
// @Produce      json
// @Param        number path string true "Entry number"
// @Success      200 {object} APIResponse[ledgerapp.JournalEntryResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /journal-entries/number/{number} [get]
func (h *JournalHandler) GetByNumber(c *gin.Context) {
	entry, err := h.journalService.GetEntryByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// List godoc
// @ID           listJournalEntries
// @Summary      List journal entries
// @Tags         journal
// @Produce      json
// @Param        status query string false "Entry status"
// @Param        source query string false "Entry source"
// @Param        account_id query string false "Entries touching this account" format(uuid)
// @Param        from query string false "First date" format(date)
// @Param        to query string false "Last date" format(date)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]ledgerapp.JournalEntryResponse]
// @Security     BearerAuth
// @Router       /journal-entries [get]
func (h *JournalHandler) List(c *gin.Context) {
	var req JournalEntryListRequest
	if !h.bindQuery(c, &req) {
		return
	}
	accountID, ok := h.queryUUID(c, "account_id")
	if !ok {
		return
	}
	from, ok := h.queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := h.queryDate(c, "to")
	if !ok {
		return
	}

	result, err := h.journalService.ListEntries(c.Request.Context(), ledgerapp.JournalEntryQuery{
		Filter:    req.Filter(),
		Status:    req.Status,
		Source:    req.Source,
		AccountID: accountID,
		FromDate:  from,
		ToDate:    to,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page(c, result)
}

// TrialBalance godoc
// @ID           getTrialBalance
// @Summary      Trial balance
// @Description  Balances of every account on their normal side with per-currency totals
// @Tags         journal
// @Produce      json
// @Param        as_of query string false "Balances at the end of this day; current balances when absent" format(date)
// @Success      200 {object} APIResponse[ledger.TrialBalance]
// @Security     BearerAuth
// @Router       /trial-balance [get]
func (h *JournalHandler) TrialBalance(c *gin.Context) {
	asOf, ok := h.queryDate(c, "as_of")
	if !ok {
		return
	}
	tb, err := h.journalService.TrialBalance(c.Request.Context(), derefTime(asOf))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tb)
}

// VerifyBalance godoc
// @ID           verifyAccountBalance
// @Summary      Check an account balance against its posted lines
// @Tags         accounts
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledgerapp.BalanceVerification]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /accounts/{id}/verify [get]
func (h *JournalHandler) VerifyBalance(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.journalService.VerifyAccountBalance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// VerifyAll godoc
// @ID           verifyAllBalances
// @Summary      Check every account balance against its posted lines
// @Tags         accounts
// @Produce      json
// @Success      200 {object} APIResponse[[]ledgerapp.BalanceVerification]
// @Security     BearerAuth
// @Router       /accounts/verify [get]
func (h *JournalHandler) VerifyAll(c *gin.Context) {
	results, err := h.journalService.VerifyAllBalances(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, results)
}
