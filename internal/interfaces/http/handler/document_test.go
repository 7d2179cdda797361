package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// moneyView mirrors the wire form of an amount
type moneyView struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m moneyView) is(want string) bool {
	got, err := decimal.NewFromString(m.Amount)
	return err == nil && got.Equal(decimal.RequireFromString(want))
}

type documentView struct {
	ID          uuid.UUID         `json:"id"`
	Kind        string            `json:"kind"`
	Number      string            `json:"number"`
	Status      string            `json:"status"`
	Currency    string            `json:"currency"`
	TotalAmount moneyView         `json:"total_amount"`
	TaxAmount   moneyView         `json:"tax_amount"`
	Outstanding moneyView         `json:"outstanding"`
	LineItems   []json.RawMessage `json:"line_items"`
	Payments    []json.RawMessage `json:"payments"`
	ApprovedBy  *uuid.UUID        `json:"approved_by"`
	VoidReason  string            `json:"void_reason"`
	EarlyTerms  *json.RawMessage  `json:"early_payment_terms"`
}

func (s *testServer) documentRoutes() *DocumentHandler {
	h := NewDocumentHandler(s.docs)
	g := s.engine.Group("/api/v1/documents")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.POST("/overdue-sweep", h.MarkOverdue)
	g.GET("/number/:kind/:number", h.GetByNumber)
	g.GET("/:id", h.Get)
	g.POST("/:id/lines", h.AddLineItem)
	g.DELETE("/:id/lines/:index", h.RemoveLineItem)
	g.PUT("/:id/discount", h.SetDiscount)
	g.PUT("/:id/early-payment", h.SetEarlyPaymentTerms)
	g.POST("/:id/submit", h.Submit)
	g.POST("/:id/approve", h.Approve)
	g.POST("/:id/reject", h.Reject)
	g.POST("/:id/return-to-draft", h.ReturnToDraft)
	g.POST("/:id/issue", h.Issue)
	g.POST("/:id/void", h.Void)
	g.POST("/:id/payments", h.ProcessPayment)
	return h
}

func documentRequest(kind, number, unitCost string, due int) CreateDocumentRequest {
	return CreateDocumentRequest{
		Kind:           kind,
		Number:         number,
		CounterpartyID: uuid.New(),
		IssueDate:      dateOf(day(1)),
		DueDate:        dateOf(day(due)),
		Lines: []LineItemRequest{
			{Description: "services", Quantity: decimal.NewFromInt(1), UnitCost: decimal.RequireFromString(unitCost)},
		},
	}
}

// approvedDocument creates, submits and approves a document over HTTP
func (s *testServer) approvedDocument(req CreateDocumentRequest) documentView {
	s.t.Helper()
	w, resp := s.do(http.MethodPost, "/api/v1/documents", req)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var doc documentView
	decode(s.t, resp, &doc)
	for _, step := range []string{"submit", "approve"} {
		w, resp = s.do(http.MethodPost, "/api/v1/documents/"+doc.ID.String()+"/"+step, nil)
		require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	}
	decode(s.t, resp, &doc)
	return doc
}

func TestDocumentHandler_Create(t *testing.T) {
	s := newTestServer(t)
	s.documentRoutes()

	t.Run("prices the draft", func(t *testing.T) {
		req := documentRequest("BILL", "B-100", "100", 30)
		req.Lines[0].Quantity = decimal.NewFromInt(2)
		req.Lines[0].TaxRate = decimal.RequireFromString("0.1")

		w, resp := s.do(http.MethodPost, "/api/v1/documents", req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var doc documentView
		decode(t, resp, &doc)
		assert.Equal(t, "DRAFT", doc.Status)
		assert.Equal(t, "USD", doc.Currency)
		assert.True(t, doc.TaxAmount.is("20"), doc.TaxAmount.Amount)
		assert.True(t, doc.TotalAmount.is("220"), doc.TotalAmount.Amount)
	})

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "unknown kind",
			body:   func() any { r := documentRequest("RECEIPT", "", "1", 30); return r }(),
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "missing due date",
			body:   func() any { r := documentRequest("BILL", "", "1", 30); r.DueDate = nil; return r }(),
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "zero quantity",
			body:   func() any { r := documentRequest("BILL", "", "1", 30); r.Lines[0].Quantity = decimal.Zero; return r }(),
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name: "due before issue",
			body: func() any {
				r := documentRequest("BILL", "", "1", 30)
				r.IssueDate = dateOf(day(10))
				r.DueDate = dateOf(day(5))
				return r
			}(),
			status: http.StatusBadRequest,
			code:   "INVALID_DOCUMENT_DATE",
		},
		{
			name:   "duplicate number",
			body:   documentRequest("BILL", "B-100", "1", 30),
			status: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.do(http.MethodPost, "/api/v1/documents", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			require.NotNil(t, resp.Error)
			if tt.code != "" {
				assert.Equal(t, tt.code, resp.Error.Code)
			}
		})
	}
}

func TestDocumentHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	s.documentRoutes()

	w, resp := s.do(http.MethodPost, "/api/v1/documents", CreateDocumentRequest{
		Kind:           "INVOICE",
		Number:         "INV-1",
		CounterpartyID: uuid.New(),
		IssueDate:      dateOf(day(1)),
		DueDate:        dateOf(day(30)),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc documentView
	decode(t, resp, &doc)
	base := "/api/v1/documents/" + doc.ID.String()

	t.Run("an empty document cannot be submitted", func(t *testing.T) {
		w, resp := s.do(http.MethodPost, base+"/submit", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "EMPTY_DOCUMENT", resp.Error.Code)
	})

	t.Run("edit lines while draft", func(t *testing.T) {
		for _, cost := range []string{"900", "100"} {
			w, _ := s.do(http.MethodPost, base+"/lines", LineItemRequest{
				Description: "consulting", Quantity: decimal.NewFromInt(1), UnitCost: decimal.RequireFromString(cost),
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}
		w, resp := s.do(http.MethodDelete, base+"/lines/1", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got documentView
		decode(t, resp, &got)
		assert.Len(t, got.LineItems, 1)
		assert.True(t, got.TotalAmount.is("900"))

		w, _ = s.do(http.MethodDelete, base+"/lines/x", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("early payment terms set and cleared", func(t *testing.T) {
		w, resp := s.do(http.MethodPut, base+"/early-payment", EarlyPaymentRequest{
			DiscountDate: dateOf(day(10)), Rate: decimal.RequireFromString("0.02"),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got documentView
		decode(t, resp, &got)
		assert.NotNil(t, got.EarlyTerms)

		w, resp = s.do(http.MethodPut, base+"/early-payment", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got = documentView{}
		decode(t, resp, &got)
		assert.Nil(t, got.EarlyTerms)
	})

	t.Run("reject needs a reason", func(t *testing.T) {
		w, _ := s.do(http.MethodPost, base+"/submit", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, resp := s.do(http.MethodPost, base+"/reject", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

		w, resp = s.do(http.MethodPost, base+"/reject", ReasonRequest{Reason: "wrong rate"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got documentView
		decode(t, resp, &got)
		assert.Equal(t, "REJECTED", got.Status)

		w, _ = s.do(http.MethodPost, base+"/return-to-draft", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("approve records the caller and issue sends it", func(t *testing.T) {
		w, _ := s.do(http.MethodPost, base+"/submit", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		w, resp := s.do(http.MethodPost, base+"/approve", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got documentView
		decode(t, resp, &got)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, testActor, *got.ApprovedBy)

		w, resp = s.do(http.MethodPost, base+"/issue", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		decode(t, resp, &got)
		assert.Equal(t, "ISSUED", got.Status)
	})

	t.Run("editing after approval is refused", func(t *testing.T) {
		w, resp := s.do(http.MethodPost, base+"/lines", LineItemRequest{
			Description: "late", Quantity: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(1),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "INVALID_TRANSITION", resp.Error.Code)
	})

	t.Run("lookup by number and kind", func(t *testing.T) {
		w, resp := s.do(http.MethodGet, "/api/v1/documents/number/INVOICE/INV-1", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got documentView
		decode(t, resp, &got)
		assert.Equal(t, doc.ID, got.ID)

		w, _ = s.do(http.MethodGet, "/api/v1/documents/number/BILL/INV-1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("void a bill with a reason", func(t *testing.T) {
		bill := s.approvedDocument(documentRequest("BILL", "B-9", "100", 30))
		w, resp := s.do(http.MethodPost, "/api/v1/documents/"+bill.ID.String()+"/void", ReasonRequest{Reason: "entered twice"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got documentView
		decode(t, resp, &got)
		assert.Equal(t, "VOIDED", got.Status)
		assert.Equal(t, "entered twice", got.VoidReason)
	})
}

func TestDocumentHandler_ProcessPayment(t *testing.T) {
	s := newTestServer(t)
	s.documentRoutes()
	bank := s.accountID("1010")

	bill := s.approvedDocument(documentRequest("BILL", "B-10", "500", 30))
	path := "/api/v1/documents/" + bill.ID.String() + "/payments"

	t.Run("overpayment is refused", func(t *testing.T) {
		w, resp := s.do(http.MethodPost, path, DocumentPaymentRequest{
			Amount: decimal.RequireFromString("500.01"), Date: dateOf(day(5)), Method: "CHECK", BankAccountID: &bank,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "PAYMENT_EXCEEDS_OUTSTANDING", resp.Error.Code)
	})

	t.Run("non-positive amount fails binding", func(t *testing.T) {
		w, resp := s.do(http.MethodPost, path, DocumentPaymentRequest{
			Amount: decimal.Zero, Date: dateOf(day(5)), Method: "CHECK",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	})

	t.Run("partial payment posts to the ledger", func(t *testing.T) {
		w, resp := s.do(http.MethodPost, path, DocumentPaymentRequest{
			Amount: decimal.NewFromInt(200), Date: dateOf(day(5)), Method: "CHECK", BankAccountID: &bank,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res struct {
			Document       documentView `json:"document"`
			JournalEntryID *uuid.UUID   `json:"journal_entry_id"`
		}
		decode(t, resp, &res)
		assert.Equal(t, "PARTIALLY_PAID", res.Document.Status)
		assert.True(t, res.Document.Outstanding.is("300"))
		assert.NotNil(t, res.JournalEntryID)

		bal, err := s.accounts.GetAccount(t.Context(), bank)
		require.NoError(t, err)
		assert.True(t, bal.Balance.Amount().Equal(decimal.NewFromInt(-200)))
	})

	t.Run("overdue sweep", func(t *testing.T) {
		s.approvedDocument(documentRequest("INVOICE", "I-1", "50", 12))

		w, resp := s.do(http.MethodPost, "/api/v1/documents/overdue-sweep", OverdueSweepRequest{AsOf: dateOf(day(20))})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res struct {
			Bills    int `json:"bills"`
			Invoices int `json:"invoices"`
		}
		decode(t, resp, &res)
		assert.Equal(t, 0, res.Bills)
		assert.Equal(t, 1, res.Invoices)

		w, resp = s.do(http.MethodGet, "/api/v1/documents?status=OVERDUE", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotNil(t, resp.Meta)
		assert.EqualValues(t, 1, resp.Meta.Total)
	})

	t.Run("list filters by kind", func(t *testing.T) {
		w, resp := s.do(http.MethodGet, "/api/v1/documents?kind=BILL", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var docs []documentView
		decode(t, resp, &docs)
		require.Len(t, docs, 1)
		assert.Equal(t, "B-10", docs[0].Number)

		w, _ = s.do(http.MethodGet, "/api/v1/documents?kind=RECEIPT", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
