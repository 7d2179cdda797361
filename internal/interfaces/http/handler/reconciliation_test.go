package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/ledger/internal/interfaces/http/dto"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statementView struct {
	ID               uuid.UUID  `json:"id"`
	Status           string     `json:"status"`
	BankBalance      moneyView  `json:"bank_balance"`
	BookBalance      moneyView  `json:"book_balance"`
	AdjustedBank     moneyView  `json:"adjusted_bank_balance"`
	AdjustedBook     moneyView  `json:"adjusted_book_balance"`
	Variance         moneyView  `json:"variance"`
	IsBalanced       bool       `json:"is_balanced"`
	CompletedBy      *uuid.UUID `json:"completed_by"`
	RejectionReason  string     `json:"rejection_reason"`
	OutstandingItems []struct {
		Kind      string    `json:"kind"`
		Reference string    `json:"reference"`
		Amount    moneyView `json:"amount"`
	} `json:"outstanding_items"`
}

func (s *testServer) reconciliationRoutes() *ReconciliationHandler {
	h := NewReconciliationHandler(s.recon)
	g := s.engine.Group("/api/v1/reconciliations")
	g.POST("", h.Start)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/bank-lines", h.AddBankLines)
	g.POST("/:id/bank-lines/import", h.ImportBankStatement)
	g.POST("/:id/outstanding-items", h.AddOutstandingItem)
	g.POST("/:id/adjustments", h.AddAdjustment)
	g.POST("/:id/auto-match", h.AutoMatch)
	g.POST("/:id/complete", h.Complete)
	g.POST("/:id/variance-pending", h.MarkVariancePending)
	g.POST("/:id/accept-variance", h.AcceptVariance)
	g.POST("/:id/reject", h.Reject)
	g.POST("/:id/reopen", h.Reopen)
	return h
}

// bankActivity leaves the operating account at 650 in the books:
// a deposit, a cleared cheque and a cheque still in the mail
func (s *testServer) bankActivity() {
	bank, equity, rent := s.accountID("1010"), s.accountID("3000"), s.accountID("6000")
	s.postEntry(day(5), "DEP-1", bank, equity, "1000")
	s.postEntry(day(10), "CHK-101", rent, bank, "250")
	s.postEntry(day(28), "CHK-102", rent, bank, "100")
}

func (s *testServer) startStatement(bankBalance string) statementView {
	s.t.Helper()
	w, resp := s.do(http.MethodPost, "/api/v1/reconciliations", StartReconciliationRequest{
		BankAccountID: s.accountID("1010"),
		PeriodStart:   dateOf(day(1)),
		PeriodEnd:     dateOf(day(31)),
		BankBalance:   decimal.RequireFromString(bankBalance),
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var st statementView
	decode(s.t, resp, &st)
	return st
}

func TestReconciliationHandler_Start(t *testing.T) {
	s := newTestServer(t)
	s.reconciliationRoutes()
	s.bankActivity()

	st := s.startStatement("750")
	assert.Equal(t, "IN_PROGRESS", st.Status)
	assert.True(t, st.BookBalance.is("650"), st.BookBalance.Amount)
	assert.True(t, st.Variance.is("100"), st.Variance.Amount)
	assert.False(t, st.IsBalanced)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "missing period end",
			body:   StartReconciliationRequest{BankAccountID: s.accountID("1010"), PeriodStart: dateOf(day(1))},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name: "period runs backwards",
			body: StartReconciliationRequest{
				BankAccountID: s.accountID("1010"), PeriodStart: dateOf(day(20)), PeriodEnd: dateOf(day(10)),
			},
			status: http.StatusBadRequest,
			code:   "INVALID_PERIOD",
		},
		{
			name: "equity account",
			body: StartReconciliationRequest{
				BankAccountID: s.accountID("3000"), PeriodStart: dateOf(day(1)), PeriodEnd: dateOf(day(31)),
			},
			status: http.StatusBadRequest,
			code:   "INVALID_BANK_ACCOUNT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.do(http.MethodPost, "/api/v1/reconciliations", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestReconciliationHandler_AutoMatchAndComplete(t *testing.T) {
	s := newTestServer(t)
	s.reconciliationRoutes()
	s.bankActivity()
	st := s.startStatement("750")
	base := "/api/v1/reconciliations/" + st.ID.String()

	w, _ := s.do(http.MethodPost, base+"/bank-lines", AddBankLinesRequest{Lines: []BankLineRequest{
		{Reference: "DEPOSIT", Amount: decimal.NewFromInt(1000), Date: dateOf(day(6))},
		{Reference: "CHQ 101", Amount: decimal.NewFromInt(-250), Date: dateOf(day(12))},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("empty bank lines are rejected", func(t *testing.T) {
		w, resp := s.do(http.MethodPost, base+"/bank-lines", AddBankLinesRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	})

	w, resp := s.do(http.MethodPost, base+"/auto-match", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Matched       int           `json:"matched"`
		UnmatchedBank int           `json:"unmatched_bank"`
		Outstanding   int           `json:"outstanding"`
		Statement     statementView `json:"statement"`
	}
	decode(t, resp, &res)
	assert.Equal(t, 2, res.Matched)
	assert.Zero(t, res.UnmatchedBank)
	assert.Equal(t, 1, res.Outstanding)
	require.Len(t, res.Statement.OutstandingItems, 1)
	assert.Equal(t, "CHK-102", res.Statement.OutstandingItems[0].Reference)
	assert.True(t, res.Statement.AdjustedBank.is("650"))
	assert.True(t, res.Statement.IsBalanced)

	w, resp = s.do(http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done statementView
	decode(t, resp, &done)
	assert.Equal(t, "COMPLETED", done.Status)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, testActor, *done.CompletedBy)

	t.Run("completed is final", func(t *testing.T) {
		w, resp := s.do(http.MethodPost, base+"/reopen", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "INVALID_TRANSITION", resp.Error.Code)
	})

	t.Run("list by bank account and status", func(t *testing.T) {
		w, resp := s.do(http.MethodGet, "/api/v1/reconciliations?status=COMPLETED&bank_account_id="+s.accountID("1010").String(), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotNil(t, resp.Meta)
		assert.EqualValues(t, 1, resp.Meta.Total)

		w, _ = s.do(http.MethodGet, "/api/v1/reconciliations?status=DONE", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReconciliationHandler_Variance(t *testing.T) {
	s := newTestServer(t)
	s.reconciliationRoutes()
	s.bankActivity()

	t.Run("unexplained variance blocks completion", func(t *testing.T) {
		st := s.startStatement("700")
		base := "/api/v1/reconciliations/" + st.ID.String()

		w, resp := s.do(http.MethodPost, base+"/complete", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "RECONCILIATION_IMBALANCED", resp.Error.Code)

		w, resp = s.do(http.MethodPost, base+"/variance-pending", VarianceRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

		w, resp = s.do(http.MethodPost, base+"/variance-pending", VarianceRequest{Explanation: "deposit in transit"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var parked statementView
		decode(t, resp, &parked)
		assert.Equal(t, "VARIANCE_PENDING", parked.Status)

		w, resp = s.do(http.MethodPost, base+"/accept-variance", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var accepted statementView
		decode(t, resp, &accepted)
		assert.Equal(t, "COMPLETED", accepted.Status)
	})

	t.Run("a book adjustment explains a bank fee", func(t *testing.T) {
		st := s.startStatement("735")
		base := "/api/v1/reconciliations/" + st.ID.String()

		w, _ := s.do(http.MethodPost, base+"/outstanding-items", OutstandingItemRequest{
			Kind: "CHECK", Reference: "CHK-102", Amount: decimal.NewFromInt(100), Date: dateOf(day(28)),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, resp := s.do(http.MethodPost, base+"/adjustments", AdjustmentRequest{Side: "SIDEWAYS", Description: "fee", Amount: decimal.NewFromInt(-15)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ADJUSTMENT", resp.Error.Code)

		w, resp = s.do(http.MethodPost, base+"/adjustments", AdjustmentRequest{Side: "BOOK", Description: "monthly fee", Amount: decimal.NewFromInt(-15)})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var adj statementView
		decode(t, resp, &adj)
		assert.True(t, adj.AdjustedBook.is("635"), adj.AdjustedBook.Amount)
		assert.True(t, adj.AdjustedBank.is("635"), adj.AdjustedBank.Amount)
		assert.True(t, adj.IsBalanced)
	})

	t.Run("reject and reopen", func(t *testing.T) {
		st := s.startStatement("10")
		base := "/api/v1/reconciliations/" + st.ID.String()

		w, resp := s.do(http.MethodPost, base+"/reject", ReasonRequest{Reason: "wrong month"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var rejected statementView
		decode(t, resp, &rejected)
		assert.Equal(t, "REJECTED", rejected.Status)
		assert.Equal(t, "wrong month", rejected.RejectionReason)

		w, resp = s.do(http.MethodPost, base+"/reopen", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var reopened statementView
		decode(t, resp, &reopened)
		assert.Equal(t, "IN_PROGRESS", reopened.Status)
		assert.Empty(t, reopened.RejectionReason)
	})

	t.Run("unknown statement", func(t *testing.T) {
		w, _ := s.do(http.MethodGet, "/api/v1/reconciliations/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReconciliationHandler_ImportBankStatement(t *testing.T) {
	s := newTestServer(t)
	s.reconciliationRoutes()
	s.bankActivity()
	st := s.startStatement("750")
	path := "/api/v1/reconciliations/" + st.ID.String() + "/bank-lines/import"

	send := func(req *http.Request) (*httptest.ResponseRecorder, dto.Response) {
		w := serve(s, req)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
		return w, resp
	}
	type importView struct {
		Imported int `json:"imported"`
		Errors   []struct {
			Row  int    `json:"row"`
			Code string `json:"code"`
		} `json:"errors"`
	}

	t.Run("rejected rows are listed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("date,amount\n2024-03-06,1000\n2024-03-12,ten\n"))
		req.Header.Set("Content-Type", "text/csv")
		w, resp := send(req)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, "INVALID_STATEMENT_FILE", resp.Error.Code)
		var got importView
		decode(t, resp, &got)
		assert.Zero(t, got.Imported)
		require.Len(t, got.Errors, 1)
		assert.Equal(t, 3, got.Errors[0].Row)
		assert.Equal(t, "INVALID_AMOUNT", got.Errors[0].Code)
	})

	t.Run("missing columns", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("reference\nx\n"))
		req.Header.Set("Content-Type", "text/csv")
		w, resp := send(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATEMENT_FILE", resp.Error.Code)
	})

	t.Run("multipart without a file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w, _ := send(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("multipart upload", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "march.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte("Date,Description,Amount\n2024-03-06,DEPOSIT,1000\n2024-03-12,CHQ 101,-250\n"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w, resp := send(req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got importView
		decode(t, resp, &got)
		assert.Equal(t, 2, got.Imported)

		w, resp = s.do(http.MethodPost, path[:strings.LastIndex(path, "/bank-lines")]+"/auto-match", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var matched struct {
			Matched   int           `json:"matched"`
			Statement statementView `json:"statement"`
		}
		decode(t, resp, &matched)
		assert.Equal(t, 2, matched.Matched)
		assert.True(t, matched.Statement.IsBalanced)
	})
}
