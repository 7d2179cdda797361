package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Code   string          `json:"code" binding:"required,max=10"`
	Kind   string          `json:"kind" binding:"required,oneof=BILL INVOICE"`
	Amount decimal.Decimal `json:"amount" binding:"positive_amount"`
}

func TestValidation(t *testing.T) {
	SetupValidator()

	r := gin.New()
	r.Use(RequestID())
	r.POST("/x", func(c *gin.Context) {
		var req sampleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body)))
		return w
	}

	t.Run("valid", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, post(`{"code":"1010","kind":"BILL","amount":"12.50"}`).Code)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		w := post(`{"kind":"RECEIPT","amount":"-1"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "This field is required", fields["code"])
		assert.Equal(t, "Must be one of: BILL INVOICE", fields["kind"])
		assert.Equal(t, "Must be a positive amount", fields["amount"])
	})

	t.Run("malformed json", func(t *testing.T) {
		w := post(`{"code":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)
	})
}
