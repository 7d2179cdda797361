package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation kind", shared.NewValidationError("INVALID_AMOUNT", "bad"), http.StatusBadRequest, "INVALID_AMOUNT"},
		{"not found", shared.NewNotFoundError("account", "x"), http.StatusNotFound, "NOT_FOUND"},
		{"state kind", ledger.ErrAlreadyReversed, http.StatusConflict, ledger.CodeAlreadyReversed},
		{"invariant kind", shared.NewInvariantError("UNBALANCED_ENTRY", "no"), http.StatusUnprocessableEntity, "UNBALANCED_ENTRY"},
		{"duplicate code override", ledger.ErrDuplicateAccountCode, http.StatusConflict, ledger.CodeDuplicateAccountCode},
		{"concurrency conflict", shared.NewConflictError("stale"), http.StatusConflict, "CONCURRENCY_CONFLICT"},
		{"unauthorized actor", shared.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
		{"wrapped domain error", fmt.Errorf("post: %w", shared.NewStateError("INVALID_TRANSITION", "POSTED", "no")), http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
		{"infrastructure", shared.NewInfrastructureError("db", errors.New("conn refused")), http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := ErrorFor(tt.err, "req-1")
			assert.Equal(t, tt.status, status)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}

	t.Run("internal details are not leaked", func(t *testing.T) {
		_, resp := ErrorFor(errors.New("pq: password authentication failed"), "")
		assert.NotContains(t, resp.Error.Message, "password")
	})

	t.Run("state is carried", func(t *testing.T) {
		_, resp := ErrorFor(shared.NewStateError("INVALID_TRANSITION", "POSTED", "no"), "")
		assert.Equal(t, "POSTED", resp.Error.State)
	})
}

func TestResponseEnvelope(t *testing.T) {
	t.Run("page response carries meta", func(t *testing.T) {
		page := shared.NewPaginated([]string{"a", "b"}, 12, 2, 5)
		resp := NewPageResponse(&page)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(12), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Page)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("validation details serialize", func(t *testing.T) {
		resp := NewValidationErrorResponse("Request validation failed", "r", []ValidationDetail{{Field: "code", Message: "is required"}})
		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"Request validation failed","request_id":"r","details":[{"field":"code","message":"is required"}]}}`, string(raw))
	})

	t.Run("list request defaults", func(t *testing.T) {
		f := ListRequest{}.Filter()
		assert.Equal(t, shared.DefaultFilter().Page, f.Page)
		assert.Equal(t, shared.DefaultFilter().PageSize, f.PageSize)

		f = ListRequest{Page: 3, PageSize: 50, OrderDir: "asc"}.Filter()
		assert.Equal(t, 3, f.Page)
		assert.Equal(t, 50, f.PageSize)
		assert.Equal(t, "asc", f.OrderDir)
	})
}
