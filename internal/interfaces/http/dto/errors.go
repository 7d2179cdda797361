package dto

import (
	"errors"
	"net/http"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
)

// Transport error codes. Domain errors keep their own codes.
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "TOKEN_INVALID"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus overrides the status derived from an error's kind
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	shared.ErrAlreadyExists.Code:       http.StatusConflict,
	ledger.CodeDuplicateAccountCode:    http.StatusConflict,
	ledger.CodeAlreadyReversed:         http.StatusConflict,
	shared.ErrConcurrencyConflict.Code: http.StatusConflict,
}

// KindHTTPStatus is the status for each domain error kind
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation: http.StatusBadRequest,
	shared.KindNotFound:   http.StatusNotFound,
	shared.KindConflict:   http.StatusConflict,
	shared.KindState:      http.StatusUnprocessableEntity,
	shared.KindInvariant:  http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the status for a transport error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusFor maps a domain error to its HTTP status: code override first, then kind
func StatusFor(err *shared.DomainError) int {
	// The domain uses UNAUTHORIZED for an actor lacking rights, not for missing credentials.
	if err.Code == shared.ErrUnauthorized.Code {
		return http.StatusForbidden
	}
	if status, ok := ErrorCodeHTTPStatus[err.Code]; ok {
		return status
	}
	if status, ok := KindHTTPStatus[err.Kind]; ok {
		return status
	}
	return http.StatusBadRequest
}

// ErrorFor converts any error to a status and error body. Unknown errors become a
// generic 500 so internals never leak; infrastructure errors become 503.
func ErrorFor(err error, requestID string) (int, Response) {
	var de *shared.DomainError
	if errors.As(err, &de) {
		resp := NewErrorResponse(de.Code, de.Message, requestID)
		resp.Error.State = de.State
		return StatusFor(de), resp
	}
	var ie *shared.InfrastructureError
	if errors.As(err, &ie) {
		return http.StatusServiceUnavailable,
			NewErrorResponse(ErrCodeUnavailable, "A dependency is unavailable, retry later", requestID)
	}
	return http.StatusInternalServerError,
		NewErrorResponse(ErrCodeInternal, "An unexpected error occurred", requestID)
}
