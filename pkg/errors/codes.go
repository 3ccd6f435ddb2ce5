package errors

import "net/http"

// ErrorCode is the typed identifier of a specific failure category.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeOK                 ErrorCode = "OK"
	ErrCodeUnknown            ErrorCode = "COMMON_000"
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeConfig             ErrorCode = "COMMON_006"
)

// Dataset pipeline error codes.
const (
	// ErrCodeDataUnavailable: the source CSV is absent, the archive is absent
	// or unreadable, and no remote URL is configured (or the fetch failed).
	ErrCodeDataUnavailable ErrorCode = "DATA_001"

	// ErrCodeQueryFailure: the embedded engine rejected a translated query.
	// A zero-row result is never a QueryFailure.
	ErrCodeQueryFailure ErrorCode = "DATA_002"

	// ErrCodeBadSchema: the source CSV is missing required columns.
	ErrCodeBadSchema ErrorCode = "DATA_003"

	// ErrCodeRegistryError: the external MGI registry database failed during
	// a totals import.
	ErrCodeRegistryError ErrorCode = "DATA_004"
)

// httpStatusByCode maps error codes to the HTTP status the API layer reports.
var httpStatusByCode = map[ErrorCode]int{
	ErrCodeOK:                 http.StatusOK,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeConfig:             http.StatusInternalServerError,
	ErrCodeDataUnavailable:    http.StatusServiceUnavailable,
	ErrCodeQueryFailure:       http.StatusInternalServerError,
	ErrCodeBadSchema:          http.StatusInternalServerError,
	ErrCodeRegistryError:      http.StatusBadGateway,
}

// HTTPStatus returns the HTTP status code associated with c.
// Unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := httpStatusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
