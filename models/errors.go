package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	// Per-item pipeline failures. All of these are caught at the single-item
	// boundary and converted into error Records; they never abort a batch.
	ErrCodeCreateFailed       = "SURFACE_CREATE_FAILED"
	ErrCodeLoadTimeout        = "SURFACE_LOAD_TIMEOUT"
	ErrCodeInjectFailed       = "INJECT_FAILED"
	ErrCodeCorrelationTimeout = "CORRELATION_TIMEOUT"
	ErrCodeExtraction         = "EXTRACTION_FAILED"

	// Hard failures surfaced to the caller.
	ErrCodeListFailed   = "LIST_DISCOVERY_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CollectError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CollectError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CollectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CollectError) Unwrap() error {
	return e.Err
}

// NewCollectError creates a new CollectError.
func NewCollectError(code, message string, err error) *CollectError {
	return &CollectError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *CollectError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
