package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout       = "MIRROR_TIMEOUT"
	ErrCodeRender        = "RENDER_FAILED"
	ErrCodeFetchFailed   = "FETCH_FAILED"
	ErrCodePersistFailed = "PERSIST_FAILED"
	ErrCodeJobFailed     = "JOB_FAILED"
	ErrCodeBrowserCrash  = "BROWSER_CRASH"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MirrorError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type MirrorError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *MirrorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}

// NewMirrorError creates a new MirrorError.
func NewMirrorError(code, message string, err error) *MirrorError {
	return &MirrorError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *MirrorError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
