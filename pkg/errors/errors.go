package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the only error shape the UI layer ever sees
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Link       string `json:"link,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// User-facing connect reasons. This set is closed.
const (
	ErrCodeNotInstalled  = "not_installed"
	ErrCodeUserCancelled = "user_cancelled"
	ErrCodeTimeout       = "timeout"
	ErrCodeNetworkError  = "network_error"
	ErrCodeInvalidInput  = "invalid_input"
)

// Internal error codes
const (
	ErrCodeNotConnected      = "not_connected"
	ErrCodeBusy              = "busy"
	ErrCodeReadOnly          = "read_only"
	ErrCodeNotFound          = "not_found"
	ErrCodeStorageError      = "storage_error"
	ErrCodeTransactionFailed = "transaction_failed"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternalError     = "internal_error"
)

// ConnectReasons returns the closed set of reasons a connect attempt can fail with
func ConnectReasons() []string {
	return []string{
		ErrCodeNotInstalled,
		ErrCodeUserCancelled,
		ErrCodeTimeout,
		ErrCodeNetworkError,
		ErrCodeInvalidInput,
	}
}

// IsConnectReason reports whether code belongs to the closed connect reason set
func IsConnectReason(code string) bool {
	for _, r := range ConnectReasons() {
		if r == code {
			return true
		}
	}
	return false
}

// Predefined errors
var (
	ErrNotConnected = &AppError{
		Code:       ErrCodeNotConnected,
		Message:    "Wallet is not connected",
		StatusCode: http.StatusConflict,
	}

	ErrReadOnly = &AppError{
		Code:       ErrCodeReadOnly,
		Message:    "Session cannot sign transactions",
		StatusCode: http.StatusConflict,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// NotInstalled reports that the external wallet app is unreachable and
// carries the install prompt target.
func NotInstalled(storeLink string) *AppError {
	return &AppError{
		Code:       ErrCodeNotInstalled,
		Message:    "Wallet app is not installed",
		Link:       storeLink,
		StatusCode: http.StatusFailedDependency,
	}
}

// UserCancelled reports that the user dismissed a handshake
func UserCancelled() *AppError {
	return &AppError{
		Code:       ErrCodeUserCancelled,
		Message:    "Connection cancelled",
		StatusCode: http.StatusConflict,
	}
}

// Timeout reports a handshake or confirmation that exceeded its budget
func Timeout(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeTimeout,
		Message:    "Operation timed out",
		Detail:     detail,
		StatusCode: http.StatusGatewayTimeout,
	}
}

// NetworkError reports a transient RPC or connectivity failure
func NetworkError(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeNetworkError,
		Message:    "Network request failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// InvalidInput reports input rejected before any network call
func InvalidInput(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		Detail:     detail,
		StatusCode: http.StatusBadRequest,
	}
}

// Busy reports that another connect attempt is already in flight
func Busy() *AppError {
	return &AppError{
		Code:       ErrCodeBusy,
		Message:    "A connection attempt is already in progress",
		StatusCode: http.StatusConflict,
	}
}

// TransactionFailed reports a reverted or rejected transaction
func TransactionFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeTransactionFailed,
		Message:    "Transaction failed",
		Detail:     detail,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}
