package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none.
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

// Error codes.
const (
	CodeValidation          = "VAL_001"
	CodeInvalidAmount       = "VAL_002"
	CodeAmountLimit         = "VAL_003"
	CodeIdempotencyConflict = "VAL_004"

	CodeNotFound           = "WAL_001"
	CodeWalletOffline      = "WAL_002"
	CodeSameWalletTransfer = "WAL_003"
	CodeInsufficientFunds  = "WAL_004"

	CodeInvalidToken      = "AUTH_001"
	CodeUnauthorizedScope = "AUTH_002"

	CodeRateLimited = "RATE_001"

	CodeInternal    = "SYS_001"
	CodeLockTimeout = "SYS_002"
)

// ---- Validation (VAL) ----

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrAmountLimitExceeded() *AppError {
	return New(CodeAmountLimit, "Amount exceeds the per-operation limit", http.StatusUnprocessableEntity)
}

func ErrIdempotencyConflict() *AppError {
	return New(CodeIdempotencyConflict, "Idempotency key was already used for a different request", http.StatusConflict)
}

// ---- Wallet Business Logic (WAL) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWalletOffline() *AppError {
	return New(CodeWalletOffline, "Wallet is offline", http.StatusConflict)
}

func ErrSameWalletTransfer() *AppError {
	return New(CodeSameWalletTransfer, "Source and destination wallets must differ", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrUnauthorizedScope() *AppError {
	return New(CodeUnauthorizedScope, "Operation outside of the caller's centre", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Wallet is busy, retry later", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
