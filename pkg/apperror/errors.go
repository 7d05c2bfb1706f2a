package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Clients match on these, never on messages.
const (
	CodeAlreadyListed             = "MKT_001"
	CodeNotOwner                  = "MKT_002"
	CodePriceMustBeAboveZero      = "MKT_003"
	CodeNotApprovedForMarketplace = "MKT_004"
	CodeNotListed                 = "MKT_005"
	CodePriceNotMet               = "MKT_006"
	CodeNoProceeds                = "MKT_007"
	CodeTransferFailed            = "MKT_008"
	CodeReentrantCall             = "MKT_009"
	CodeInvalidAmount             = "MKT_010"

	CodeInvalidCredentials = "AUTH_001"
	CodeUsernameExists     = "AUTH_002"
	CodeInvalidToken       = "AUTH_003"

	CodeRateLimitExceeded = "RATE_001"

	CodeBodyTooLarge = "REQ_001"

	CodeInternal            = "SYS_001"
	CodeLedgerBusy          = "SYS_002"
	CodeRegistryUnavailable = "SYS_003"
	CodeRequestCanceled     = "SYS_004"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"` // Offending identifiers
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
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

// Is reports whether target is an *AppError with the same code, so that
// errors.Is(err, apperror.ErrNotOwner()) works regardless of details.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
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

// WithDetails returns e with the given structured details attached.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// HasCode reports whether err is (or wraps) an *AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

func itemDetails(collection string, itemID int64) map[string]any {
	return map[string]any{"collection": collection, "item_id": itemID}
}

// ---- Marketplace ledger (MKT) ----

func ErrAlreadyListed(collection string, itemID int64) *AppError {
	return New(CodeAlreadyListed, "Item is already listed", http.StatusConflict).
		WithDetails(itemDetails(collection, itemID))
}

func ErrNotOwner(collection string, itemID int64) *AppError {
	return New(CodeNotOwner, "Caller is not the owner of the item", http.StatusForbidden).
		WithDetails(itemDetails(collection, itemID))
}

func ErrPriceMustBeAboveZero() *AppError {
	return New(CodePriceMustBeAboveZero, "Price must be above zero", http.StatusBadRequest)
}

func ErrNotApprovedForMarketplace(collection string, itemID int64) *AppError {
	return New(CodeNotApprovedForMarketplace, "Marketplace is not approved to transfer the item", http.StatusForbidden).
		WithDetails(itemDetails(collection, itemID))
}

func ErrNotListed(collection string, itemID int64) *AppError {
	return New(CodeNotListed, "Item is not listed", http.StatusNotFound).
		WithDetails(itemDetails(collection, itemID))
}

func ErrPriceNotMet(collection string, itemID int64, paid int64) *AppError {
	d := itemDetails(collection, itemID)
	d["price"] = paid
	return New(CodePriceNotMet, "Payment does not meet the asking price", http.StatusPaymentRequired).
		WithDetails(d)
}

func ErrNoProceeds() *AppError {
	return New(CodeNoProceeds, "No proceeds to withdraw", http.StatusConflict)
}

func ErrTransferFailed(seller string, amount int64, err error) *AppError {
	return Wrap(CodeTransferFailed, "Proceeds transfer failed", http.StatusBadGateway, err).
		WithDetails(map[string]any{"seller": seller, "amount": amount})
}

func ErrReentrantCall() *AppError {
	return New(CodeReentrantCall, "Reentrant call into the ledger", http.StatusLocked)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New(CodeUsernameExists, "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Request (REQ) ----

func ErrBodyTooLarge(limit int64) *AppError {
	return New(CodeBodyTooLarge, "Request body too large", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]any{"limit_bytes": limit})
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

func ErrLedgerBusy(err error) *AppError {
	return Wrap(CodeLedgerBusy, "Ledger is busy, retry later", http.StatusServiceUnavailable, err)
}

func ErrRegistryUnavailable(err error) *AppError {
	return Wrap(CodeRegistryUnavailable, "Item registry call failed", http.StatusBadGateway, err)
}

// StatusClientClosedRequest is the non-standard status used when the caller
// went away before the ledger could serve it.
const StatusClientClosedRequest = 499

// ErrRequestCanceled wraps the caller's context error. It unwraps to
// context.Canceled or context.DeadlineExceeded.
func ErrRequestCanceled(err error) *AppError {
	return Wrap(CodeRequestCanceled, "Request canceled", StatusClientClosedRequest, err)
}

// Validation returns an MKT_010-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}
