package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	TransactionNotFound ErrorCode = "transaction_not_found"
	InsertionNotAllowed ErrorCode = "insertion_not_allowed"
	ReversalNotAllowed  ErrorCode = "reversal_not_allowed"
	InvalidInput        ErrorCode = "invalid_input"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// HTTPStatus maps the error taxonomy to the status codes the request layer
// returns: validation errors are 400, missing transactions 404, anything
// else 500.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case TransactionNotFound:
		return http.StatusNotFound
	case InsertionNotAllowed, ReversalNotAllowed, InvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrTransactionNotFound = NewAppError(TransactionNotFound, "transaction(s) not found")
	ErrInsertionNotAllowed = NewAppError(InsertionNotAllowed, "id, nsu, authorization code and status cannot be set by the client")
	ErrReversalNotAllowed  = NewAppError(ReversalNotAllowed, "transaction is not in an authorized state")
)
