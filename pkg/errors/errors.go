package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a specific error type
type ErrorCode string

const (
	// Inventory errors
	ErrorCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrorCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"
	ErrorCodeConfirmation ErrorCode = "CONFIRMATION_REQUIRED"

	// Technical errors
	ErrorCodeInternal    ErrorCode = "INTERNAL_ERROR"
	ErrorCodePersistence ErrorCode = "PERSISTENCE_FAILURE"
	ErrorCodeTimeout     ErrorCode = "TIMEOUT_ERROR"
	ErrorCodeRateLimit   ErrorCode = "RATE_LIMIT_ERROR"

	// Request errors
	ErrorCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrorCodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
)

// AppError is the error type returned across the service boundary. Message is
// meant for the person using the inventory.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ToJSON converts the error to JSON for API responses
func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"error":      e.Message,
		"code":       e.Code,
		"details":    e.Details,
		"timestamp":  e.Timestamp,
		"request_id": e.RequestID,
	})
	return data
}

// GetHTTPStatus returns the appropriate HTTP status code for the error
func (e *AppError) GetHTTPStatus() int {
	switch e.Code {
	case ErrorCodeValidation, ErrorCodeInvalidJSON, ErrorCodeInvalidParameter,
		ErrorCodeConfirmation:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeDuplicateKey:
		return http.StatusConflict
	case ErrorCodeTimeout:
		return http.StatusRequestTimeout
	case ErrorCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrorCodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// NewAppErrorWithCause creates a new application error with an underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	err := NewAppError(code, message)
	err.Cause = cause
	return err
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID adds a request ID to the error
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Predefined error constructors for common cases

// ValidationErrorWithDetails creates a validation error with field details
func ValidationErrorWithDetails(message string, fields map[string]string) *AppError {
	err := NewAppError(ErrorCodeValidation, message)
	for field, msg := range fields {
		err.WithDetail(field, msg)
	}
	return err
}

// NotFoundError creates a not found error
func NotFoundError(resource, id string) *AppError {
	return NewAppError(ErrorCodeNotFound, fmt.Sprintf("%s %s not found", resource, id)).
		WithDetail("id", id)
}

// DuplicateKeyError reports an id already held by another record
func DuplicateKeyError(id string) *AppError {
	return NewAppError(ErrorCodeDuplicateKey, fmt.Sprintf("record id %s already exists", id)).
		WithDetail("id", id)
}

// ConfirmationRequiredError rejects a destructive call made without confirmation
func ConfirmationRequiredError(id string) *AppError {
	return NewAppError(ErrorCodeConfirmation,
		fmt.Sprintf("deletion of record %s must be confirmed", id)).
		WithDetail("id", id)
}

// PersistenceError reports a failed load or save
func PersistenceError(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorCodePersistence, message, cause)
}

// InternalError creates an internal server error
func InternalError(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorCodeInternal, message, cause)
}

// TimeoutError creates a timeout error
func TimeoutError(operation string) *AppError {
	return NewAppError(ErrorCodeTimeout, fmt.Sprintf("timeout during %s", operation))
}

// InvalidParameterError reports a malformed query or path parameter
func InvalidParameterError(name string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorCodeInvalidParameter,
		fmt.Sprintf("invalid parameter %q: %v", name, cause), cause).WithDetail("parameter", name)
}

// RateLimitError rejects a client that exceeded its request budget
func RateLimitError() *AppError {
	return NewAppError(ErrorCodeRateLimit, "Rate limit exceeded")
}

// InvalidJSONError creates an invalid JSON error
func InvalidJSONError(cause error) *AppError {
	return NewAppErrorWithCause(ErrorCodeInvalidJSON, "Invalid JSON format", cause)
}

// Error handling utilities

// AsAppError finds an AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
