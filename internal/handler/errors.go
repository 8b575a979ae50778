package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"materiel-inventory-api/internal/middleware"
	apperrors "materiel-inventory-api/pkg/errors"
)

// ErrorHandler provides centralized error handling functionality for handlers
type ErrorHandler struct {
	Logger zerolog.Logger
}

// NewErrorHandler creates a new ErrorHandler instance
func NewErrorHandler(logger zerolog.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger: logger,
	}
}

// SendErrorResponse sends a structured error response
func (e *ErrorHandler) SendErrorResponse(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.GetHTTPStatus())

	response := ErrorResponse{
		Error:     appErr.Message,
		Code:      string(appErr.Code),
		Details:   stringDetails(appErr.Details),
		RequestID: appErr.RequestID,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		e.Logger.Error().Err(err).Msg("failed to encode error response")
	}
}

// SendSuccessResponse sends a structured success response
func (e *ErrorHandler) SendSuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := SuccessResponse{
		Message: message,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		e.Logger.Error().Err(err).Msg("failed to encode success response")
	}
}

// SendJSONResponse sends a generic JSON response
func (e *ErrorHandler) SendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		e.Logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// HandleServiceError maps a service error to an HTTP response. AppErrors keep
// their code and details; anything else becomes an internal error.
func (e *ErrorHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			appErr = apperrors.TimeoutError(operation)
		default:
			appErr = apperrors.InternalError("failed to "+operation, err)
		}
	}

	appErr.WithRequestID(middleware.RequestIDFromContext(r.Context()))
	status := appErr.GetHTTPStatus()

	event := e.Logger.Warn()
	if status >= http.StatusInternalServerError {
		event = e.Logger.Error()
	}
	event.Err(err).Str("request_id", appErr.RequestID).Str("operation", operation).
		Str("code", string(appErr.Code)).Int("status", status).Msg("request failed")

	e.SendErrorResponse(w, appErr)
}

// HandleJSONDecodeError reports a request body that is not valid JSON
func (e *ErrorHandler) HandleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	e.HandleServiceError(w, r, apperrors.InvalidJSONError(err), "decode request body")
}

// HandleParameterError reports a malformed query parameter
func (e *ErrorHandler) HandleParameterError(w http.ResponseWriter, r *http.Request, name string, err error) {
	e.HandleServiceError(w, r, apperrors.InvalidParameterError(name, err), "parse "+name)
}

func stringDetails(details map[string]interface{}) map[string]string {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		data, _ := json.Marshal(v)
		out[k] = string(data)
	}
	return out
}
