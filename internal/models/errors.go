package models

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tad-z/BlockTrace-api/pkg/logger"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Authentication errors
	ErrorCodeMissingAPIKey ErrorCode = "MISSING_API_KEY"
	ErrorCodeInvalidAPIKey ErrorCode = "INVALID_API_KEY"

	// Rate limiting / quota errors
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrorCodeQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"

	// Validation errors
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidAddress   ErrorCode = "INVALID_ADDRESS"
	ErrorCodeUnsupportedChain ErrorCode = "UNSUPPORTED_CHAIN"
	ErrorCodeMalformedJSON    ErrorCode = "MALFORMED_JSON"

	// Upstream errors
	ErrorCodeRPCUnavailable ErrorCode = "RPC_UNAVAILABLE"
	ErrorCodeRPCTimeout     ErrorCode = "RPC_TIMEOUT"

	// Internal errors
	ErrorCodeStoreError    ErrorCode = "STORE_ERROR"
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusCode returns the appropriate HTTP status code for each error type
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeMissingAPIKey, ErrorCodeInvalidAPIKey:
		return http.StatusUnauthorized
	case ErrorCodeQuotaExceeded:
		return http.StatusForbidden
	case ErrorCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeInvalidRequest, ErrorCodeInvalidAddress, ErrorCodeUnsupportedChain, ErrorCodeMalformedJSON:
		return http.StatusBadRequest
	case ErrorCodeRPCUnavailable, ErrorCodeRPCTimeout:
		return http.StatusBadGateway
	case ErrorCodeStoreError, ErrorCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Error         ErrorDetail `json:"error"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// AppError represents an application error with context
type AppError struct {
	Code       ErrorCode
	Message    string
	Details    string
	Cause      error
	StatusCode int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: code.HTTPStatusCode(),
	}
}

// NewAppErrorWithCause creates a new application error with underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: code.HTTPStatusCode(),
	}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: code.HTTPStatusCode(),
	}
}

// HandleError converts err to an AppError, logs it with the request context,
// and writes the standardized error response.
func HandleError(c *gin.Context, err error, log *logger.Logger) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewAppErrorWithCause(ErrorCodeInternalError, "Internal server error", err)
	}

	correlationID := logger.GetCorrelationIDFromContext(c.Request.Context())

	logFields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_message", appErr.Message),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
	}
	if appErr.Cause != nil {
		logFields = append(logFields, zap.Error(appErr.Cause))
	}

	if appErr.StatusCode >= 500 {
		log.Error("Application error", logFields...)
	} else {
		log.Warn("Client error", logFields...)
	}

	c.JSON(appErr.StatusCode, &ErrorResponse{
		Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	})
}
