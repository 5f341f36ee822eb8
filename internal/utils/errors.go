package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeInput is a caller mistake: bad date range, unknown granularity or grouping.
	// It is the only error that aborts a request.
	ErrorTypeInput ErrorType = "INPUT"
	// ErrorTypeDataUnavailable means the upstream source could not be reached or had no rows.
	ErrorTypeDataUnavailable ErrorType = "DATA_UNAVAILABLE"
	ErrorTypeCache           ErrorType = "CACHE"
	ErrorTypeConfig          ErrorType = "CONFIG"
	ErrorTypeInternal        ErrorType = "INTERNAL"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
	Component string                 `json:"component"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message, component string) *AppError {
	return &AppError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Component: component,
		Timestamp: time.Now().UTC(),
	}
}

// WrapError wraps an existing error with application error context
func WrapError(err error, errorType ErrorType, code, message, component string) *AppError {
	appErr := NewAppError(errorType, code, message, component)
	appErr.Cause = err
	appErr.Retryable = isRetryablePattern(err)
	return appErr
}

// NewInputError builds an InputError for a rejected request parameter
func NewInputError(code, format string, args ...interface{}) *AppError {
	return NewAppError(ErrorTypeInput, code, fmt.Sprintf(format, args...), "query")
}

// NewDataUnavailable wraps an upstream failure
func NewDataUnavailable(err error, component string) *AppError {
	return WrapError(err, ErrorTypeDataUnavailable, "UPSTREAM_UNAVAILABLE", "upstream source unavailable", component)
}

// GetErrorType extracts the error type from an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// IsInputError reports whether err is a caller input error
func IsInputError(err error) bool {
	return err != nil && GetErrorType(err) == ErrorTypeInput
}

// IsDataUnavailable reports whether err signals a missing upstream
func IsDataUnavailable(err error) bool {
	return err != nil && GetErrorType(err) == ErrorTypeDataUnavailable
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return isRetryablePattern(err)
}

func isRetryablePattern(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"service unavailable",
		"too many requests",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// LogError logs an error with its structured context
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		fields = append(fields,
			zap.String("errorType", string(appErr.Type)),
			zap.String("errorCode", appErr.Code),
			zap.Bool("retryable", appErr.Retryable),
			zap.String("component", appErr.Component),
		)
		for k, v := range appErr.Context {
			fields = append(fields, zap.Any(k, v))
		}
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
}
