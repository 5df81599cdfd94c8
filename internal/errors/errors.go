// Package errors defines the application error taxonomy and the helpers that act on it.
package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation   = "E100"
	CodeDatabase     = "E200"
	CodeExternalAPI  = "E300"
	CodeNotification = "E310"
	CodeState        = "E400"
	CodeRateLimit    = "E500"
)

// DefaultUserMessage is shown to customers when nothing more specific is known.
const DefaultUserMessage = "An error occurred. Please try again later."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewDatabaseError(cause error) *AppError {
	return &AppError{
		Code:        CodeDatabase,
		Message:     "database error",
		UserMessage: "Temporary problem, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        CodeExternalAPI,
		Message:     fmt.Sprintf("external API error: %s", apiName),
		UserMessage: "Service temporarily unavailable.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewNotificationError reports a failed outbound message. Only transient failures are retried.
func NewNotificationError(transient bool, cause error) *AppError {
	msg := "notification failed permanently"
	if transient {
		msg = "notification failed transiently"
	}

	return &AppError{
		Code:        CodeNotification,
		Message:     msg,
		UserMessage: "We could not send your message.",
		Severity:    SeverityMedium,
		Retryable:   transient,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "That action is not possible right now.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: "Too many requests. Please try again shortly.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Code == code
	}
	return false
}
