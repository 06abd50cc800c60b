// Package errors defines the application error taxonomy and its central handler.
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

// AppError carries a stable code, an operator-facing message and the i18n key shown to the user.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	UserArgs    []any
	Severity    Severity
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// rejectionCodes are refusals of a request the user can fix or retry later,
// as opposed to failures of the bot itself.
var rejectionCodes = map[string]struct{}{
	"E100": {},
	"E110": {},
	"E120": {},
	"E400": {},
	"E500": {},
}

// IsRejection reports whether err is a validation, not-found, forbidden,
// wrong-state or rate-limit refusal.
func IsRejection(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		return false
	}
	_, ok := rejectionCodes[appErr.Code]
	return ok
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: "errors.validation",
		Severity:    SeverityLow,
	}
}

// NewNotFoundError reports a missing user or question; what selects the user message.
func NewNotFoundError(what string, cause error) *AppError {
	return &AppError{
		Code:        "E110",
		Message:     fmt.Sprintf("%s not found", what),
		UserMessage: "errors.not_found." + what,
		Severity:    SeverityLow,
		cause:       cause,
	}
}

func NewForbiddenError(action string, cause error) *AppError {
	return &AppError{
		Code:        "E120",
		Message:     fmt.Sprintf("forbidden: %s", action),
		UserMessage: "errors.forbidden",
		Severity:    SeverityMedium,
		cause:       cause,
	}
}

func NewDatabaseError(cause error) *AppError {
	return &AppError{
		Code:        "E200",
		Message:     "database error",
		UserMessage: "errors.temporary",
		Severity:    SeverityHigh,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("external api error: %s", apiName),
		UserMessage: "errors.service_unavailable",
		Severity:    SeverityMedium,
		cause:       cause,
	}
}

// NewStateError reports a transition that the question's current state does not allow.
func NewStateError(msg string, cause error) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "errors.invalid_state",
		Severity:    SeverityLow,
		cause:       cause,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: "errors.rate_limited",
		UserArgs:    []any{retryAfter},
		Severity:    SeverityLow,
	}
}
