// Package errors defines the sensor's error taxonomy: a small closed set of
// codes that every component maps its failures onto, so callers can branch on
// Is* helpers instead of string-matching messages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError into one of the taxonomy's buckets.
type ErrorCode string

const (
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail    ErrorCode = "SERVICE_UNAVAILABLE"
	CodeDecodeFailed      ErrorCode = "DECODE_FAILED"
	CodeSpecBundleInvalid ErrorCode = "SPEC_BUNDLE_INVALID"
	CodePolicyInvalid     ErrorCode = "POLICY_INVALID"
	CodeSinkUnavailable   ErrorCode = "SINK_UNAVAILABLE"
	CodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
)

// AppError is the common error shape carried across stage boundaries.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
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

func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func NewAlreadyExistsError(message string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}

func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

func NewDecodeError(message string, cause error) *AppError {
	return &AppError{Code: CodeDecodeFailed, Message: message, Err: cause}
}

func NewSpecBundleError(message string, cause error) *AppError {
	return &AppError{Code: CodeSpecBundleInvalid, Message: message, Err: cause}
}

func NewPolicyError(message string, cause error) *AppError {
	return &AppError{Code: CodePolicyInvalid, Message: message, Err: cause}
}

func NewSinkError(message string, cause error) *AppError {
	return &AppError{Code: CodeSinkUnavailable, Message: message, Err: cause}
}

func NewResourceExhaustedError(message string) *AppError {
	return &AppError{Code: CodeResourceExhausted, Message: message}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

func IsInvalidInput(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidInput
	}
	return false
}

func IsResourceExhausted(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeResourceExhausted
	}
	return false
}
