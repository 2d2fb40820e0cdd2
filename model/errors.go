package model

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnknownCollection  = "UNKNOWN_COLLECTION"
	ErrCodeUnexpectedStatus   = "UNEXPECTED_STATUS_CODE"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeMalformedResponse  = "MALFORMED_RESPONSE"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrInvalidRequest     = &Error{Code: ErrCodeInvalidRequest}
	ErrUnknownCollection  = &Error{Code: ErrCodeUnknownCollection}
	ErrUnexpectedStatus   = &Error{Code: ErrCodeUnexpectedStatus}
	ErrConfiguration      = &Error{Code: ErrCodeConfiguration}
	ErrMalformedResponse  = &Error{Code: ErrCodeMalformedResponse}
	ErrBackendUnavailable = &Error{Code: ErrCodeBackendUnavailable}
)

// Error is the error type surfaced by every simple query operation.
// StatusCode is zero for errors raised locally.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Collection string `json:"collection,omitempty"`
	ErrorNum   int    `json:"error_num,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	switch {
	case e.StatusCode != 0 && e.ErrorNum != 0:
		return fmt.Sprintf("%s: %s (status %d, errorNum %d)", e.Code, msg, e.StatusCode, e.ErrorNum)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Code, msg, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// StatusCodeOf returns the remote status code carried by err, or 0.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// CodeOf returns the error code carried by err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// NewInvalidRequestError returns an INVALID_REQUEST error.
func NewInvalidRequestError(msg string) *Error {
	return &Error{Code: ErrCodeInvalidRequest, Message: msg}
}

// NewUnknownCollectionError returns an UNKNOWN_COLLECTION error.
func NewUnknownCollectionError(collection string) *Error {
	return &Error{
		Code:       ErrCodeUnknownCollection,
		Message:    fmt.Sprintf("collection %q not found", collection),
		Collection: collection,
	}
}

// NewUnexpectedStatusError returns an UNEXPECTED_STATUS_CODE error carrying status.
func NewUnexpectedStatusError(status int) *Error {
	return &Error{
		Code:       ErrCodeUnexpectedStatus,
		Message:    fmt.Sprintf("unexpected status code %d", status),
		StatusCode: status,
	}
}

// NewConfigurationError returns a CONFIGURATION_ERROR.
func NewConfigurationError(msg string) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: msg}
}

// NewMalformedResponseError returns a MALFORMED_RESPONSE error.
func NewMalformedResponseError(msg string) *Error {
	return &Error{Code: ErrCodeMalformedResponse, Message: msg}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *Error {
	return &Error{
		Code:    ErrCodeBackendUnavailable,
		Message: "The database server is temporarily unavailable",
	}
}
