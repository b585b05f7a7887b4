/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a client-facing message, and an HTTP status code. The same
value is rendered as an HTTP error body by the resp package and as an "error" event on
a WebSocket connection.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"relaychat/internal/pkg/logx"
)

// CustomError is the application-level error shared by the HTTP API and the relay.
type CustomError struct {
	// Code is the business error code (see error_codes.go).
	Code int

	// Message is the client-facing description.
	Message string

	// Status is the HTTP status used when the error ends an HTTP request.
	Status int
}

// Error implements the standard error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a CustomError from the registered template for code.
// Details fill printf placeholders in the template. For ErrUnknown and
// ErrStorageFailed, an error in details is logged instead of being shown to clients.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) == 0 {
		return &customErr
	}

	switch {
	case code == ErrUnknown || code == ErrStorageFailed:
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Internal error hidden from client", "code", code)
		}

	case strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)

	default:
		logx.Warn(
			"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			"code", code,
		)
	}

	return &customErr
}

// From returns err as a *CustomError when it is one, or wraps it as ErrUnknown.
func From(err error) *CustomError {
	if err == nil {
		return nil
	}

	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr
	}

	return NewError(ErrUnknown, err)
}

// HasCode reports whether err is a *CustomError with the given code.
func HasCode(err error, code int) bool {
	var customErr *CustomError
	return errors.As(err, &customErr) && customErr.Code == code
}
