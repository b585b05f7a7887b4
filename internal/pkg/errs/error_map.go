/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, WebSocket error events, and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: Request and Event Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidEventFormat:   {Code: ErrInvalidEventFormat, Message: "Malformed event."},
	ErrUnsupportedEventType: {Code: ErrUnsupportedEventType, Message: "Unsupported event type: %s."},
	ErrInvalidEventPayload:  {Code: ErrInvalidEventPayload, Message: "Invalid event payload: %s."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Identity and Messaging Errors
	ErrIdentityInvalid:       {Code: ErrIdentityInvalid, Message: "Invalid username."},
	ErrIdentityTaken:         {Code: ErrIdentityTaken, Message: "This username is already connected."},
	ErrIdentityMismatch:      {Code: ErrIdentityMismatch, Message: "Username does not match this connection."},
	ErrNotRegistered:         {Code: ErrNotRegistered, Message: "Register a username before sending messages."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},

	// 3xxx: Session and Security Errors
	ErrUnauthorized:  {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSessionKicked: {Code: ErrSessionKicked, Message: "You were signed in on another device."},

	// 5xxx: Internal System Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageFailed: {Code: ErrStorageFailed, Message: "Message could not be saved. Please try again.", Status: http.StatusInternalServerError},
}
