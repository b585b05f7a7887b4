/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific relay or system errors
both internally within the server and in communication with clients, over HTTP
responses and WebSocket error events alike.
*/
package errs

// 1xxx: Request and Event Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidEventFormat indicates that a WebSocket frame was not a valid event envelope.
	ErrInvalidEventFormat = 1002

	// ErrUnsupportedEventType indicates that the event type is unknown to the relay.
	ErrUnsupportedEventType = 1003

	// ErrInvalidEventPayload indicates that an event payload is missing required fields.
	ErrInvalidEventPayload = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Identity and Messaging Errors
const (
	// ErrIdentityInvalid indicates that a registered or addressed identity is malformed.
	ErrIdentityInvalid = 2101

	// ErrIdentityTaken indicates that the identity is already held by another connection.
	ErrIdentityTaken = 2102

	// ErrIdentityMismatch indicates that an event names an identity other than the
	// one the connection is bound to.
	ErrIdentityMismatch = 2103

	// ErrNotRegistered indicates that the connection must register an identity first.
	ErrNotRegistered = 2104

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201
)

// 3xxx: Session and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid access token.
	ErrUnauthorized = 3001

	// ErrSessionKicked indicates that the current client connection has been terminated.
	ErrSessionKicked = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageFailed indicates that the message store could not persist or read messages.
	ErrStorageFailed = 5001
)
