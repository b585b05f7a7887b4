package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		details     []any
		wantCode    int
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "websocket-only code defaults to 200",
			code:        ErrNotRegistered,
			wantCode:    ErrNotRegistered,
			wantStatus:  http.StatusOK,
			wantMessage: "Register a username before sending messages.",
		},
		{
			name:        "template is formatted with details",
			code:        ErrUnsupportedEventType,
			details:     []any{"join_room"},
			wantCode:    ErrUnsupportedEventType,
			wantStatus:  http.StatusOK,
			wantMessage: "Unsupported event type: join_room.",
		},
		{
			name:        "details without placeholder are ignored",
			code:        ErrIdentityTaken,
			details:     []any{"alice"},
			wantCode:    ErrIdentityTaken,
			wantStatus:  http.StatusOK,
			wantMessage: "This username is already connected.",
		},
		{
			name:        "underlying storage error is not exposed",
			code:        ErrStorageFailed,
			details:     []any{errors.New("connection refused")},
			wantCode:    ErrStorageFailed,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Message could not be saved. Please try again.",
		},
		{
			name:        "unknown code falls back to ErrUnknown",
			code:        42,
			wantCode:    ErrUnknown,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewError(tt.code, tt.details...)
			require.Equal(t, tt.wantCode, got.Code)
			require.Equal(t, tt.wantStatus, got.Status)
			require.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestNewError_DoesNotMutateTemplate(t *testing.T) {
	_ = NewError(ErrInvalidEventPayload, "first")
	got := NewError(ErrInvalidEventPayload, "second")

	require.Equal(t, "Invalid event payload: second.", got.Message)
	require.Equal(t, "Invalid event payload: %s.", errorMap[ErrInvalidEventPayload].Message)
}

func TestFromAndHasCode(t *testing.T) {
	req := require.New(t)

	req.Nil(From(nil))

	wrapped := fmt.Errorf("register: %w", NewError(ErrIdentityTaken))
	req.Equal(ErrIdentityTaken, From(wrapped).Code)
	req.True(HasCode(wrapped, ErrIdentityTaken))
	req.False(HasCode(wrapped, ErrIdentityMismatch))

	plain := errors.New("boom")
	req.Equal(ErrUnknown, From(plain).Code)
	req.False(HasCode(plain, ErrUnknown))
}
