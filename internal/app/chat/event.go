/*
Package chat contains the connection-event state machine of the relay.

This file defines the wire protocol: the JSON envelope shared by both directions,
the typed inbound events the relay handles, and the outbound frames it emits.
*/
package chat

import (
	"bytes"
	"encoding/json"
	"errors"

	"relaychat/internal/app/store"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/req"
)

// EventType is the "type" field of an envelope.
type EventType string

// Inbound event types.
const (
	TypeRegister    EventType = "register"
	TypeSendMessage EventType = "send_message"
	TypeTypingStart EventType = "typing_start"
	TypeTypingStop  EventType = "typing_stop"
)

// Outbound event types. Typing frames reuse the inbound names.
const (
	TypeMessage     EventType = "message"
	TypeOnlineUsers EventType = "online_users"
	TypeError       EventType = "error"
)

// Event is one decoded inbound event: RegisterIdentity, SendMessage or Typing.
type Event interface {
	Type() EventType
}

// RegisterIdentity binds the connection to an identity.
type RegisterIdentity struct {
	Identity user.Identity
}

func (RegisterIdentity) Type() EventType { return TypeRegister }

// SendMessage asks the relay to persist and deliver a message.
// A nil Recipient addresses the general room.
type SendMessage struct {
	Sender    user.Identity
	Recipient *user.Identity
	Content   string

	// TempID is the client's correlation id, echoed on the sender's own frames.
	TempID string
}

func (SendMessage) Type() EventType { return TypeSendMessage }

// Typing is a typing indicator. Start is false for typing_stop.
type Typing struct {
	Start     bool
	Username  user.Identity
	Recipient *user.Identity
}

func (t Typing) Type() EventType {
	if t.Start {
		return TypeTypingStart
	}
	return TypeTypingStop
}

// envelope is the frame layout in both directions.
type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
	TempID  string          `json:"tempId,omitempty"`
}

type registerPayload struct {
	Identity string `json:"identity" validate:"required"`
}

type sendMessagePayload struct {
	Sender    string  `json:"sender" validate:"required"`
	Recipient *string `json:"recipient"`
	Content   string  `json:"content"`
}

type typingPayload struct {
	Username  string  `json:"username" validate:"required"`
	Recipient *string `json:"recipient"`
}

// DecodeEvent parses one inbound frame. The returned tempId is set whenever the
// envelope itself was readable, so error replies can still be correlated.
// Errors are *errs.CustomError with an event or identity code.
func DecodeEvent(data []byte) (Event, string, error) {
	var env envelope
	if err := req.DecodeStrict(data, &env); err != nil {
		return nil, "", errs.NewError(errs.ErrInvalidEventFormat)
	}

	switch env.Type {
	case TypeRegister:
		var p registerPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, env.TempID, err
		}

		identity, err := user.Parse(p.Identity)
		if err != nil {
			return nil, env.TempID, errs.NewError(errs.ErrIdentityInvalid)
		}

		return RegisterIdentity{Identity: identity}, env.TempID, nil

	case TypeSendMessage:
		var p sendMessagePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, env.TempID, err
		}

		sender, err := user.Parse(p.Sender)
		if err != nil {
			return nil, env.TempID, errs.NewError(errs.ErrIdentityInvalid)
		}

		recipient, err := parseRecipient(p.Recipient)
		if err != nil {
			return nil, env.TempID, err
		}

		return SendMessage{
			Sender:    sender,
			Recipient: recipient,
			Content:   p.Content,
			TempID:    env.TempID,
		}, env.TempID, nil

	case TypeTypingStart, TypeTypingStop:
		var p typingPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, env.TempID, err
		}

		username, err := user.Parse(p.Username)
		if err != nil {
			return nil, env.TempID, errs.NewError(errs.ErrIdentityInvalid)
		}

		recipient, err := parseRecipient(p.Recipient)
		if err != nil {
			return nil, env.TempID, err
		}

		return Typing{
			Start:     env.Type == TypeTypingStart,
			Username:  username,
			Recipient: recipient,
		}, env.TempID, nil

	case "":
		return nil, env.TempID, errs.NewError(errs.ErrInvalidEventFormat)

	default:
		return nil, env.TempID, errs.NewError(errs.ErrUnsupportedEventType, env.Type)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return errs.NewError(errs.ErrInvalidEventPayload, "payload is required")
	}

	if err := req.DecodeStrict(raw, dst); err != nil {
		return errs.NewError(errs.ErrInvalidEventPayload, "malformed payload")
	}

	if err := req.Validate(dst); err != nil {
		var fieldErr *req.FieldError
		if errors.As(err, &fieldErr) {
			return errs.NewError(errs.ErrInvalidEventPayload, fieldErr.Error())
		}
		return errs.NewError(errs.ErrInvalidEventPayload, "validation failed")
	}

	return nil
}

// parseRecipient treats a missing, null or empty recipient as the general room.
func parseRecipient(raw *string) (*user.Identity, error) {
	if raw == nil {
		return nil, nil
	}

	recipient, err := user.ParseOptional(*raw)
	if err != nil {
		return nil, errs.NewError(errs.ErrIdentityInvalid)
	}
	return recipient, nil
}

// Outbound payloads.

// OnlineUsersPayload is the body of an online_users frame.
type OnlineUsersPayload struct {
	Users []user.Identity `json:"users"`
}

// TypingPayload is the body of a typing_start or typing_stop frame.
type TypingPayload struct {
	Username  user.Identity  `json:"username"`
	Recipient *user.Identity `json:"recipient,omitempty"`
}

// ErrorPayload is the body of an error frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TempID  string `json:"tempId,omitempty"`
}

type outbound struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
	TempID  string    `json:"tempId,omitempty"`
}

func encodeFrame(t EventType, payload any, tempID string) ([]byte, error) {
	return json.Marshal(outbound{Type: t, Payload: payload, TempID: tempID})
}

// messageFrame renders a persisted message.
func messageFrame(msg store.Message, tempID string) ([]byte, error) {
	return encodeFrame(TypeMessage, msg, tempID)
}

func onlineUsersFrame(users []user.Identity) ([]byte, error) {
	if users == nil {
		users = []user.Identity{}
	}
	return encodeFrame(TypeOnlineUsers, OnlineUsersPayload{Users: users}, "")
}

func typingFrame(t Typing) ([]byte, error) {
	return encodeFrame(t.Type(), TypingPayload{Username: t.Username, Recipient: t.Recipient}, "")
}

// errorFrame renders err, hiding anything that is not a *errs.CustomError.
func errorFrame(err error, tempID string) []byte {
	customErr := errs.From(err)

	frame, marshalErr := encodeFrame(TypeError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
		TempID:  tempID,
	}, tempID)
	if marshalErr != nil {
		// Unreachable for this payload shape.
		return []byte(`{"type":"error","payload":{"code":5000,"message":"internal error"}}`)
	}
	return frame
}
