/*
Package user contains the representation of a chat participant's identity.

An Identity is the opaque username a client registers with. It is used as a map key
by the presence registry and as an input to conversation identifiers, so it is kept
as its own type to avoid mixing it with conversation ids or message content.
*/
package user

import (
	"errors"
	"strings"
	"unicode"
)

const (
	// MaxIdentityBytes is the longest identity accepted, in bytes.
	MaxIdentityBytes = 64

	// Separator is the character reserved for joining identities into conversation ids.
	// It may never appear inside an identity.
	Separator = ':'
)

var (
	// ErrEmptyIdentity is returned for an empty or whitespace-only identity.
	ErrEmptyIdentity = errors.New("identity is empty")

	// ErrIdentityTooLong is returned when an identity exceeds MaxIdentityBytes.
	ErrIdentityTooLong = errors.New("identity is too long")

	// ErrIdentityCharacters is returned when an identity contains the reserved
	// separator or a control character.
	ErrIdentityCharacters = errors.New("identity contains forbidden characters")
)

// Identity is the unique name of a chat participant.
type Identity string

// String returns the identity as a plain string.
func (i Identity) String() string {
	return string(i)
}

// Validate reports whether the identity may be registered or addressed.
func (i Identity) Validate() error {
	s := string(i)

	if strings.TrimSpace(s) == "" {
		return ErrEmptyIdentity
	}

	if len(s) > MaxIdentityBytes {
		return ErrIdentityTooLong
	}

	for _, r := range s {
		if r == Separator || unicode.IsControl(r) {
			return ErrIdentityCharacters
		}
	}

	return nil
}

// Parse converts a raw string into a validated Identity.
func Parse(raw string) (Identity, error) {
	id := Identity(raw)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// ParseOptional parses an optional identity such as a message recipient.
// An empty string yields a nil identity and no error.
func ParseOptional(raw string) (*Identity, error) {
	if raw == "" {
		return nil, nil
	}

	id, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
