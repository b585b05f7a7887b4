/*
Package conversation derives the identifiers that group chat messages.

A private conversation between two identities is keyed by both identities sorted
and joined with the reserved separator, so the key does not depend on who sent the
message. The public room uses the General constant. Identities can never contain the
separator, which means every private key holds exactly one separator and can be
neither confused with another pair nor equal to General.
*/
package conversation

import (
	"strings"

	"relaychat/internal/app/user"
)

// General is the identifier of the shared public room.
const General ID = "general"

// ID identifies a conversation.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string {
	return string(id)
}

// IsPrivate reports whether the id names a two-party conversation.
func (id ID) IsPrivate() bool {
	return strings.ContainsRune(string(id), user.Separator)
}

// Resolve returns the identifier of the private conversation between a and b.
// Resolve(a, b) == Resolve(b, a) for all a and b.
func Resolve(a, b user.Identity) ID {
	if b < a {
		a, b = b, a
	}
	return ID(string(a) + string(user.Separator) + string(b))
}

// For returns the conversation a message from sender belongs to. A nil recipient
// means the message was posted to the public room.
func For(sender user.Identity, recipient *user.Identity) ID {
	if recipient == nil {
		return General
	}
	return Resolve(sender, *recipient)
}
