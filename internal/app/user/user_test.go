package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentity_Validate(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		err  error
	}{
		{"plain", "alice", nil},
		{"with spaces inside", "alice smith", nil},
		{"unicode", "zoë", nil},
		{"underscore", "a_b", nil},
		{"empty", "", ErrEmptyIdentity},
		{"blank", "   ", ErrEmptyIdentity},
		{"separator", "a:b", ErrIdentityCharacters},
		{"control", "al\nice", ErrIdentityCharacters},
		{"too long", strings.Repeat("x", MaxIdentityBytes+1), ErrIdentityTooLong},
		{"max length", strings.Repeat("x", MaxIdentityBytes), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Identity(tc.raw).Validate()
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestParseOptional(t *testing.T) {
	req := require.New(t)

	id, err := ParseOptional("")
	req.NoError(err)
	req.Nil(id)

	id, err = ParseOptional("bob")
	req.NoError(err)
	req.NotNil(id)
	req.Equal(Identity("bob"), *id)

	id, err = ParseOptional("b:ob")
	req.ErrorIs(err, ErrIdentityCharacters)
	req.Nil(id)
}
