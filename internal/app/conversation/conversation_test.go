package conversation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relaychat/internal/app/user"
)

var identities = []user.Identity{"alice", "bob", "a_b", "c", "a", "b_c", "general", "Zed", "zoë", "a b"}

func TestResolve_IsCommutative(t *testing.T) {
	for _, a := range identities {
		for _, b := range identities {
			require.Equal(t, Resolve(a, b), Resolve(b, a), "pair %q/%q", a, b)
		}
	}
}

func TestResolve_NoCollisions(t *testing.T) {
	seen := make(map[ID][2]user.Identity)

	for i, a := range identities {
		for _, b := range identities[i:] {
			id := Resolve(a, b)
			if prev, ok := seen[id]; ok {
				t.Fatalf("collision: %q/%q and %q/%q both resolve to %q", prev[0], prev[1], a, b, id)
			}
			seen[id] = [2]user.Identity{a, b}
		}
	}

	// the classic concatenation ambiguity of an underscore join
	require.NotEqual(t, Resolve("a_b", "c"), Resolve("a", "b_c"))
}

func TestResolve_NeverGeneral(t *testing.T) {
	for _, a := range identities {
		for _, b := range identities {
			id := Resolve(a, b)
			require.NotEqual(t, General, id)
			require.True(t, id.IsPrivate())
		}
	}
	require.False(t, General.IsPrivate())
}

func TestFor(t *testing.T) {
	bob := user.Identity("bob")

	require.Equal(t, General, For("alice", nil))
	require.Equal(t, Resolve("alice", "bob"), For("alice", &bob))
	require.Equal(t, ID("alice:bob"), For("alice", &bob))
}
