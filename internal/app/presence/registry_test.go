package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"relaychat/internal/app/user"
)

// assertConsistent checks that the forward and reverse maps mirror each other.
func assertConsistent(t *testing.T, r *Registry) {
	t.Helper()

	r.mu.RLock()
	defer r.mu.RUnlock()

	require.Equal(t, len(r.byIdentity), len(r.byConn))
	for identity, conn := range r.byIdentity {
		require.Equal(t, identity, r.byConn[conn])
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	_, ok := r.Lookup("alice")
	req.False(ok)

	prev, replaced := r.Register("alice", "h1")
	req.False(replaced)
	req.Empty(prev)

	conn, ok := r.Lookup("alice")
	req.True(ok)
	req.Equal(ConnID("h1"), conn)

	identity, ok := r.IdentityOf("h1")
	req.True(ok)
	req.Equal(user.Identity("alice"), identity)
	assertConsistent(t, r)
}

func TestRegistry_LaterRegistrationSupersedes(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.Register("alice", "h1")
	prev, replaced := r.Register("alice", "h2")
	req.True(replaced)
	req.Equal(ConnID("h1"), prev)

	conn, _ := r.Lookup("alice")
	req.Equal(ConnID("h2"), conn)

	removed, ok := r.Unregister("h1")
	req.False(ok)
	req.Empty(removed)

	conn, ok = r.Lookup("alice")
	req.True(ok)
	req.Equal(ConnID("h2"), conn)
	assertConsistent(t, r)
}

func TestRegistry_ReRegisterSameConnection(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.Register("alice", "h1")
	_, replaced := r.Register("alice", "h1")
	req.False(replaced)
	req.Equal(1, r.Len())
	assertConsistent(t, r)
}

func TestRegistry_ConnectionChangesIdentity(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.Register("alice", "h1")
	r.Register("alicia", "h1")

	_, ok := r.Lookup("alice")
	req.False(ok)
	req.Equal([]user.Identity{"alicia"}, r.ListOnline())
	assertConsistent(t, r)
}

func TestRegistry_Unregister(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.Register("alice", "h")
	r.Register("bob", "hb")

	removed, ok := r.Unregister("h")
	req.True(ok)
	req.Equal(user.Identity("alice"), removed)

	_, ok = r.Lookup("alice")
	req.False(ok)
	req.NotContains(r.ListOnline(), user.Identity("alice"))
	req.Equal([]user.Identity{"bob"}, r.ListOnline())

	_, ok = r.Unregister("unknown")
	req.False(ok)
	assertConsistent(t, r)
}

func TestRegistry_RegisterIfAbsent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	req.True(r.RegisterIfAbsent("alice", "h1"))
	req.False(r.RegisterIfAbsent("alice", "h2"))
	req.True(r.RegisterIfAbsent("alice", "h1"))

	conn, _ := r.Lookup("alice")
	req.Equal(ConnID("h1"), conn)
	assertConsistent(t, r)
}

func TestRegistry_ConcurrentAccessStaysConsistent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				identity := user.Identity(fmt.Sprintf("user-%d", i%10))
				conn := ConnID(fmt.Sprintf("conn-%d-%d", w, i%7))
				r.Register(identity, conn)
				r.Lookup(identity)
				if i%3 == 0 {
					r.Unregister(conn)
				}
				r.ListOnline()
			}
		}(w)
	}
	wg.Wait()

	assertConsistent(t, r)
}
