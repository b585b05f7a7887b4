/*
Package presence tracks which identities currently hold a live connection.

The Registry keeps a forward map (identity to connection) and its inverse
(connection to identity) behind a single lock, so the two maps are always
consistent: every forward entry has exactly one reverse entry and vice versa.
*/
package presence

import (
	"sort"
	"sync"

	"relaychat/internal/app/user"
)

// ConnID identifies one live transport connection.
type ConnID string

// Registry is the process-wide identity <-> connection mapping.
// The zero value is not usable; construct it with NewRegistry.
type Registry struct {
	// mu guards both maps.
	mu sync.RWMutex

	byIdentity map[user.Identity]ConnID
	byConn     map[ConnID]user.Identity
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[user.Identity]ConnID),
		byConn:     make(map[ConnID]user.Identity),
	}
}

// Register maps identity to conn, overwriting any earlier mapping.
// If identity was held by a different connection, that connection loses its
// reverse entry and is returned with replaced set to true. If conn was
// registered under another identity, that forward entry is dropped as well.
func (r *Registry) Register(identity user.Identity, conn ConnID) (previous ConnID, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insert(identity, conn)
}

// RegisterIfAbsent maps identity to conn only when identity is not already held
// by another connection. Re-registering the same pair succeeds.
func (r *Registry) RegisterIfAbsent(identity user.Identity, conn ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byIdentity[identity]; ok && current != conn {
		return false
	}

	r.insert(identity, conn)
	return true
}

// insert must be called with mu held.
func (r *Registry) insert(identity user.Identity, conn ConnID) (ConnID, bool) {
	previous, held := r.byIdentity[identity]
	replaced := held && previous != conn
	if replaced {
		delete(r.byConn, previous)
	}

	if oldIdentity, ok := r.byConn[conn]; ok && oldIdentity != identity {
		delete(r.byIdentity, oldIdentity)
	}

	r.byIdentity[identity] = conn
	r.byConn[conn] = identity

	if !replaced {
		return "", false
	}
	return previous, true
}

// Lookup returns the connection currently registered for identity.
// A missing entry means the identity is offline.
func (r *Registry) Lookup(identity user.Identity) (ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byIdentity[identity]
	return conn, ok
}

// IdentityOf returns the identity registered on conn.
func (r *Registry) IdentityOf(conn ConnID) (user.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byConn[conn]
	return identity, ok
}

// Unregister removes whatever identity conn was registered under and returns it.
// Unknown connections are ignored.
func (r *Registry) Unregister(conn ConnID) (user.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byConn[conn]
	if !ok {
		return "", false
	}

	delete(r.byConn, conn)
	delete(r.byIdentity, identity)

	return identity, true
}

// ListOnline returns a snapshot of the online identities, sorted.
func (r *Registry) ListOnline() []user.Identity {
	r.mu.RLock()
	online := make([]user.Identity, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		online = append(online, identity)
	}
	r.mu.RUnlock()

	sort.Slice(online, func(i, j int) bool { return online[i] < online[j] })
	return online
}

// Len returns the number of online identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byIdentity)
}
