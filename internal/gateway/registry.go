package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the per-instance connection directory: user_id -> live
// connections. It is deliberately not shared across instances (spec §5) —
// cross-instance fan-out happens through internal/bus, never shared memory.
//
// Grounded on the reference chat server's per-session bookkeeping, adapted
// per the spec's "small vector protected by fine-grained locking"
// requirement: a RWMutex-guarded map rather than a channel-actor per user.
type Registry struct {
	mu    sync.RWMutex
	byUser map[uuid.UUID][]*Connection
}

// NewRegistry builds an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[uuid.UUID][]*Connection)}
}

// Add inserts a connection, displacing (and returning, for the caller to
// close with closeReplaced) any existing connection for the same
// (user, device) pair.
func (r *Registry) Add(c *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byUser[c.UserID]
	var displaced *Connection
	kept := conns[:0]
	for _, existing := range conns {
		if existing.DeviceID == c.DeviceID {
			displaced = existing
			continue
		}
		kept = append(kept, existing)
	}
	r.byUser[c.UserID] = append(kept, c)

	return displaced
}

// Remove deletes a connection from the registry. It is a no-op if the
// connection is not present (already removed by a later Add).
func (r *Registry) Remove(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byUser[c.UserID]
	for i, existing := range conns {
		if existing.ID == c.ID {
			r.byUser[c.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(r.byUser[c.UserID]) == 0 {
		delete(r.byUser, c.UserID)
	}
}

// ConnectionsFor returns a snapshot of a user's live connections. The
// returned slice is safe to range over without holding the registry lock.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	out := make([]*Connection, len(conns))
	copy(out, conns)
	return out
}

// IsOnline reports whether a user has at least one live connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Snapshot returns every live connection, for the heartbeat sweeper.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Connection
	for _, conns := range r.byUser {
		all = append(all, conns...)
	}
	return all
}
