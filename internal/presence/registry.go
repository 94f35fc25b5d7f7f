// Package presence tracks which users currently hold an open realtime
// connection on this process.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is a live connection the registry can route to. The registry never
// owns it: the transport creates it on connect and must call Unregister
// when it goes away.
//
// Implementations must be comparable (pointer types are): Unregister finds
// the entry by handle identity.
type Conn interface {
	Emit(event string, payload any) error
}

// Registry maps a user to the connection that most recently announced that
// user. One entry per user; a second session for the same user replaces the
// first as routing target.
//
// All methods hold mu for their whole scan-and-mutate, so a lookup never
// observes a half-applied register/unregister.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Conn

	// onChange, when set, is called with the entry count after each
	// mutation, while mu is held, so successive calls never go backwards.
	onChange func(online int)
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]Conn)}
}

// OnChange installs a hook called after every mutation with the new count.
// The hook runs under the registry lock: it must be quick and must not call
// back into the Registry.
func (r *Registry) OnChange(fn func(online int)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Register associates userID with conn, overwriting any previous handle.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[userID] = conn
	r.changed()
}

// Lookup returns the handle registered for userID.
func (r *Registry) Lookup(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.entries[userID]
	return conn, ok
}

// Unregister removes the entry whose handle is conn and returns the user it
// belonged to. It matches by handle, not by user id: when an older duplicate
// connection closes after a newer one registered, the newer entry must
// survive. No-op if conn is not registered.
func (r *Registry) Unregister(conn Conn) (uuid.UUID, bool) {
	if conn == nil {
		return uuid.Nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.entries {
		if c == conn {
			delete(r.entries, id)
			r.changed()
			return id, true
		}
	}
	return uuid.Nil, false
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// changed runs the hook. Callers hold mu.
func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange(len(r.entries))
	}
}
