package registry

import "sync"

// Conn is the registry's view of one live transport binding. The concrete
// connection type lives in the server package; the registry only needs a
// stable identity to tell bindings apart and never touches the transport.
type Conn interface {
	ConnID() string
}

// ConnRegistry is the authoritative map from online user id to its single
// live connection. "Not found" is a normal outcome (the user is offline),
// never an error.
type ConnRegistry interface {
	// Bind registers conn as the one live connection for userID. If a
	// connection was already bound it is atomically replaced and returned
	// so the caller can close it without emitting a spurious offline event.
	Bind(userID string, conn Conn) (prior Conn)
	// Unbind removes the mapping only if conn is still the registered one.
	// A stale unbind from an already-superseded connection returns false
	// and leaves the newer binding untouched.
	Unbind(userID string, conn Conn) bool
	// Lookup returns the live connection for userID, if any.
	Lookup(userID string) (Conn, bool)
	// IsOnline reports whether userID has a live connection.
	IsOnline(userID string) bool
	// Count returns the number of bound users.
	Count() int
}

// InMemoryRegistry keeps bindings in a mutex-guarded map.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewInMemory creates an empty connection registry.
func NewInMemory() *InMemoryRegistry {
	return &InMemoryRegistry{
		conns: make(map[string]Conn),
	}
}

// Bind installs conn for userID and returns the superseded binding, if any.
func (r *InMemoryRegistry) Bind(userID string, conn Conn) Conn {
	if userID == "" || conn == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.conns[userID]
	r.conns[userID] = conn
	if prior != nil && prior.ConnID() == conn.ConnID() {
		return nil
	}
	return prior
}

// Unbind removes the binding if conn still owns it.
func (r *InMemoryRegistry) Unbind(userID string, conn Conn) bool {
	if userID == "" || conn == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current.ConnID() != conn.ConnID() {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup fetches the live connection for userID.
func (r *InMemoryRegistry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

// IsOnline reports whether userID is currently bound.
func (r *InMemoryRegistry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of bound users.
func (r *InMemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
