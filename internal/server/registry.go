package server

import (
	"net"
	"sync"
)

// Registry tracks live client sessions by session ID. It backs the admin
// stats endpoint and lets shutdown force-close lingering connections.
type Registry struct {
	mu     sync.RWMutex
	active map[string]net.Conn
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]net.Conn)}
}

// Register adds a session's connection.
func (r *Registry) Register(sessionID string, conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[sessionID] = conn
}

// Unregister removes a session.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// CloseAll force-closes every live connection. Used on shutdown after the
// grace period expires.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, conn := range r.active {
		_ = conn.Close()
		delete(r.active, id)
	}
}
