package websocket

import (
	"log"
	"sync"

	"chathub/pkg/interfaces"
	"chathub/pkg/types"
)

// Registry tracks live authenticated connections, keyed by connection ID. A
// user with several simultaneous sessions holds one entry per connection;
// nothing here is persisted, and a restart rebuilds presence from zero.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]interfaces.Connection            // connID -> Connection
	byUser      map[string]map[string]interfaces.Connection // userID -> connID -> Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		byUser:      make(map[string]map[string]interfaces.Connection),
	}
}

// Register adds an authenticated connection to the presence maps.
func (r *Registry) Register(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	userID := conn.Identity().UserID

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID()] = conn
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]interfaces.Connection)
	}
	r.byUser[userID][conn.ID()] = conn

	return nil
}

// Unregister removes a connection and reports whether it was registered.
// Idempotent; unregistering twice removes nothing the second time.
func (r *Registry) Unregister(conn interfaces.Connection) bool {
	if conn == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[conn.ID()]
	if !exists || registered != conn {
		return false
	}

	delete(r.connections, conn.ID())

	userID := conn.Identity().UserID
	if conns, ok := r.byUser[userID]; ok {
		delete(conns, conn.ID())
		if len(conns) == 0 {
			delete(r.byUser, userID)
		}
	}

	return true
}

// Snapshot returns one presence entry per live connection. Order is
// unspecified; a user connected twice appears twice.
func (r *Registry) Snapshot() []types.OnlineUserEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]types.OnlineUserEntry, 0, len(r.connections))
	for _, conn := range r.connections {
		identity := conn.Identity()
		entries = append(entries, types.OnlineUserEntry{
			UserID:   identity.UserID,
			Nickname: identity.Nickname,
			Username: identity.Username,
		})
	}

	return entries
}

// SendTo delivers a frame to every live connection of the given user.
func (r *Registry) SendTo(userID string, v interface{}) {
	if userID == "" {
		return
	}

	r.mu.RLock()
	conns := make([]interfaces.Connection, 0, len(r.byUser[userID]))
	for _, conn := range r.byUser[userID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(v); err != nil {
			log.Printf("Failed to deliver frame to user %s: %v", userID, err)
		}
	}
}

// Broadcast delivers a frame to every registered connection. Delivery
// continues past individual failures.
func (r *Registry) Broadcast(v interface{}) {
	r.mu.RLock()
	conns := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(v); err != nil {
			log.Printf("Failed to broadcast frame to connection %s: %v", conn.ID(), err)
		}
	}
}

// Stats returns registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"connections":  len(r.connections),
		"online_users": len(r.byUser),
	}
}
