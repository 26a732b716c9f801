// Package realtime is the socket side of the backend: the presence
// registry, the hub that routes chat/match events, and the websocket
// transport.
package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Presence is the in-memory bidirectional map between authenticated user
// ids and live connection ids.
//
// It is an explicitly constructed object, not package state: the server
// builds one at startup, tests build as many isolated instances as they
// like. Entries exist only while a connection is up — nothing persists,
// and a process restart starts from empty.
//
// At most ONE deliverable connection per user: a second device
// authenticating silently replaces the first. That's a known limitation
// of the delivery model, not a feature.
//
// Unlike the single-threaded runtime this design came from, connection
// handlers here run on their own goroutines, so the maps take a mutex.
type Presence struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]string
	byConn map[string]uuid.UUID
}

func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[uuid.UUID]string),
		byConn: make(map[string]uuid.UUID),
	}
}

// Register binds a user to a connection, replacing any previous binding
// on either side. It returns the connection id that was displaced, if
// any, so the hub can tell the old device it lost the slot.
func (p *Presence) Register(userID uuid.UUID, connID string) (displaced string, hadPrevious bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.byUser[userID]; ok && old != connID {
		delete(p.byConn, old)
		displaced, hadPrevious = old, true
	}
	// The connection may have authenticated as someone else before.
	if oldUser, ok := p.byConn[connID]; ok && oldUser != userID {
		delete(p.byUser, oldUser)
	}

	p.byUser[userID] = connID
	p.byConn[connID] = userID
	return displaced, hadPrevious
}

// Unregister removes both directions of the mapping for a connection.
// Called on disconnect. Reports which user (if any) was bound.
func (p *Presence) Unregister(connID string) (userID uuid.UUID, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok = p.byConn[connID]
	if !ok {
		return uuid.Nil, false
	}
	delete(p.byConn, connID)
	// Only drop the user side if it still points at THIS connection —
	// a newer device may have already taken the slot.
	if p.byUser[userID] == connID {
		delete(p.byUser, userID)
	}
	return userID, true
}

// ConnFor returns the live connection id for a user, if one exists.
func (p *Presence) ConnFor(userID uuid.UUID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byUser[userID]
	return id, ok
}

// UserFor returns the authenticated user behind a connection, if any.
func (p *Presence) UserFor(connID string) (uuid.UUID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byConn[connID]
	return id, ok
}
