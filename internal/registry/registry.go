// Package registry tracks the network connections currently wrapped by the bridge.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/acme/telephony-bridge/internal/telephony"
)

// Observer is notified after membership actually changes. Notifications run
// on the goroutine that mutated the registry, outside the registry lock.
type Observer interface {
	ConnectionRegistered(nc telephony.Connection)
	ConnectionUnregistered(nc telephony.Connection)
}

// Registry is a concurrency-safe set of network connections keyed by identity.
// The zero value is not usable; construct with New.
type Registry struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]telephony.Connection
	observers []Observer
}

// New creates an empty registry.
func New(observers ...Observer) *Registry {
	return &Registry{
		conns:     make(map[uuid.UUID]telephony.Connection),
		observers: observers,
	}
}

// Register adds nc. It reports false if nc was already present.
func (r *Registry) Register(nc telephony.Connection) bool {
	if nc == nil {
		return false
	}
	id := nc.ID()

	r.mu.Lock()
	if _, ok := r.conns[id]; ok {
		r.mu.Unlock()
		return false
	}
	r.conns[id] = nc
	r.mu.Unlock()

	for _, o := range r.observers {
		o.ConnectionRegistered(nc)
	}
	return true
}

// Unregister removes nc. It reports false if nc was absent.
func (r *Registry) Unregister(nc telephony.Connection) bool {
	if nc == nil {
		return false
	}
	id := nc.ID()

	r.mu.Lock()
	if _, ok := r.conns[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	r.mu.Unlock()

	for _, o := range r.observers {
		o.ConnectionUnregistered(nc)
	}
	return true
}

// Contains reports whether nc is currently known.
func (r *Registry) Contains(nc telephony.Connection) bool {
	if nc == nil {
		return false
	}
	r.mu.RLock()
	_, ok := r.conns[nc.ID()]
	r.mu.RUnlock()
	return ok
}

// Lookup returns the known connection with the given id.
func (r *Registry) Lookup(id uuid.UUID) (telephony.Connection, bool) {
	r.mu.RLock()
	nc, ok := r.conns[id]
	r.mu.RUnlock()
	return nc, ok
}

// Len returns the number of known connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the known connections in no particular order.
func (r *Registry) Snapshot() []telephony.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]telephony.Connection, 0, len(r.conns))
	for _, nc := range r.conns {
		out = append(out, nc)
	}
	return out
}
