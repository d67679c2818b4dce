// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Registry tracks live sessions so they can be closed together at shutdown.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[ulid.ULID]*Session)}
}

// Add registers s. It returns a function that closes s and removes it.
func (r *Registry) Add(s *Session) (release func()) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.sessions, s.ID())
		r.mu.Unlock()
		s.Close()
	}
}

// Get returns the live session with id, or nil.
func (r *Registry) Get(id ulid.ULID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every registered session and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[ulid.ULID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
