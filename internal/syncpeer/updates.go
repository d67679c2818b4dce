// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package syncpeer

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/syncgate/internal/ids"
)

// Update is one stored mutation.
type Update struct {
	ID        ulid.ULID
	EntityID  string
	Payload   []byte
	Author    string
	CreatedAt time.Time
}

// UpdateStore persists the update log.
type UpdateStore interface {
	// Append stores payload at the end of entityID's log.
	Append(ctx context.Context, entityID string, payload []byte, author string) (Update, error)
	// List returns entityID's log in append order.
	List(ctx context.Context, entityID string) ([]Update, error)
}

// MemoryStore is an UpdateStore that lives only as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	updates map[string][]Update
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{updates: make(map[string][]Update)}
}

// Append implements UpdateStore.
func (s *MemoryStore) Append(_ context.Context, entityID string, payload []byte, author string) (Update, error) {
	u := Update{
		ID:        ids.New(),
		EntityID:  entityID,
		Payload:   bytes.Clone(payload),
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[entityID] = append(s.updates[entityID], u)
	return u, nil
}

// List implements UpdateStore.
func (s *MemoryStore) List(_ context.Context, entityID string) ([]Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Update, len(s.updates[entityID]))
	copy(out, s.updates[entityID])
	return out, nil
}
