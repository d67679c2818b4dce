// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package syncpeer

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// subscriber is one peer's outbox.
type subscriber struct {
	id ulid.ULID
	ch chan []byte
}

// broadcaster fans frames out to the subscribers of an entity.
type broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[ulid.ULID]*subscriber
	logger *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		subs:   make(map[string]map[ulid.ULID]*subscriber),
		logger: logger,
	}
}

func (b *broadcaster) subscribe(entityID string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[entityID] == nil {
		b.subs[entityID] = make(map[ulid.ULID]*subscriber)
	}
	b.subs[entityID][sub.id] = sub
}

func (b *broadcaster) unsubscribe(entityID string, id ulid.ULID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[entityID], id)
	if len(b.subs[entityID]) == 0 {
		delete(b.subs, entityID)
	}
}

func (b *broadcaster) subscribers(entityID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[entityID])
}

// broadcast queues frame for every subscriber of entityID except the sender.
// A subscriber whose outbox is full misses the frame.
func (b *broadcaster) broadcast(entityID string, frame []byte, sender ulid.ULID) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs[entityID] {
		if id == sender {
			continue
		}
		select {
		case sub.ch <- frame:
		default:
			b.logger.Warn("update dropped: subscriber outbox full",
				"entity_id", entityID,
				"peer_id", id.String(),
			)
		}
	}
}
