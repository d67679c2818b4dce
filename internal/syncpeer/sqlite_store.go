// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package syncpeer

import (
	"context"
	"database/sql"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/ids"
)

// SQLiteStore is an UpdateStore on the updates table of a database opened
// with store.OpenSQLite(..., store.SQLiteSync).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append implements UpdateStore.
func (s *SQLiteStore) Append(ctx context.Context, entityID string, payload []byte, author string) (Update, error) {
	u := Update{
		ID:        ids.New(),
		EntityID:  entityID,
		Payload:   payload,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO updates (id, entity_id, payload, author, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID.String(), entityID, payload, author, u.CreatedAt)
	if err != nil {
		return Update{}, oops.Code("UPDATE_APPEND_FAILED").
			With("entity_id", entityID).
			Wrap(err)
	}
	return u, nil
}

// List implements UpdateStore. ULIDs sort by creation, so id order is append order.
func (s *SQLiteStore) List(ctx context.Context, entityID string) ([]Update, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, author, created_at FROM updates WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, oops.Code("UPDATE_LIST_FAILED").With("entity_id", entityID).Wrap(err)
	}
	defer rows.Close()

	var out []Update
	for rows.Next() {
		var (
			u     Update
			idStr string
		)
		if err := rows.Scan(&idStr, &u.Payload, &u.Author, &u.CreatedAt); err != nil {
			return nil, oops.Code("UPDATE_LIST_FAILED").With("entity_id", entityID).Wrap(err)
		}
		u.ID, err = ids.Parse(idStr)
		if err != nil {
			return nil, oops.Code("UPDATE_LIST_FAILED").
				With("entity_id", entityID).
				With("operation", "parse id").
				Wrap(err)
		}
		u.EntityID = entityID
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("UPDATE_LIST_FAILED").With("entity_id", entityID).Wrap(err)
	}
	return out, nil
}

var (
	_ UpdateStore = (*SQLiteStore)(nil)
	_ UpdateStore = (*MemoryStore)(nil)
)
