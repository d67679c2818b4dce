// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite stores credentials in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/auth"
)

// CredentialRepository implements auth.CredentialRepository on the users table.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository wraps a handle opened with store.OpenSQLite(..., store.SQLiteUsers).
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get returns the stored hash for username.
func (r *CredentialRepository) Get(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", oops.Code("USERS_QUERY_FAILED").
			With("backend", "sqlite").
			With("username", username).
			Wrap(err)
	}
	return hash, nil
}

// CreateIfAbsent inserts the credential unless the username is taken.
func (r *CredentialRepository) CreateIfAbsent(ctx context.Context, username, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?) ON CONFLICT (username) DO NOTHING`,
		username, hash)
	if err != nil {
		return false, oops.Code("USERS_INSERT_FAILED").
			With("backend", "sqlite").
			With("username", username).
			Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, oops.Code("USERS_INSERT_FAILED").
			With("backend", "sqlite").
			With("operation", "rows affected").
			Wrap(err)
	}
	return n == 1, nil
}

// Delete removes the credential for username, if present.
func (r *CredentialRepository) Delete(ctx context.Context, username string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		return oops.Code("USERS_DELETE_FAILED").
			With("backend", "sqlite").
			With("username", username).
			Wrap(err)
	}
	return nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
