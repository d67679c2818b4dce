// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres stores credentials in a shared PostgreSQL database.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repository uses.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialRepository implements auth.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool poolIface
}

// NewCredentialRepository creates a CredentialRepository. pool is normally a
// *pgxpool.Pool from store.OpenPostgres.
func NewCredentialRepository(pool poolIface) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Get returns the stored hash for username.
func (r *CredentialRepository) Get(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx,
		`SELECT password_hash FROM users WHERE username = $1`, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", oops.Code("USERS_QUERY_FAILED").
			With("backend", "postgres").
			With("username", username).
			Wrap(err)
	}
	return hash, nil
}

// CreateIfAbsent inserts the credential. A unique violation means another
// writer already owns the username and is reported as created=false.
func (r *CredentialRepository) CreateIfAbsent(ctx context.Context, username, hash string) (bool, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2)`, username, hash)
	if err == nil {
		return true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return false, nil
	}
	return false, oops.Code("USERS_INSERT_FAILED").
		With("backend", "postgres").
		With("username", username).
		Wrap(err)
}

// Delete removes the credential for username, if present.
func (r *CredentialRepository) Delete(ctx context.Context, username string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username); err != nil {
		return oops.Code("USERS_DELETE_FAILED").
			With("backend", "postgres").
			With("username", username).
			Wrap(err)
	}
	return nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
