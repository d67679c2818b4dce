// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis stores credentials as plain string keys in Redis.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/auth"
)

// DefaultPrefix namespaces credential keys.
const DefaultPrefix = "syncgate:users:"

// CredentialRepository implements auth.CredentialRepository with one key per user.
type CredentialRepository struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewCredentialRepository creates a repository storing keys under prefix.
// An empty prefix selects DefaultPrefix.
func NewCredentialRepository(rdb goredis.UniversalClient, prefix string) *CredentialRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CredentialRepository{rdb: rdb, prefix: prefix}
}

func (r *CredentialRepository) key(username string) string {
	return r.prefix + username
}

// Get returns the stored hash for username.
func (r *CredentialRepository) Get(ctx context.Context, username string) (string, error) {
	hash, err := r.rdb.Get(ctx, r.key(username)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", oops.Code("USERS_QUERY_FAILED").
			With("backend", "redis").
			With("username", username).
			Wrap(err)
	}
	return hash, nil
}

// CreateIfAbsent stores the credential with SETNX.
func (r *CredentialRepository) CreateIfAbsent(ctx context.Context, username, hash string) (bool, error) {
	created, err := r.rdb.SetNX(ctx, r.key(username), hash, 0).Result()
	if err != nil {
		return false, oops.Code("USERS_INSERT_FAILED").
			With("backend", "redis").
			With("username", username).
			Wrap(err)
	}
	return created, nil
}

// Delete removes the credential key.
func (r *CredentialRepository) Delete(ctx context.Context, username string) error {
	if err := r.rdb.Del(ctx, r.key(username)).Err(); err != nil {
		return oops.Code("USERS_DELETE_FAILED").
			With("backend", "redis").
			With("username", username).
			Wrap(err)
	}
	return nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
