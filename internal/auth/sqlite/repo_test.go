// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/syncgate/internal/auth"
	"github.com/holomush/syncgate/internal/auth/sqlite"
	"github.com/holomush/syncgate/internal/store"
	"github.com/holomush/syncgate/pkg/errutil"
)

func newRepo(t *testing.T) *sqlite.CredentialRepository {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), slog.New(slog.DiscardHandler),
		filepath.Join(t.TempDir(), "users.db"), store.SQLiteUsers)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewCredentialRepository(db)
}

func TestCredentialRepository_Get(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.Get(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	created, err := repo.CreateIfAbsent(ctx, "alice", "hash1")
	require.NoError(t, err)
	assert.True(t, created)

	hash, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash1", hash)
}

func TestCredentialRepository_CreateIfAbsentKeepsFirst(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	created, err := repo.CreateIfAbsent(ctx, "alice", "hash1")
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, "alice", "hash2")
	require.NoError(t, err)
	assert.False(t, created)

	hash, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash1", hash)
}

func TestCredentialRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.CreateIfAbsent(ctx, "alice", "hash1")
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "alice"))

	_, err = repo.Get(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	assert.NoError(t, repo.Delete(ctx, "alice"), "deleting an absent user is not an error")
}

func TestCredentialRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	var wg sync.WaitGroup
	var wins atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.CreateIfAbsent(ctx, "alice", "hash")
			assert.NoError(t, err)
			if created {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestCredentialRepository_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, slog.New(slog.DiscardHandler),
		filepath.Join(t.TempDir(), "users.db"), store.SQLiteUsers)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	repo := sqlite.NewCredentialRepository(db)

	_, err = repo.Get(ctx, "alice")
	errutil.AssertErrorCode(t, err, "USERS_QUERY_FAILED")

	_, err = repo.CreateIfAbsent(ctx, "alice", "h")
	errutil.AssertErrorCode(t, err, "USERS_INSERT_FAILED")

	err = repo.Delete(ctx, "alice")
	errutil.AssertErrorCode(t, err, "USERS_DELETE_FAILED")
}

func TestCredentialRepository_WithCredentialStore(t *testing.T) {
	ctx := context.Background()
	hasher, err := auth.NewBcryptHasher(4)
	require.NoError(t, err)
	credStore, err := auth.NewCredentialStore(newRepo(t), hasher)
	require.NoError(t, err)

	_, err = credStore.AddUser(ctx, "alice", "pw1")
	require.NoError(t, err)
	ok, err := credStore.VerifyUser(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.True(t, ok)
}
