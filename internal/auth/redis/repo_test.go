// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/syncgate/internal/auth"
	"github.com/holomush/syncgate/internal/auth/redis"
	"github.com/holomush/syncgate/pkg/errutil"
)

func newRepo(t *testing.T, prefix string) (*redis.CredentialRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.NewCredentialRepository(rdb, prefix), mr
}

func TestCredentialRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t, "")

	_, err := repo.Get(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	created, err := repo.CreateIfAbsent(ctx, "alice", "hash1")
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := mr.Get(redis.DefaultPrefix + "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash1", stored)

	created, err = repo.CreateIfAbsent(ctx, "alice", "hash2")
	require.NoError(t, err)
	assert.False(t, created)

	hash, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash1", hash)

	require.NoError(t, repo.Delete(ctx, "alice"))
	require.NoError(t, repo.Delete(ctx, "alice"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"alice"))
}

func TestCredentialRepository_CustomPrefix(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t, "tenant-a:")

	_, err := repo.CreateIfAbsent(ctx, "alice", "hash1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("tenant-a:alice"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"alice"))
}

func TestCredentialRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t, "")

	var wg sync.WaitGroup
	var wins atomic.Int32
	for range 16 {
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

func TestCredentialRepository_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := redis.NewCredentialRepository(rdb, "")
	mr.Close()

	_, err = repo.Get(ctx, "alice")
	errutil.AssertErrorCode(t, err, "USERS_QUERY_FAILED")

	_, err = repo.CreateIfAbsent(ctx, "alice", "h")
	errutil.AssertErrorCode(t, err, "USERS_INSERT_FAILED")

	err = repo.Delete(ctx, "alice")
	errutil.AssertErrorCode(t, err, "USERS_DELETE_FAILED")
}
