// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// RedisPingRetries bounds how many times OpenRedis re-pings a server that is
// still starting.
const RedisPingRetries = 5

// OpenRedis connects to the redis server at addr and waits until it answers
// a ping, backing off exponentially between attempts.
func OpenRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})

	backoff := retry.WithMaxRetries(RedisPingRetries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = rdb.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", addr).
			With("retries", RedisPingRetries).
			Wrap(err)
	}
	return rdb, nil
}
