// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// RedisSnapshotter writes each shard's key count into a Redis hash, keyed by
// shard id, so an external process can observe approximate store size
// without reaching into the running server. It uses HSet rather than the
// teacher's Eval-based idempotent commit pattern: a snapshot tick has no
// at-most-once requirement, since the next tick simply overwrites it.
type RedisSnapshotter struct {
	client  *redis.Client
	hashKey string
}

// NewRedisSnapshotter returns a snapshotter backed by github.com/redis/go-redis/v9,
// storing counts under hashKey (e.g. "kvshard:shard_counts").
func NewRedisSnapshotter(addr, hashKey string) *RedisSnapshotter {
	if hashKey == "" {
		hashKey = "kvshard:shard_counts"
	}
	return &RedisSnapshotter{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		hashKey: hashKey,
	}
}

func (r *RedisSnapshotter) Snapshot(ctx context.Context, counts []KeyCount) error {
	if len(counts) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(counts))
	for _, c := range counts {
		fields[fmt.Sprintf("%d", c.ShardID)] = c.Keys
	}
	return r.client.HSet(ctx, r.hashKey, fields).Err()
}

// Close releases the underlying Redis connection pool.
func (r *RedisSnapshotter) Close() error { return r.client.Close() }
