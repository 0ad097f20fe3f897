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
	"time"
)

// LoggingSnapshotter is a dependency-free demo snapshotter: it prints the
// per-shard key counts to stdout, the same role LoggingRedisEvaler plays for
// the teacher's persistence adapters -- lets an operator select the
// snapshotter without standing up real infrastructure.
type LoggingSnapshotter struct{}

func (LoggingSnapshotter) Snapshot(ctx context.Context, counts []KeyCount) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	total := 0
	for _, c := range counts {
		total += c.Keys
	}
	fmt.Printf("[%s] snapshot: %d shards, %d keys total\n", time.Now().Format(time.RFC3339), len(counts), total)
	for _, c := range counts {
		fmt.Printf("  - shard %-4d keys=%d\n", c.ShardID, c.Keys)
	}
	return nil
}
