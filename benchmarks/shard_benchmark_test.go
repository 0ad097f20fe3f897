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

package benchmarks

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"kvshard/internal/kvstore/core"
	"kvshard/pkg/kvwire"
)

// globalReqID hands out unique request IDs across all benchmark goroutines.
var globalReqID atomic.Uint64

// dispatchAndWait submits one SET and blocks for its reply, the unit of work
// a connection's reader performs per decoded command.
func dispatchAndWait(ss *core.ShardSet, reqID uint32, key, value []byte) kvwire.Response {
	respC := make(chan kvwire.Response, 1)
	cmd := &kvwire.Command{Opcode: kvwire.OpSet, ReqID: reqID, Key: key, Value: value}
	if err := core.Dispatch(context.Background(), ss, cmd, respC); err != nil {
		panic(err)
	}
	return <-respC
}

// BenchmarkShardSet_HotKey hammers a single key from every goroutine, so
// every command lands on the same shard and the benchmark measures how fast
// one shard's worker loop can drain its inbox under contention.
func BenchmarkShardSet_HotKey(b *testing.B) {
	ss := core.NewShardSet(core.NewModuloAssigner(8), 256, nil)
	ss.Start()
	defer ss.Stop()

	value := make([]byte, 32)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		id := globalReqID.Add(1)
		for pb.Next() {
			resp := dispatchAndWait(ss, uint32(id), []byte("hot-key"), value)
			if resp.Status != kvwire.StatusOK {
				b.Fatalf("unexpected status %d", resp.Status)
			}
			id++
		}
	})
}

// BenchmarkShardSet_ManyKeys spreads commands across a pool of keys, the
// common case where shards run close to independently and the benchmark
// measures the ShardSet's aggregate throughput rather than one worker's.
func BenchmarkShardSet_ManyKeys(b *testing.B) {
	ss := core.NewShardSet(core.NewModuloAssigner(8), 256, nil)
	ss.Start()
	defer ss.Stop()

	const numKeys = 4096
	keys := make([][]byte, numKeys)
	for i := range keys {
		keys[i] = []byte("user-key-" + strconv.Itoa(i))
	}
	value := make([]byte, 32)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		id := globalReqID.Add(1)
		for pb.Next() {
			key := keys[id%uint64(numKeys)]
			resp := dispatchAndWait(ss, uint32(id), key, value)
			if resp.Status != kvwire.StatusOK {
				b.Fatalf("unexpected status %d", resp.Status)
			}
			id++
		}
	})
}

// BenchmarkShardSet_ManyKeys_Rendezvous repeats BenchmarkShardSet_ManyKeys
// with the rendezvous assigner, to compare its per-key hashing cost against
// the modulo assigner's under identical traffic.
func BenchmarkShardSet_ManyKeys_Rendezvous(b *testing.B) {
	ss := core.NewShardSet(core.NewRendezvousAssigner(8), 256, nil)
	ss.Start()
	defer ss.Stop()

	const numKeys = 4096
	keys := make([][]byte, numKeys)
	for i := range keys {
		keys[i] = []byte("user-key-" + strconv.Itoa(i))
	}
	value := make([]byte, 32)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		id := globalReqID.Add(1)
		for pb.Next() {
			key := keys[id%uint64(numKeys)]
			resp := dispatchAndWait(ss, uint32(id), key, value)
			if resp.Status != kvwire.StatusOK {
				b.Fatalf("unexpected status %d", resp.Status)
			}
			id++
		}
	})
}
