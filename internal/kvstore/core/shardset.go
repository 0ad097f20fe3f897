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

package core

import (
	"context"
	"errors"
	"sync"

	"kvshard/pkg/kvwire"
)

// ErrShardSetClosed is returned by Dispatch when a command is submitted
// after the owning ShardSet has been stopped.
var ErrShardSetClosed = errors.New("core: shard set closed")

// ShardSet holds the N independent shards that together own the whole key
// space, plus the Assigner used to route a key to its shard.
type ShardSet struct {
	shards   []*Shard
	assigner Assigner

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// NewShardSet builds N shards (N = assigner.NumShards()), each with the given
// inbox capacity, but does not start their worker goroutines -- call Start.
func NewShardSet(assigner Assigner, inboxCap int, metrics *Metrics) *ShardSet {
	n := assigner.NumShards()
	shards := make([]*Shard, n)
	for i := 0; i < n; i++ {
		shards[i] = NewShard(i, inboxCap, metrics)
	}
	return &ShardSet{
		shards:   shards,
		assigner: assigner,
		closed:   make(chan struct{}),
	}
}

// Start launches one worker goroutine per shard.
func (ss *ShardSet) Start() {
	for _, s := range ss.shards {
		ss.wg.Add(1)
		shard := s
		go func() {
			defer ss.wg.Done()
			shard.Run()
		}()
	}
}

// Stop closes every shard's inbox and waits for its worker to drain and
// exit. It must only be called once all dispatchers (connection readers)
// have stopped sending, or Dispatch will be sending on a channel whose
// consumer is about to disappear. cmd/kvserver calls Stop after its
// connections have drained or its shutdown grace period has elapsed,
// whichever comes first.
func (ss *ShardSet) Stop() {
	ss.once.Do(func() {
		close(ss.closed)
		for _, s := range ss.shards {
			close(s.inbox)
		}
	})
	ss.wg.Wait()
}

// NumShards returns N.
func (ss *ShardSet) NumShards() int { return len(ss.shards) }

// Shard returns the shard at index i, for diagnostics and tests.
func (ss *ShardSet) Shard(i int) *Shard { return ss.shards[i] }

// Dispatch is the thin glue function described by the spec's Dispatcher
// component: compute the owning shard, enqueue the work item, block if the
// shard's inbox is full (this is the backpressure path), and fail fast if
// the set has been stopped out from under an in-flight connection.
func Dispatch(ctx context.Context, ss *ShardSet, cmd *kvwire.Command, respC chan<- kvwire.Response) error {
	idx := ss.assigner.Assign(cmd.Key)
	item := WorkItem{Cmd: cmd, RespC: respC, Done: ctx.Done()}
	select {
	case ss.shards[idx].inbox <- item:
		return nil
	case <-ss.closed:
		return ErrShardSetClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
