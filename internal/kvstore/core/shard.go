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
	"sync/atomic"

	"kvshard/pkg/kvwire"
)

// WorkItem is one unit of work enqueued on a shard's inbox: a decoded
// Command, the channel the shard should send its single Response on, and a
// Done signal for the connection that owns RespC.
//
// RespC is buffered by the caller (the connection's response channel), so
// the shard does not block on a healthy connection. Done is closed when the
// connection is tearing down; the shard selects on it so a reply for a
// connection whose writer has already exited is discarded instead of
// blocking the shard worker forever.
type WorkItem struct {
	Cmd   *kvwire.Command
	RespC chan<- kvwire.Response
	Done  <-chan struct{}
}

// Shard owns a disjoint slice of the key space. Its map is touched by exactly
// one goroutine -- its own worker loop -- so it needs no internal locking.
// All cross-goroutine communication happens through Inbox.
type Shard struct {
	id    int
	inbox chan WorkItem
	data  map[string][]byte

	// keyCount mirrors len(data) but is updated with atomics so it can be
	// read safely from any goroutine (the snapshot ticker in particular),
	// without the reader racing the owning worker's map access.
	keyCount atomic.Int64

	metrics *Metrics
}

// NewShard creates a shard with the given bounded inbox capacity. The shard
// does not start processing until Run is called.
func NewShard(id, inboxCap int, metrics *Metrics) *Shard {
	if inboxCap < 1 {
		inboxCap = 1
	}
	return &Shard{
		id:      id,
		inbox:   make(chan WorkItem, inboxCap),
		data:    make(map[string][]byte),
		metrics: metrics,
	}
}

// ID returns the shard's index within its ShardSet.
func (s *Shard) ID() int { return s.id }

// Inbox exposes the shard's work queue to dispatchers. Send handles may be
// shared freely among many goroutines; there is exactly one receiver, Run.
func (s *Shard) Inbox() chan<- WorkItem { return s.inbox }

// Len reports the current key count. Safe to call from any goroutine: it
// reads the atomic mirror of the map's size, not the map itself.
func (s *Shard) Len() int { return int(s.keyCount.Load()) }

// InboxDepth reports the number of work items currently queued. Reading the
// length of a channel is safe from any goroutine; it is a momentary snapshot
// used for the shard-depth gauge in internal/kvstore/telemetry/metrics.
func (s *Shard) InboxDepth() int { return len(s.inbox) }

// Run is the shard's worker loop: it owns s.data for its entire lifetime and
// processes exactly one WorkItem at a time, strictly FIFO, until Inbox is
// closed and drained. A shard never shares its map and never locks.
//
// A panic while handling client input is not expected in steady state (every
// opcode is validated by the decoder before it reaches here); if one occurs
// anyway, Run records it in the shard-panic counter and re-panics rather than
// silently dropping the shard, since a half-processed shard is worse than a
// crashed process a supervisor can restart.
func (s *Shard) Run() {
	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.ObserveShardPanic(s.id)
			}
			panic(r)
		}
	}()
	for item := range s.inbox {
		resp := s.apply(item.Cmd)
		if s.metrics != nil {
			s.metrics.ObserveOp(s.id, item.Cmd.Opcode, resp.Status)
		}
		// The writer may already be gone (connection closed mid-flight).
		// RespC is never closed -- only the shard ever sends on it, so a
		// send can never race a close -- so we select against the
		// connection's Done signal instead of risking an indefinite block.
		select {
		case item.RespC <- resp:
		case <-item.Done:
		}
	}
}

// apply executes exactly one of {insert-or-overwrite, lookup-and-clone,
// remove-and-return} against the shard's own map.
func (s *Shard) apply(cmd *kvwire.Command) kvwire.Response {
	if len(cmd.Key) == 0 {
		return kvwire.Err(cmd.ReqID, "empty key")
	}
	key := string(cmd.Key)

	switch cmd.Opcode {
	case kvwire.OpSet:
		if _, exists := s.data[key]; !exists {
			s.keyCount.Add(1)
		}
		s.data[key] = cmd.Value
		return kvwire.OK(cmd.ReqID, nil)

	case kvwire.OpGet:
		v, ok := s.data[key]
		if !ok {
			return kvwire.NotFound(cmd.ReqID)
		}
		return kvwire.OK(cmd.ReqID, cloneValue(v))

	case kvwire.OpDelete:
		v, ok := s.data[key]
		if !ok {
			return kvwire.NotFound(cmd.ReqID)
		}
		delete(s.data, key)
		s.keyCount.Add(-1)
		return kvwire.OK(cmd.ReqID, cloneValue(v))

	default:
		// Unreachable: the decoder rejects unknown opcodes before a Command
		// is ever constructed.
		return kvwire.Err(cmd.ReqID, "unsupported opcode")
	}
}

// cloneValue returns a snapshot safe to hand to a caller that outlives the
// shard's own mutations: a later SET or DELETE on the same key must never be
// observable through a value already in flight to a client.
func cloneValue(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
