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

// Package persistence provides an optional, disabled-by-default hook that
// periodically snapshots per-shard key counts for warm-restart visibility.
// It never sits on the request hot path and the store never blocks on it:
// a Snapshotter failing or stalling has no effect on GET/SET/DELETE
// latency or correctness.
package persistence

import "context"

// KeyCount is one shard's key count at the moment of a snapshot tick.
type KeyCount struct {
	ShardID int
	Keys    int
}

// Snapshotter receives a full set of per-shard key counts on each tick. It
// must not block the caller for long; the driver in cmd/kvserver runs it on
// its own ticker goroutine, off the shard workers and off any connection.
type Snapshotter interface {
	Snapshot(ctx context.Context, counts []KeyCount) error
}
