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
	"path/filepath"
	"testing"
)

func TestFileSnapshotter_AppendsAndFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	s, err := NewFileSnapshotter(path)
	if err != nil {
		t.Fatalf("NewFileSnapshotter: %v", err)
	}

	counts := []KeyCount{{ShardID: 0, Keys: 3}, {ShardID: 1, Keys: 5}}
	if err := s.Snapshot(context.Background(), counts); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := ReadAllSnapshots(path)
	if err != nil {
		t.Fatalf("ReadAllSnapshots: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if len(recs[0].Counts) != 2 || recs[0].Counts[1].Keys != 5 {
		t.Fatalf("unexpected record: %+v", recs[0])
	}
}

func TestFileSnapshotter_RejectsCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	s, err := NewFileSnapshotter(path)
	if err != nil {
		t.Fatalf("NewFileSnapshotter: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Snapshot(ctx, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestFileSnapshotter_MultipleAppendsOrderPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	s, err := NewFileSnapshotter(path)
	if err != nil {
		t.Fatalf("NewFileSnapshotter: %v", err)
	}

	for i := 0; i < 3; i++ {
		counts := []KeyCount{{ShardID: 0, Keys: i}}
		if err := s.Snapshot(context.Background(), counts); err != nil {
			t.Fatalf("Snapshot %d: %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := ReadAllSnapshots(path)
	if err != nil {
		t.Fatalf("ReadAllSnapshots: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if rec.Counts[0].Keys != i {
			t.Fatalf("record %d: got Keys=%d, want %d", i, rec.Counts[0].Keys, i)
		}
	}
}
