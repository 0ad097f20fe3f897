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
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// snapshotRecord is one line of the JSONL snapshot log.
type snapshotRecord struct {
	Time   time.Time  `json:"time"`
	Counts []KeyCount `json:"counts"`
}

// FileSnapshotter appends each tick's per-shard key counts to a JSONL file
// for warm-restart visibility and offline inspection, with periodic flush so
// a crash loses at most a fraction of a second of ticks.
type FileSnapshotter struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	lastFlush time.Time
}

// NewFileSnapshotter opens (or creates) the file at path in append mode with
// a buffered writer. Call Close when done.
func NewFileSnapshotter(path string) (*FileSnapshotter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSnapshotter{f: f, w: bufio.NewWriterSize(f, 1<<20), lastFlush: time.Now()}, nil
}

// Snapshot appends one JSONL record and flushes at most every 100ms, so a
// burst of ticks under load does not thrash the underlying file.
func (s *FileSnapshotter) Snapshot(ctx context.Context, counts []KeyCount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := snapshotRecord{Time: time.Now(), Counts: counts}
	if err := json.NewEncoder(s.w).Encode(&rec); err != nil {
		return err
	}
	if time.Since(s.lastFlush) > 100*time.Millisecond {
		if err := s.w.Flush(); err != nil {
			return err
		}
		s.lastFlush = time.Now()
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSnapshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}

// ReadAllSnapshots reads every record from a snapshot log in order, for
// offline replay or inspection.
func ReadAllSnapshots(path string) ([]snapshotRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []snapshotRecord
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1<<20)
	scanner.Buffer(buf, 1<<26)
	for scanner.Scan() {
		var rec snapshotRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out, scanner.Err()
}
