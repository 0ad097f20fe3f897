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
	"path/filepath"
	"testing"
)

func TestBuild_None(t *testing.T) {
	s, err := Build("none", "", "")
	if err != nil || s != nil {
		t.Fatalf("got %v, %v", s, err)
	}
}

func TestBuild_Logging(t *testing.T) {
	s, err := Build("logging", "", "")
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if _, ok := s.(LoggingSnapshotter); !ok {
		t.Fatalf("got %T, want LoggingSnapshotter", s)
	}
}

func TestBuild_RedisRequiresAddr(t *testing.T) {
	_, err := Build("redis", "", "")
	if err == nil {
		t.Fatal("expected error for missing redis_addr")
	}
}

func TestBuild_RedisWithAddr(t *testing.T) {
	s, err := Build("redis", "127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if _, ok := s.(*RedisSnapshotter); !ok {
		t.Fatalf("got %T, want *RedisSnapshotter", s)
	}
}

func TestBuild_FileRequiresPath(t *testing.T) {
	_, err := Build("file", "", "")
	if err == nil {
		t.Fatal("expected error for missing snapshot_path")
	}
}

func TestBuild_FileWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	s, err := Build("file", "", path)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	fs, ok := s.(*FileSnapshotter)
	if !ok {
		t.Fatalf("got %T, want *FileSnapshotter", s)
	}
	defer fs.Close()
}

func TestBuild_Unknown(t *testing.T) {
	_, err := Build("bogus", "", "")
	if err == nil {
		t.Fatal("expected error for unknown selector")
	}
}
