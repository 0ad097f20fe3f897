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

// Package config loads kvserver's startup knobs from CLI flags, with
// environment variables as overrides a deployment can set without touching
// the process's invocation.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Config holds every knob kvserver needs to boot.
type Config struct {
	ListenAddr   string
	MetricsAddr  string
	ShardCount   int
	InboxCap     int
	RespChanCap  int
	MaxFrame     int
	Assigner     string // "modulo" or "rendezvous"
	Snapshotter  string // "none", "logging", "redis", or "file"
	RedisAddr    string
	SnapshotPath string
	ShutdownWait string
}

// Load parses flags from args (pass os.Args[1:]) and applies environment
// variable overrides, then validates the result.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("kvserver", flag.ContinueOnError)

	listenAddr := fs.String("listen_addr", "127.0.0.1:6379", "TCP listen address for the key/value protocol")
	metricsAddr := fs.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	shardCount := fs.Int("shard_count", 6, "Number of independent shard workers")
	inboxCap := fs.Int("inbox_cap", 256, "Per-shard bounded inbox capacity")
	respChanCap := fs.Int("resp_chan_cap", 512, "Per-connection bounded response channel capacity")
	maxFrame := fs.Int("max_frame", 1<<20, "Maximum accepted frame payload size in bytes")
	assigner := fs.String("assigner", "modulo", "Key assignment strategy: modulo or rendezvous")
	snapshotter := fs.String("snapshotter", "none", "Optional snapshot hook: none, logging, redis, or file")
	redisAddr := fs.String("redis_addr", "", "Redis address for the redis snapshotter (e.g., 127.0.0.1:6379)")
	snapshotPath := fs.String("snapshot_path", "", "JSONL output path for the file snapshotter")
	shutdownWait := fs.String("shutdown_wait", "10s", "Grace period for in-flight connections to drain on shutdown")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:   *listenAddr,
		MetricsAddr:  *metricsAddr,
		ShardCount:   *shardCount,
		InboxCap:     *inboxCap,
		RespChanCap:  *respChanCap,
		MaxFrame:     *maxFrame,
		Assigner:     *assigner,
		Snapshotter:  *snapshotter,
		RedisAddr:    *redisAddr,
		SnapshotPath: *snapshotPath,
		ShutdownWait: *shutdownWait,
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides lets a deployment override any flag without touching the
// process's invocation, the way KV_* variables would be set in a container
// environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KV_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("KV_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("KV_SHARD_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ShardCount = n
		}
	}
	if v := os.Getenv("KV_INBOX_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InboxCap = n
		}
	}
	if v := os.Getenv("KV_RESP_CHAN_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RespChanCap = n
		}
	}
	if v := os.Getenv("KV_MAX_FRAME"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFrame = n
		}
	}
	if v := os.Getenv("KV_ASSIGNER"); v != "" {
		cfg.Assigner = v
	}
	if v := os.Getenv("KV_SNAPSHOTTER"); v != "" {
		cfg.Snapshotter = v
	}
	if v := os.Getenv("KV_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("KV_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("KV_SHUTDOWN_WAIT"); v != "" {
		cfg.ShutdownWait = v
	}
}

func (c Config) validate() error {
	if c.ShardCount <= 0 {
		return fmt.Errorf("config: shard_count must be > 0, got %d", c.ShardCount)
	}
	if c.MaxFrame <= 0 {
		return fmt.Errorf("config: max_frame must be > 0, got %d", c.MaxFrame)
	}
	if c.InboxCap <= 0 {
		return fmt.Errorf("config: inbox_cap must be > 0, got %d", c.InboxCap)
	}
	if c.RespChanCap <= 0 {
		return fmt.Errorf("config: resp_chan_cap must be > 0, got %d", c.RespChanCap)
	}
	switch c.Assigner {
	case "modulo", "rendezvous":
	default:
		return fmt.Errorf("config: unknown assigner %q, want modulo or rendezvous", c.Assigner)
	}
	switch c.Snapshotter {
	case "none", "logging", "redis", "file":
	default:
		return fmt.Errorf("config: unknown snapshotter %q, want none, logging, redis, or file", c.Snapshotter)
	}
	return nil
}

// String renders the configuration as a single-line key=value summary for
// startup logging.
func (c Config) String() string {
	return fmt.Sprintf(
		"listen_addr=%s metrics_addr=%s shard_count=%d inbox_cap=%d resp_chan_cap=%d max_frame=%d assigner=%s snapshotter=%s snapshot_path=%s shutdown_wait=%s",
		c.ListenAddr, c.MetricsAddr, c.ShardCount, c.InboxCap, c.RespChanCap, c.MaxFrame, c.Assigner, c.Snapshotter, c.SnapshotPath, c.ShutdownWait,
	)
}
