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

// Package main provides the entry point for kvserver: a sharded, in-memory
// key/value store speaking a small binary protocol over raw TCP.
//
// This file orchestrates the whole process:
//  1. Load configuration from flags and environment.
//  2. Build the shard set and start its worker goroutines.
//  3. Optionally start the Prometheus /metrics endpoint and the shard-set
//     exporter, and an optional snapshot ticker.
//  4. Accept connections and drive each one with its own reader/writer
//     pipeline.
//  5. On SIGINT/SIGTERM, stop accepting, let in-flight connections drain for
//     a bounded grace period, then stop the shard set.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"kvshard/internal/kvstore/config"
	"kvshard/internal/kvstore/conn"
	"kvshard/internal/kvstore/core"
	"kvshard/internal/kvstore/persistence"
	"kvshard/internal/kvstore/telemetry/metrics"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("[kvserver] config: %v", err)
	}
	shutdownWait, err := time.ParseDuration(cfg.ShutdownWait)
	if err != nil {
		log.Fatalf("[kvserver] invalid shutdown_wait: %v", err)
	}

	fmt.Printf("[kvserver] starting with %s\n", cfg)

	var assigner core.Assigner
	switch cfg.Assigner {
	case "rendezvous":
		assigner = core.NewRendezvousAssigner(cfg.ShardCount)
	default:
		assigner = core.NewModuloAssigner(cfg.ShardCount)
	}

	m := core.NewMetrics()
	shards := core.NewShardSet(assigner, cfg.InboxCap, m)
	shards.Start()

	snap, err := persistence.Build(cfg.Snapshotter, cfg.RedisAddr, cfg.SnapshotPath)
	if err != nil {
		log.Fatalf("[kvserver] persistence: %v", err)
	}
	var stopSnapshotTicker func()
	if snap != nil {
		stopSnapshotTicker = startSnapshotTicker(shards, snap, 30*time.Second)
	}

	var stopExporter func()
	if cfg.MetricsAddr != "" {
		stopExporter = metrics.StartShardSetExporter(shards, m, time.Second)
		errc := metrics.ListenAndServe(cfg.MetricsAddr)
		go func() {
			if err := <-errc; err != nil && err != http.ErrServerClosed {
				log.Printf("[kvserver] metrics server: %v", err)
			}
		}()
		fmt.Printf("[kvserver] metrics listening on %s\n", cfg.MetricsAddr)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("[kvserver] listen on %s: %v", cfg.ListenAddr, err)
	}
	fmt.Printf("[kvserver] listening on %s\n", cfg.ListenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	var conns sync.WaitGroup

	go acceptLoop(ctx, ln, shards, cfg, &conns)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\n[kvserver] shutting down...")
	ln.Close()
	cancel()

	drained := make(chan struct{})
	go func() {
		conns.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		fmt.Println("[kvserver] all connections drained")
	case <-time.After(shutdownWait):
		fmt.Println("[kvserver] shutdown grace period elapsed; remaining connections will be dropped")
	}

	if stopExporter != nil {
		stopExporter()
	}
	if stopSnapshotTicker != nil {
		stopSnapshotTicker()
	}
	if closer, ok := snap.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("[kvserver] closing snapshotter: %v", err)
		}
	}
	shards.Stop()

	fmt.Println("[kvserver] stopped.")
}

func acceptLoop(ctx context.Context, ln net.Listener, shards *core.ShardSet, cfg config.Config, conns *sync.WaitGroup) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[kvserver] accept: %v", err)
			continue
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			p := conn.New(ctx, nc, shards, cfg.MaxFrame, cfg.RespChanCap)
			p.Run()
		}()
	}
}

// startSnapshotTicker runs snap.Snapshot on every tick with the current
// per-shard key counts, read via Shard.Len (safe from any goroutine).
func startSnapshotTicker(shards *core.ShardSet, snap persistence.Snapshotter, interval time.Duration) func() {
	stopc := make(chan struct{})
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				counts := make([]persistence.KeyCount, shards.NumShards())
				for i := 0; i < shards.NumShards(); i++ {
					counts[i] = persistence.KeyCount{ShardID: i, Keys: shards.Shard(i).Len()}
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := snap.Snapshot(ctx, counts); err != nil {
					log.Printf("[kvserver] snapshot: %v", err)
				}
				cancel()
			case <-stopc:
				return
			}
		}
	}()
	return func() { close(stopc) }
}
