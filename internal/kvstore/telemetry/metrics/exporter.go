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

// Package metrics provides opt-in Prometheus export of the shard set's op
// counters and per-shard inbox depth. Unlike the teacher's churn package,
// this exporter has no sampling, no rolling-window KPIs, and no periodic log
// summary -- the store's counters are cheap enough to export in full and the
// operational question here is simple capacity/backpressure visibility, not
// a write-reduction KPI. See DESIGN.md for why the simplification is safe.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kvshard/internal/kvstore/core"
)

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kvshard_ops_total",
		Help: "Total operations processed, by opcode and resulting status",
	}, []string{"op", "status"})

	shardPanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kvshard_shard_panics_total",
		Help: "Total shard worker panics observed",
	})

	shardInboxDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kvshard_shard_inbox_depth",
		Help: "Number of work items currently queued per shard",
	}, []string{"shard"})
)

func init() {
	prometheus.MustRegister(opsTotal, shardPanicsTotal, shardInboxDepth)
}

// Handler returns the promhttp handler for mounting on a mux.
func Handler() http.Handler { return promhttp.Handler() }

// ListenAndServe starts a dedicated HTTP server exposing /metrics on addr.
// It runs until the process exits; the error from http.Server.ListenAndServe
// is delivered on the returned channel, where cmd/kvserver logs it.
func ListenAndServe(addr string) <-chan error {
	errc := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		errc <- server.ListenAndServe()
	}()
	return errc
}

// ticker is a small background loop that snapshots the last-observed
// counter deltas from a core.Metrics into the Prometheus counters, and polls
// each shard's inbox depth into the depth gauge. Per-shard key counts are not
// exported.
type ticker struct {
	shards   *core.ShardSet
	m        *core.Metrics
	interval time.Duration
	stop     chan struct{}
	last     core.Snapshot
}

// StartShardSetExporter launches a background goroutine that periodically
// copies ShardSet/Metrics state into the package's Prometheus collectors.
// Call the returned stop function during shutdown.
func StartShardSetExporter(shards *core.ShardSet, m *core.Metrics, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Second
	}
	t := &ticker{shards: shards, m: m, interval: interval, stop: make(chan struct{})}
	go t.run()
	return func() { close(t.stop) }
}

func (t *ticker) run() {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			t.tick()
		case <-t.stop:
			return
		}
	}
}

func (t *ticker) tick() {
	if t.m != nil {
		cur := t.m.Snapshot()
		addCounterDeltas(t.last, cur)
		t.last = cur
	}
	if t.shards == nil {
		return
	}
	for i := 0; i < t.shards.NumShards(); i++ {
		s := t.shards.Shard(i)
		shardInboxDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(s.InboxDepth()))
	}
}

func addCounterDeltas(prev, cur core.Snapshot) {
	if d := cur.Gets - prev.Gets; d > 0 {
		opsTotal.WithLabelValues("get", "total").Add(float64(d))
	}
	if d := cur.Sets - prev.Sets; d > 0 {
		opsTotal.WithLabelValues("set", "total").Add(float64(d))
	}
	if d := cur.Deletes - prev.Deletes; d > 0 {
		opsTotal.WithLabelValues("delete", "total").Add(float64(d))
	}
	if d := cur.OK - prev.OK; d > 0 {
		opsTotal.WithLabelValues("any", "ok").Add(float64(d))
	}
	if d := cur.NotFound - prev.NotFound; d > 0 {
		opsTotal.WithLabelValues("any", "not_found").Add(float64(d))
	}
	if d := cur.Err - prev.Err; d > 0 {
		opsTotal.WithLabelValues("any", "err").Add(float64(d))
	}
	if d := cur.ShardPanics - prev.ShardPanics; d > 0 {
		shardPanicsTotal.Add(float64(d))
	}
}
