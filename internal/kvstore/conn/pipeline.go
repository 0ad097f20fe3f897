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

// Package conn drives a single client socket: a reader goroutine that decodes
// and dispatches commands, and a writer goroutine that batches and flushes
// responses, exactly the split described for the connection pipeline. Reader
// and writer are cooperatively torn down through one context per connection
// rather than by closing the response channel -- the shard that owns the
// channel's send side must never observe a closed channel, only a cancelled
// Done signal.
package conn

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"time"

	"kvshard/internal/kvstore/core"
	"kvshard/pkg/kvwire"
)

// RespChanCap is the default capacity of a connection's response channel.
const RespChanCap = 512

// ReadBufSize is the size of the chunk read from the socket per Read call and
// of the writer's buffer. It is smaller than the default maximum frame: a
// larger frame is assembled across several reads in the decoder's own
// buffer, which starts empty and grows as needed.
const ReadBufSize = 64 * 1024

var logger = log.New(log.Writer(), "[conn] ", log.LstdFlags)

// Pipeline owns one accepted socket for its whole lifetime.
type Pipeline struct {
	nc       net.Conn
	shards   *core.ShardSet
	maxFrame int

	ctx    context.Context
	cancel context.CancelFunc
	respC  chan kvwire.Response
}

// New wraps an accepted connection. parent governs the pipeline's lifetime
// from the outside (server-wide graceful shutdown cancels it); the pipeline
// also cancels itself on any read or write error. respChanCap <= 0 selects
// RespChanCap.
func New(parent context.Context, nc net.Conn, shards *core.ShardSet, maxFrame, respChanCap int) *Pipeline {
	if respChanCap <= 0 {
		respChanCap = RespChanCap
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pipeline{
		nc:       nc,
		shards:   shards,
		maxFrame: maxFrame,
		ctx:      ctx,
		cancel:   cancel,
		respC:    make(chan kvwire.Response, respChanCap),
	}
}

// Run drives the connection to completion, blocking until both the reader
// and writer have exited. It never returns an error: connection failures are
// logged, not propagated, since one bad connection must never take down the
// listener.
func (p *Pipeline) Run() {
	defer p.nc.Close()

	// A reader blocked in Read does not observe cancellation on its own;
	// expiring the read deadline makes that Read return so readLoop exits.
	go func() {
		<-p.ctx.Done()
		_ = p.nc.SetReadDeadline(time.Now())
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writeLoop()
	}()

	p.readLoop()

	// The reader only returns once the connection is cancelled (EOF, a
	// fatal protocol error, or the parent context closing), so the writer
	// is guaranteed to observe Done and exit; wait for it so Run does not
	// return while the socket is still being written to.
	<-writerDone
}

// readLoop decodes commands off the socket and dispatches them to the shard
// set until EOF, a fatal protocol error, or cancellation.
func (p *Pipeline) readLoop() {
	defer p.cancel()

	dec := kvwire.NewDecoder(p.maxFrame)
	buf := make([]byte, ReadBufSize)

	for {
		if p.ctx.Err() != nil {
			return
		}
		n, err := p.nc.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				cmd, derr := dec.Next()
				if derr != nil {
					logger.Printf("conn %s: protocol error: %v", p.nc.RemoteAddr(), derr)
					return
				}
				if cmd == nil {
					break
				}
				if dispatchErr := core.Dispatch(p.ctx, p.shards, cmd, p.respC); dispatchErr != nil {
					if !errors.Is(dispatchErr, context.Canceled) {
						logger.Printf("conn %s: dispatch: %v", p.nc.RemoteAddr(), dispatchErr)
					}
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// writeLoop blocks for the first available Response, then opportunistically
// drains everything else already queued before issuing a single batched
// write, matching the writer's batching contract.
func (p *Pipeline) writeLoop() {
	w := bufio.NewWriterSize(p.nc, ReadBufSize)
	var scratch []byte

	for {
		select {
		case resp, ok := <-p.respC:
			if !ok {
				return
			}
			scratch = kvwire.AppendEncode(scratch[:0], resp)
			scratch = p.drainAvailable(scratch)
			if _, err := w.Write(scratch); err != nil {
				p.cancel()
				return
			}
			if err := w.Flush(); err != nil {
				p.cancel()
				return
			}
		case <-p.ctx.Done():
			p.drainAndExit(w, scratch)
			return
		}
	}
}

// drainAvailable appends every Response currently sitting in the channel
// without blocking, implementing the writer's batching step.
func (p *Pipeline) drainAvailable(scratch []byte) []byte {
	for {
		select {
		case resp, ok := <-p.respC:
			if !ok {
				return scratch
			}
			scratch = kvwire.AppendEncode(scratch, resp)
		default:
			return scratch
		}
	}
}

// drainAndExit makes a best-effort final flush of whatever is already queued
// when the connection is cancelled, then returns; it does not block waiting
// for more, since cancellation means no more replies are coming.
func (p *Pipeline) drainAndExit(w *bufio.Writer, scratch []byte) {
	scratch = p.drainAvailable(scratch[:0])
	if len(scratch) == 0 {
		return
	}
	if _, err := w.Write(scratch); err != nil {
		return
	}
	_ = w.Flush()
}
