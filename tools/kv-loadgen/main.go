// kv-loadgen is a tiny, dependency-free TCP load generator for kvserver. It
// reuses a pool of persistent connections and pipelines requests on each one
// (writing many requests before reading their replies), so a handful of
// connections and goroutines can drive a meaningful request rate.
//
// Modes:
//   - set:  send N SETs for a single key, value size configurable
//   - get:  send N GETs for a single key (populated with one SET first)
//   - zipf: approximate 80/20 skew (hot/cold) without PRNG: send hot key 4/5 of the time
//
// Usage examples:
//
//	kv-loadgen -addr=127.0.0.1:6379 -mode=set -key=alice -n=5000 -c=16
//	kv-loadgen -addr=127.0.0.1:6379 -mode=zipf -hot_key=hot-1 -cold_keys=50 -n=8000 -c=16 -pipeline=32
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kvshard/pkg/kvwire"
)

type modeType string

const (
	modeSet  modeType = "set"
	modeGet  modeType = "get"
	modeZipf modeType = "zipf"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:6379", "kvserver address host:port")
		modeS    = flag.String("mode", string(modeSet), "Mode: set|get|zipf")
		key      = flag.String("key", "alice-key", "Key for set/get mode")
		hotKey   = flag.String("hot_key", "hot-1", "Hot key for zipf mode")
		coldN    = flag.Int("cold_keys", 50, "Number of cold keys to round-robin in zipf mode")
		valSize  = flag.Int("val_size", 64, "Value size in bytes for SET requests")
		N        = flag.Int("n", 5000, "Total requests to send")
		conc     = flag.Int("c", 8, "Number of concurrent connections")
		pipeline = flag.Int("pipeline", 16, "In-flight requests per connection before reading replies")
		hotEvery = flag.Int("hot_every", 5, "Zipf-like skew period (all but 1 of this period go to hot; minimum 2)")
		timeout  = flag.Duration("timeout", 30*time.Second, "Overall timeout for the loadgen run")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeSet && m != modeGet && m != modeZipf {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want set|get|zipf)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 || *pipeline <= 0 {
		fmt.Fprintln(os.Stderr, "-n, -c, and -pipeline must be > 0")
		os.Exit(2)
	}
	if m == modeZipf {
		if *coldN <= 0 {
			fmt.Fprintln(os.Stderr, "-cold_keys must be > 0 in zipf mode")
			os.Exit(2)
		}
		if *hotEvery < 2 {
			*hotEvery = 2
		}
	}

	value := make([]byte, *valSize)
	for i := range value {
		value[i] = byte('a' + i%26)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if m == modeGet {
		if err := seedKey(ctx, *addr, *key, value); err != nil {
			fmt.Fprintf(os.Stderr, "seed key: %v\n", err)
			os.Exit(1)
		}
	}

	start := time.Now()
	var done, errs int64

	worker := func(id, count int) {
		nc, err := net.Dial("tcp", *addr)
		if err != nil {
			atomic.AddInt64(&errs, int64(count))
			atomic.AddInt64(&done, int64(count))
			return
		}
		defer nc.Close()
		w := bufio.NewWriterSize(nc, 64*1024)
		r := bufio.NewReaderSize(nc, 64*1024)

		sent, acked := 0, 0
		for sent < count {
			select {
			case <-ctx.Done():
				return
			default:
			}
			batch := *pipeline
			if sent+batch > count {
				batch = count - sent
			}
			for i := 0; i < batch; i++ {
				k := keyFor(m, id, sent+i, *key, *hotKey, *coldN, *hotEvery)
				reqID := uint32(id)<<20 | uint32(sent+i)
				w.Write(encodeRequest(m, reqID, k, value))
			}
			if err := w.Flush(); err != nil {
				atomic.AddInt64(&errs, int64(batch))
				atomic.AddInt64(&done, int64(batch))
				sent += batch
				continue
			}
			for i := 0; i < batch; i++ {
				if _, err := readOneResponse(r); err != nil {
					atomic.AddInt64(&errs, 1)
				}
				acked++
			}
			sent += batch
		}
		atomic.AddInt64(&done, int64(acked))
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*N) / elapsed.Seconds()
	fmt.Printf("LoadGen: mode=%s N=%d c=%d pipeline=%d go=%d errs=%d Duration=%s Throughput=%.0f req/s\n",
		m, *N, *conc, *pipeline, runtime.GOMAXPROCS(0), atomic.LoadInt64(&errs), elapsed.Truncate(time.Millisecond), ops)
}

func keyFor(m modeType, id, i int, key, hotKey string, coldN, hotEvery int) string {
	if m != modeZipf {
		return key
	}
	if ((i + id) % hotEvery) != 0 {
		return hotKey
	}
	idx := ((i + id) % coldN) + 1
	return fmt.Sprintf("cold-%d", idx)
}

func encodeRequest(m modeType, reqID uint32, key string, value []byte) []byte {
	op := kvwire.OpSet
	if m == modeGet {
		op = kvwire.OpGet
	}
	kb := []byte(key)
	var payload []byte
	switch op {
	case kvwire.OpGet:
		payload = make([]byte, 2+len(kb))
		binary.BigEndian.PutUint16(payload, uint16(len(kb)))
		copy(payload[2:], kb)
	case kvwire.OpSet:
		payload = make([]byte, 2+len(kb)+4+len(value))
		binary.BigEndian.PutUint16(payload, uint16(len(kb)))
		copy(payload[2:], kb)
		off := 2 + len(kb)
		binary.BigEndian.PutUint32(payload[off:], uint32(len(value)))
		copy(payload[off+4:], value)
	}
	frame := make([]byte, kvwire.HeaderLen+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], kvwire.Magic)
	frame[2] = kvwire.Version
	frame[3] = byte(op)
	binary.BigEndian.PutUint32(frame[4:8], reqID)
	binary.BigEndian.PutUint32(frame[8:12], uint32(len(payload)))
	copy(frame[12:], payload)
	return frame
}

// readOneResponse reads exactly one little-endian response frame off r.
func readOneResponse(r *bufio.Reader) (kvwire.Response, error) {
	hdr := make([]byte, kvwire.HeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return kvwire.Response{}, err
	}
	payloadLen := binary.LittleEndian.Uint32(hdr[8:12])
	body := make([]byte, int(payloadLen))
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return kvwire.Response{}, err
		}
	}
	full := append(hdr, body...)
	resp, _, err := kvwire.DecodeResponse(full)
	return resp, err
}

// seedKey opens a short-lived connection to populate the key GET mode reads.
func seedKey(ctx context.Context, addr, key string, value []byte) error {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer nc.Close()
	if d, ok := ctx.Deadline(); ok {
		nc.SetDeadline(d)
	}
	if _, err := nc.Write(encodeRequest(modeSet, 1, key, value)); err != nil {
		return err
	}
	r := bufio.NewReader(nc)
	resp, err := readOneResponse(r)
	if err != nil {
		return err
	}
	if resp.Status != kvwire.StatusOK {
		return fmt.Errorf("seed SET failed: status=%d", resp.Status)
	}
	return nil
}
