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

package kvwire

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"
)

// encodeRequest builds a raw request frame the way a client would: big-endian
// header and big-endian length fields, per the protocol's documented
// endianness asymmetry.
func encodeRequest(t *testing.T, op Opcode, reqID uint32, key, value []byte) []byte {
	t.Helper()
	var payload []byte
	switch op {
	case OpGet, OpDelete:
		payload = make([]byte, 2+len(key))
		binary.BigEndian.PutUint16(payload[0:2], uint16(len(key)))
		copy(payload[2:], key)
	case OpSet:
		payload = make([]byte, 2+len(key)+4+len(value))
		binary.BigEndian.PutUint16(payload[0:2], uint16(len(key)))
		copy(payload[2:], key)
		off := 2 + len(key)
		binary.BigEndian.PutUint32(payload[off:off+4], uint32(len(value)))
		copy(payload[off+4:], value)
	}
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = Version
	buf[3] = byte(op)
	binary.BigEndian.PutUint32(buf[4:8], reqID)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf
}

func TestDecoder_GetSetDelete(t *testing.T) {
	cases := []struct {
		name  string
		op    Opcode
		key   []byte
		value []byte
	}{
		{"get", OpGet, []byte("foo"), nil},
		{"set", OpSet, []byte("foo"), []byte("bar")},
		{"set-empty-value", OpSet, []byte("foo"), []byte{}},
		{"delete", OpDelete, []byte("foo"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := encodeRequest(t, tc.op, 42, tc.key, tc.value)
			d := NewDecoder(0)
			d.Feed(frame)
			cmd, err := d.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if cmd == nil {
				t.Fatalf("expected a command, got nil")
			}
			if cmd.Opcode != tc.op || cmd.ReqID != 42 || !bytes.Equal(cmd.Key, tc.key) {
				t.Fatalf("got %+v", cmd)
			}
			if tc.op == OpSet && !bytes.Equal(cmd.Value, tc.value) {
				t.Fatalf("value mismatch: got %q want %q", cmd.Value, tc.value)
			}
			if cmd, err := d.Next(); cmd != nil || err != nil {
				t.Fatalf("expected no further command, got %+v, %v", cmd, err)
			}
		})
	}
}

func TestDecoder_IncrementalFraming(t *testing.T) {
	frame := encodeRequest(t, OpSet, 7, []byte("k"), []byte("v"))
	d := NewDecoder(0)

	// Split at byte 5, as the spec's scenario #5 does.
	d.Feed(frame[:5])
	if cmd, err := d.Next(); cmd != nil || err != nil {
		t.Fatalf("expected zero commands after partial feed, got %+v, %v", cmd, err)
	}

	d.Feed(frame[5:])
	cmd, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if cmd == nil || cmd.ReqID != 7 {
		t.Fatalf("expected exactly one command, got %+v", cmd)
	}
	if cmd2, err := d.Next(); cmd2 != nil || err != nil {
		t.Fatalf("expected no further command, got %+v, %v", cmd2, err)
	}
}

// TestDecoder_ByteAtATime is the decoder's monoid-homomorphism property: the
// same frame fed one byte at a time yields the same Command as fed whole.
func TestDecoder_ByteAtATime(t *testing.T) {
	frame := encodeRequest(t, OpSet, 99, []byte("the-key"), bytes.Repeat([]byte{0xAB}, 37))

	whole := NewDecoder(0)
	whole.Feed(frame)
	wantCmd, err := whole.Next()
	if err != nil {
		t.Fatalf("Next (whole): %v", err)
	}

	piecewise := NewDecoder(0)
	var gotCmd *Command
	for i := 0; i < len(frame); i++ {
		piecewise.Feed(frame[i : i+1])
		cmd, err := piecewise.Next()
		if err != nil {
			t.Fatalf("Next (piecewise) at byte %d: %v", i, err)
		}
		if cmd != nil {
			gotCmd = cmd
		}
	}
	if gotCmd == nil {
		t.Fatalf("piecewise decode never produced a command")
	}
	if gotCmd.Opcode != wantCmd.Opcode || gotCmd.ReqID != wantCmd.ReqID ||
		!bytes.Equal(gotCmd.Key, wantCmd.Key) || !bytes.Equal(gotCmd.Value, wantCmd.Value) {
		t.Fatalf("piecewise decode diverged: got %+v want %+v", gotCmd, wantCmd)
	}
}

func TestDecoder_MultipleCommandsOneFeed(t *testing.T) {
	var all []byte
	all = append(all, encodeRequest(t, OpSet, 1, []byte("a"), []byte("1"))...)
	all = append(all, encodeRequest(t, OpGet, 2, []byte("a"), nil)...)
	all = append(all, encodeRequest(t, OpDelete, 3, []byte("a"), nil)...)

	d := NewDecoder(0)
	d.Feed(all)

	var gotIDs []uint32
	for {
		cmd, err := d.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if cmd == nil {
			break
		}
		gotIDs = append(gotIDs, cmd.ReqID)
	}
	if len(gotIDs) != 3 || gotIDs[0] != 1 || gotIDs[1] != 2 || gotIDs[2] != 3 {
		t.Fatalf("got %v", gotIDs)
	}
}

func TestDecoder_BadMagic(t *testing.T) {
	frame := encodeRequest(t, OpGet, 1, []byte("a"), nil)
	frame[0] ^= 0xFF
	d := NewDecoder(0)
	d.Feed(frame)
	if _, err := d.Next(); err != ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestDecoder_BadVersion(t *testing.T) {
	frame := encodeRequest(t, OpGet, 1, []byte("a"), nil)
	frame[2] = 9
	d := NewDecoder(0)
	d.Feed(frame)
	if _, err := d.Next(); err != ErrBadVersion {
		t.Fatalf("got %v, want ErrBadVersion", err)
	}
}

func TestDecoder_UnknownOpcode(t *testing.T) {
	frame := encodeRequest(t, OpGet, 1, []byte("a"), nil)
	frame[3] = 0x7F
	d := NewDecoder(0)
	d.Feed(frame)
	if _, err := d.Next(); err != ErrUnknownOpcode {
		t.Fatalf("got %v, want ErrUnknownOpcode", err)
	}
}

// TestDecoder_PayloadTooLarge exercises testable property 7: payload_len > MAX_FRAME
// closes the connection without producing a partial Command.
func TestDecoder_PayloadTooLarge(t *testing.T) {
	const maxFrame = 64
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = Version
	buf[3] = byte(OpGet)
	binary.BigEndian.PutUint32(buf[4:8], 1)
	binary.BigEndian.PutUint32(buf[8:12], maxFrame+1)

	d := NewDecoder(maxFrame)
	d.Feed(buf)
	cmd, err := d.Next()
	if cmd != nil {
		t.Fatalf("expected no partial command, got %+v", cmd)
	}
	if err != ErrFrameTooLarge {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}

func TestDecoder_MalformedPayload(t *testing.T) {
	// key_len claims 10 bytes but only 2 bytes of payload are declared.
	buf := make([]byte, HeaderLen+2)
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = Version
	buf[3] = byte(OpGet)
	binary.BigEndian.PutUint32(buf[4:8], 1)
	binary.BigEndian.PutUint32(buf[8:12], 2)
	binary.BigEndian.PutUint16(buf[HeaderLen:HeaderLen+2], 10)

	d := NewDecoder(0)
	d.Feed(buf)
	if _, err := d.Next(); err != ErrMalformedPayload {
		t.Fatalf("got %v, want ErrMalformedPayload", err)
	}
}

func TestEncodeDecodeResponse_RoundTrip(t *testing.T) {
	cases := []Response{
		OK(1, nil),
		OK(2, []byte("bar")),
		OK(3, []byte{}),
		NotFound(4),
		Err(5, "empty key"),
	}
	for _, want := range cases {
		encoded := Encode(want)
		got, n, err := DecodeResponse(encoded)
		if err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
		if n != len(encoded) {
			t.Fatalf("consumed %d, want %d", n, len(encoded))
		}
		if got.Status != want.Status || got.ReqID != want.ReqID || got.Err != want.Err {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		if !bytes.Equal(got.Value, want.Value) && !(len(got.Value) == 0 && len(want.Value) == 0) {
			t.Fatalf("value mismatch: got %q want %q", got.Value, want.Value)
		}
	}
}

// TestEncode_ResponseHeaderLittleEndian pins the documented asymmetry: unlike
// request headers, response headers and length fields are little-endian.
func TestEncode_ResponseHeaderLittleEndian(t *testing.T) {
	buf := Encode(OK(0x01020304, []byte("bar")))
	if got := binary.LittleEndian.Uint16(buf[0:2]); got != Magic {
		t.Fatalf("magic not little-endian: %x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[4:8]); got != 0x01020304 {
		t.Fatalf("req_id not little-endian: %x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[8:12]); got != 4+3 {
		t.Fatalf("payload_len not little-endian: %d", got)
	}
	if got := binary.LittleEndian.Uint32(buf[HeaderLen : HeaderLen+4]); got != 3 {
		t.Fatalf("val_len not little-endian: %d", got)
	}
}

// TestDecoder_RandomSplits fuzzes feed-chunk boundaries to strengthen the
// byte-at-a-time property across many random splits of the same stream.
func TestDecoder_RandomSplits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var stream []byte
	var wantIDs []uint32
	for i := 0; i < 50; i++ {
		id := uint32(i + 1)
		wantIDs = append(wantIDs, id)
		key := bytes.Repeat([]byte{byte(i)}, 1+i%5)
		switch i % 3 {
		case 0:
			stream = append(stream, encodeRequest(t, OpGet, id, key, nil)...)
		case 1:
			stream = append(stream, encodeRequest(t, OpSet, id, key, bytes.Repeat([]byte{0xEE}, i))...)
		case 2:
			stream = append(stream, encodeRequest(t, OpDelete, id, key, nil)...)
		}
	}

	d := NewDecoder(0)
	var gotIDs []uint32
	off := 0
	for off < len(stream) {
		chunk := 1 + rng.Intn(7)
		if off+chunk > len(stream) {
			chunk = len(stream) - off
		}
		d.Feed(stream[off : off+chunk])
		off += chunk
		for {
			cmd, err := d.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if cmd == nil {
				break
			}
			gotIDs = append(gotIDs, cmd.ReqID)
		}
	}
	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("got %d commands, want %d", len(gotIDs), len(wantIDs))
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("command %d: got id %d, want %d", i, gotIDs[i], wantIDs[i])
		}
	}
}
