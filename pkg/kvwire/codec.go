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

import "encoding/binary"

type decoderState uint8

const (
	stateHeader decoderState = iota
	statePayload
)

type frameHeader struct {
	opcode     Opcode
	reqID      uint32
	payloadLen uint32
}

// Decoder is a stateful, incremental decoder that turns a byte stream into a
// sequence of Commands. It is not safe for concurrent use: a Decoder is
// owned by exactly one connection's reader.
//
// Feed appends newly-read bytes; Next pops at most one fully-buffered
// Command, returning (nil, nil) when more bytes are required. A single Feed
// may unlock zero, one, or many Next calls, and a single Command's bytes may
// arrive across many Feed calls — the state machine only advances once the
// bytes it currently needs (a header, then a payload) are fully buffered.
type Decoder struct {
	maxFrame int
	state    decoderState
	hdr      frameHeader

	buf []byte
	off int
}

// NewDecoder returns a Decoder that rejects frames whose payload_len exceeds
// maxFrame. maxFrame <= 0 selects DefaultMaxFrame.
func NewDecoder(maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	return &Decoder{maxFrame: maxFrame}
}

// Feed appends bytes read from the connection to the decoder's internal
// buffer. The slice is copied; the caller's buffer may be reused immediately.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	d.buf = append(d.buf, p...)
}

func (d *Decoder) buffered() int { return len(d.buf) - d.off }

// compact drops already-consumed bytes from the front of buf. It is only
// worth doing when we are about to hand control back to the caller (Next is
// returning nil), which keeps steady-state memory bounded to one frame
// without copying on every successful decode.
func (d *Decoder) compact() {
	if d.off == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:n]
	d.off = 0
}

// Next attempts to decode one Command from the buffered bytes.
//
// Return values:
//   - (cmd, nil): a Command was fully decoded and the decoder advanced past it.
//   - (nil, nil): not enough bytes are buffered yet; the caller should Feed more.
//   - (nil, err): a fatal protocol error (bad magic/version/opcode, frame too
//     large, or a malformed payload). The connection must be closed; the
//     Decoder must not be reused.
func (d *Decoder) Next() (*Command, error) {
	for {
		switch d.state {
		case stateHeader:
			if d.buffered() < HeaderLen {
				d.compact()
				return nil, nil
			}
			h := d.buf[d.off : d.off+HeaderLen]
			if binary.BigEndian.Uint16(h[0:2]) != Magic {
				return nil, ErrBadMagic
			}
			if h[2] != Version {
				return nil, ErrBadVersion
			}
			op := Opcode(h[3])
			switch op {
			case OpGet, OpSet, OpDelete:
			default:
				return nil, ErrUnknownOpcode
			}
			payloadLen := binary.BigEndian.Uint32(h[8:12])
			if payloadLen > uint32(d.maxFrame) {
				return nil, ErrFrameTooLarge
			}
			d.hdr = frameHeader{
				opcode:     op,
				reqID:      binary.BigEndian.Uint32(h[4:8]),
				payloadLen: payloadLen,
			}
			d.off += HeaderLen
			d.state = statePayload

		case statePayload:
			need := int(d.hdr.payloadLen)
			if d.buffered() < need {
				d.compact()
				return nil, nil
			}
			payload := d.buf[d.off : d.off+need]
			cmd, err := decodePayload(d.hdr.opcode, d.hdr.reqID, payload)
			d.off += need
			d.state = stateHeader
			if err != nil {
				return nil, err
			}
			return cmd, nil
		}
	}
}

func decodePayload(op Opcode, reqID uint32, payload []byte) (*Command, error) {
	switch op {
	case OpGet, OpDelete:
		key, rest, err := readKey(payload)
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, ErrMalformedPayload
		}
		return &Command{Opcode: op, ReqID: reqID, Key: key}, nil

	case OpSet:
		key, rest, err := readKey(payload)
		if err != nil {
			return nil, err
		}
		if len(rest) < 4 {
			return nil, ErrMalformedPayload
		}
		valLen := binary.BigEndian.Uint32(rest[0:4])
		rest = rest[4:]
		if uint32(len(rest)) != valLen {
			return nil, ErrMalformedPayload
		}
		val := make([]byte, len(rest))
		copy(val, rest)
		return &Command{Opcode: op, ReqID: reqID, Key: key, Value: val}, nil

	default:
		return nil, ErrUnknownOpcode
	}
}

// readKey parses a `key_len:u16 | key[key_len]` prefix, returning a freshly
// copied key and the remaining bytes.
func readKey(payload []byte) (key []byte, rest []byte, err error) {
	if len(payload) < 2 {
		return nil, nil, ErrMalformedPayload
	}
	keyLen := binary.BigEndian.Uint16(payload[0:2])
	payload = payload[2:]
	if len(payload) < int(keyLen) {
		return nil, nil, ErrMalformedPayload
	}
	key = make([]byte, keyLen)
	copy(key, payload[:keyLen])
	return key, payload[keyLen:], nil
}

// Encode serializes a Response into a contiguous wire buffer: the 12-byte
// header (little-endian, per the response-side of the protocol's endianness
// asymmetry) followed by the status-specific payload.
func Encode(r Response) []byte {
	var payload []byte
	switch r.Status {
	case StatusOK:
		if r.Value != nil {
			payload = make([]byte, 4+len(r.Value))
			binary.LittleEndian.PutUint32(payload[0:4], uint32(len(r.Value)))
			copy(payload[4:], r.Value)
		}
	case StatusNotFound:
		// empty payload
	case StatusErr:
		msg := []byte(r.Err)
		payload = make([]byte, 2+len(msg))
		binary.LittleEndian.PutUint16(payload[0:2], uint16(len(msg)))
		copy(payload[2:], msg)
	}

	buf := make([]byte, HeaderLen+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	buf[2] = Version
	buf[3] = byte(r.Status)
	binary.LittleEndian.PutUint32(buf[4:8], r.ReqID)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf
}

// AppendEncode appends the encoded Response to dst, returning the grown
// slice. It lets the connection writer batch several responses into one
// buffer; each call still builds the frame with Encode first, so it
// allocates one intermediate buffer per response.
func AppendEncode(dst []byte, r Response) []byte {
	return append(dst, Encode(r)...)
}

// DecodeResponse parses a single response frame out of a fully-buffered byte
// slice, returning the number of bytes consumed. It is the client-side
// counterpart to Encode and Decoder, used by tests and by any client built
// against this package.
func DecodeResponse(b []byte) (Response, int, error) {
	if len(b) < HeaderLen {
		return Response{}, 0, nil
	}
	if binary.LittleEndian.Uint16(b[0:2]) != Magic {
		return Response{}, 0, ErrBadMagic
	}
	if b[2] != Version {
		return Response{}, 0, ErrBadVersion
	}
	status := Status(b[3])
	switch status {
	case StatusOK, StatusNotFound, StatusErr:
	default:
		return Response{}, 0, ErrUnknownStatus
	}
	reqID := binary.LittleEndian.Uint32(b[4:8])
	payloadLen := binary.LittleEndian.Uint32(b[8:12])
	total := HeaderLen + int(payloadLen)
	if len(b) < total {
		return Response{}, 0, nil
	}
	payload := b[HeaderLen:total]

	resp := Response{Status: status, ReqID: reqID}
	switch status {
	case StatusOK:
		if len(payload) > 0 {
			if len(payload) < 4 {
				return Response{}, 0, ErrMalformedPayload
			}
			valLen := binary.LittleEndian.Uint32(payload[0:4])
			if uint32(len(payload)-4) != valLen {
				return Response{}, 0, ErrMalformedPayload
			}
			resp.Value = append([]byte(nil), payload[4:]...)
		}
	case StatusErr:
		if len(payload) < 2 {
			return Response{}, 0, ErrMalformedPayload
		}
		msgLen := binary.LittleEndian.Uint16(payload[0:2])
		if uint16(len(payload)-2) != msgLen {
			return Response{}, 0, ErrMalformedPayload
		}
		resp.Err = string(payload[2:])
	}
	return resp, total, nil
}
