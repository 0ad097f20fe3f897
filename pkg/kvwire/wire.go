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

// Package kvwire implements the framed binary wire protocol shared by a
// kvshard server and its clients: a 12-byte header followed by an
// opcode/status-specific payload.
//
// Wire header (12 bytes, fixed):
//
//	magic            u16  0x5244 ("RD")
//	version          u8   1
//	opcode_or_status u8
//	req_id           u32
//	payload_len      u32
//
// Request headers and request payload-length fields are big-endian.
// Response headers and response payload-length fields are little-endian.
// This asymmetry is intentional wire compatibility with existing clients,
// not an inconsistency to be "fixed" — see the decoder/encoder in codec.go.
package kvwire

import "fmt"

// Opcode identifies the operation carried by a Command.
type Opcode uint8

const (
	OpGet    Opcode = 1
	OpSet    Opcode = 2
	OpDelete Opcode = 3
)

func (o Opcode) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpDelete:
		return "DEL"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(o))
	}
}

// Status identifies the outcome carried by a Response.
type Status uint8

const (
	StatusOK       Status = 0
	StatusNotFound Status = 1
	StatusErr      Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusErr:
		return "ERR"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

const (
	// Magic is the two-byte literal that opens every frame.
	Magic uint16 = 0x5244

	// Version is the only protocol version this package speaks.
	Version uint8 = 1

	// HeaderLen is the fixed size in bytes of every frame header.
	HeaderLen = 12

	// DefaultMaxFrame is the default hard cap on any single wire payload (1 MiB).
	DefaultMaxFrame = 1 << 20
)

// Command is a decoded client request: {opcode, req_id, key, value?}.
//
// Key is always present and non-nil for a successfully decoded Command.
// Value is non-nil only for OpSet.
type Command struct {
	Opcode Opcode
	ReqID  uint32
	Key    []byte
	Value  []byte
}

// Response is an encoded server reply: {status, req_id, payload}.
//
// Value carries the GET-hit/DELETE-hit payload. Err carries the human-readable
// message for StatusErr. Both are nil/empty for the other status/opcode
// combinations.
type Response struct {
	Status Status
	ReqID  uint32
	Value  []byte
	Err    string
}

// OK builds a StatusOK response. value may be nil (SET) or a snapshot
// (GET/DELETE hit).
func OK(reqID uint32, value []byte) Response {
	return Response{Status: StatusOK, ReqID: reqID, Value: value}
}

// NotFound builds a StatusNotFound response.
func NotFound(reqID uint32) Response {
	return Response{Status: StatusNotFound, ReqID: reqID}
}

// Err builds a StatusErr response carrying a human-readable message.
func Err(reqID uint32, msg string) Response {
	return Response{Status: StatusErr, ReqID: reqID, Err: msg}
}
