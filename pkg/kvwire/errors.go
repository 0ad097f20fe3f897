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

import "errors"

// Protocol errors are fatal to the connection that produced them, never to
// the process. A decoder that returns one of these must not be reused: the
// caller is expected to close the connection.
var (
	// ErrBadMagic means the 2-byte magic at the start of a header did not match Magic.
	ErrBadMagic = errors.New("kvwire: bad magic")

	// ErrBadVersion means the version byte did not match Version.
	ErrBadVersion = errors.New("kvwire: unsupported version")

	// ErrUnknownOpcode means a request header carried an opcode outside {GET, SET, DEL}.
	ErrUnknownOpcode = errors.New("kvwire: unknown opcode")

	// ErrUnknownStatus means a response header carried a status outside {OK, NOT_FOUND, ERR}.
	ErrUnknownStatus = errors.New("kvwire: unknown status")

	// ErrFrameTooLarge means payload_len exceeded the decoder's configured MaxFrame.
	ErrFrameTooLarge = errors.New("kvwire: frame exceeds max size")

	// ErrEmptyKey means a request's key field had zero length. The data model
	// requires non-empty keys; the caller should reply with a StatusErr
	// response rather than close the connection, since this is a semantic
	// rejection, not a broken frame.
	ErrEmptyKey = errors.New("kvwire: empty key")

	// ErrMalformedPayload means a payload's internal length fields (key_len,
	// val_len, msg_len) are inconsistent with the header's payload_len. Unlike
	// a short read, this is not recoverable by waiting for more bytes: the
	// declared payload_len bytes are already fully buffered and do not parse.
	ErrMalformedPayload = errors.New("kvwire: malformed payload")
)
