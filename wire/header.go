/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package wire encodes and decodes the 16-byte mailbox message header and
// holds the magic/tombstone constants every other package keys off of.
package wire

import (
	"encoding/binary"
	"errors"
)

const (
	// HeaderSize is the packed, little-endian, 16-byte wire header size.
	HeaderSize = 16

	// ProtocolVersion is the only version this transport emits or accepts.
	ProtocolVersion = 1

	// Tombstone is the sentinel word a producer writes at the tail of a
	// ring's live region to tell the consumer to wrap to offset 0 instead
	// of parsing a header at the current position. It can never be the
	// first word of a valid payload.
	Tombstone uint32 = 0xDEADFACE

	// IDMagic is OR'd into the high byte of every ID this transport
	// allocates; inbound IDs are checked against it before being treated
	// as a correlated response.
	IDMagic uint32 = 0x1D000000

	// IDMagicMask isolates the high byte carrying IDMagic.
	IDMagicMask uint32 = 0xFF000000

	// IDIndexMask isolates the low 24 bits of an ID, which index the
	// 256-slot pending map (only the low 8 of those 24 bits are ever
	// nonzero, since the pool never allocates more than 256 slots).
	IDIndexMask uint32 = 0x00FFFFFF

	// AsyncBit marks a device-originated, uncorrelated message: any ID
	// with this bit set is async regardless of the magic prefix.
	AsyncBit uint32 = 0x80000000
)

// ErrInvalidArgument is returned by ValidatePayload when the payload is misaligned,
// oversize for the caller-supplied limit, or begins with the tombstone word.
var ErrInvalidArgument = errors.New("mbox: invalid argument")

// Header is the decoded form of the 16-byte wire header.
type Header struct {
	TotalSize       uint32 // payload bytes
	Size            uint16 // payload bytes, 11 bits used; fragmentation unused so TotalSize == Size
	ProtocolVersion uint8
	ID              uint32
	Opcode          uint32
}

// IsAsync reports whether this header's ID denotes a device-originated,
// uncorrelated message.
func (h Header) IsAsync() bool {
	return h.ID&AsyncBit != 0
}

// HasMagic reports whether this header's ID carries the correlation magic
// prefix identifying it as a response to a request this side sent. Only
// meaningful for non-async IDs.
func (h Header) HasMagic() bool {
	return h.ID&IDMagicMask == IDMagic
}

// SlotIndex returns the pending-map slot this header's ID refers to. Only
// valid when HasMagic is true.
func (h Header) SlotIndex() uint32 {
	return h.ID & IDIndexMask
}

// ValidatePayload checks the framing rules every outbound send must
// satisfy: length a multiple of 4, nonzero check of the leading word
// against the tombstone, and a ceiling on total framed size.
func ValidatePayload(payload []byte, ringSize uint32) error {
	if len(payload)%4 != 0 {
		return ErrInvalidArgument
	}
	if len(payload) >= 4 && binary.LittleEndian.Uint32(payload) == Tombstone {
		return ErrInvalidArgument
	}
	if uint32(HeaderSize+len(payload)) > ringSize {
		return ErrInvalidArgument
	}
	return nil
}

// Encode packs a header plus payload into a contiguous, 4-byte-aligned
// frame: dst must have length HeaderSize+len(payload). dst is returned for
// convenience (callers typically pass a mempool.Malloc'd slice through).
func Encode(dst []byte, id, opcode uint32, payload []byte) []byte {
	size := uint32(len(payload))
	binary.LittleEndian.PutUint32(dst[0:4], size)
	// bits [11:16) reserved, [16:24) protocol_version, [24:32) reserved
	binary.LittleEndian.PutUint32(dst[4:8], (size&0x7FF)|uint32(ProtocolVersion)<<16)
	binary.LittleEndian.PutUint32(dst[8:12], id)
	binary.LittleEndian.PutUint32(dst[12:16], opcode)
	copy(dst[HeaderSize:], payload)
	return dst
}

// Decode unpacks a 16-byte header from buf[:16]. buf must have length >=
// HeaderSize; callers peek the ring for at least that many bytes before
// calling Decode (see channel.drainOnce).
func Decode(buf []byte) Header {
	word1 := binary.LittleEndian.Uint32(buf[4:8])
	return Header{
		TotalSize:       binary.LittleEndian.Uint32(buf[0:4]),
		Size:            uint16(word1 & 0x7FF),
		ProtocolVersion: uint8(word1 >> 16),
		ID:              binary.LittleEndian.Uint32(buf[8:12]),
		Opcode:          binary.LittleEndian.Uint32(buf[12:16]),
	}
}
