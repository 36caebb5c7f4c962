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

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x1, 0x2, 0x3, 0x4}
	dst := make([]byte, HeaderSize+len(payload))
	id := IDMagic | 7
	Encode(dst, id, 0x100, payload)

	h := Decode(dst)
	require.Equal(t, uint32(len(payload)), h.TotalSize)
	require.Equal(t, uint16(len(payload)), h.Size)
	require.Equal(t, uint8(ProtocolVersion), h.ProtocolVersion)
	require.Equal(t, id, h.ID)
	require.Equal(t, uint32(0x100), h.Opcode)
	require.Equal(t, payload, dst[HeaderSize:])
}

func TestHeaderClassification(t *testing.T) {
	async := Header{ID: AsyncBit | 0x55}
	require.True(t, async.IsAsync())

	resp := Header{ID: IDMagic | 42}
	require.False(t, resp.IsAsync())
	require.True(t, resp.HasMagic())
	require.Equal(t, uint32(42), resp.SlotIndex())

	badMagic := Header{ID: 0x19000001}
	require.False(t, badMagic.IsAsync())
	require.False(t, badMagic.HasMagic())
}

func TestValidatePayload(t *testing.T) {
	require.NoError(t, ValidatePayload([]byte{1, 2, 3, 4}, 4096))
	require.ErrorIs(t, ValidatePayload([]byte{1, 2, 3}, 4096), ErrInvalidArgument, "misaligned")

	tombstoneLead := make([]byte, 4)
	tombstoneLead[0], tombstoneLead[1], tombstoneLead[2], tombstoneLead[3] = 0xCE, 0xFA, 0xAD, 0xDE
	require.ErrorIs(t, ValidatePayload(tombstoneLead, 4096), ErrInvalidArgument, "tombstone lead word")

	require.ErrorIs(t, ValidatePayload(make([]byte, 4096), 4096), ErrInvalidArgument, "exceeds ring size once framed")
}
