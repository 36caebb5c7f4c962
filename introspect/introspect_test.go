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

package introspect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/mbox/channel"
	"github.com/cloudwego/mbox/ringio"
)

func TestTakeSnapshot(t *testing.T) {
	regs := ringio.NewRegion(make([]byte, 64))
	rings := ringio.NewRegion(make([]byte, 8192))

	ch, err := channel.New(channel.Config{
		Name:      "npu0",
		Registers: regs,
		Rings:     rings,
		X2I:       channel.RingDesc{Offset: 0, Size: 4096, HeadOffset: 0, TailOffset: 4},
		I2X:       channel.RingDesc{Offset: 4096, Size: 4096, HeadOffset: 8, TailOffset: 12},
	})
	require.NoError(t, err)
	defer ch.Destroy()

	require.NoError(t, ch.Send(channel.Message{Opcode: 1, SendData: []byte{1, 2, 3, 4}}))

	snap := Take(ch)
	require.Equal(t, "npu0", snap.Name)
	require.Equal(t, uint32(20), snap.X2I.Tail)
	require.NotEmpty(t, snap.X2I.HexDump)
	require.Len(t, snap.X2I.HexDump, 4096*2) // hex-doubles the dumped byte count
	require.Equal(t, uint32(0), snap.I2X.Tail)
}

func TestSnapshotCapsDumpAt4KiB(t *testing.T) {
	regs := ringio.NewRegion(make([]byte, 64))
	rings := ringio.NewRegion(make([]byte, 16384))

	ch, err := channel.New(channel.Config{
		Name:      "npu0",
		Registers: regs,
		Rings:     rings,
		X2I:       channel.RingDesc{Offset: 0, Size: 8192, HeadOffset: 0, TailOffset: 4},
		I2X:       channel.RingDesc{Offset: 8192, Size: 8192, HeadOffset: 8, TailOffset: 12},
	})
	require.NoError(t, err)
	defer ch.Destroy()

	snap := Take(ch)
	require.Len(t, snap.X2I.HexDump, maxDumpBytes*2)
}
