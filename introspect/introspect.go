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

// Package introspect is the optional, read-only debug surface named in the
// external interfaces: a snapshot of a channel's ring descriptors and live
// head/tail register values, plus a hex dump of each ring's front. It never
// mutates anything it looks at.
package introspect

import (
	"encoding/hex"

	"github.com/cloudwego/mbox/channel"
	"github.com/cloudwego/mbox/ringio"
)

// maxDumpBytes bounds how much of a ring Snapshot hex-dumps, matching the
// "first 4 KiB" the external interface calls for.
const maxDumpBytes = 4096

// RingSnapshot is a point-in-time view of one ring's descriptor and
// pointer registers.
type RingSnapshot struct {
	Desc channel.RingDesc
	Head uint32
	Tail uint32
	// HexDump is the hex encoding of up to the first 4 KiB of this ring's
	// bytes, starting at Desc.Offset.
	HexDump string
}

// Snapshot is a point-in-time view of one channel's X2I and I2X rings.
type Snapshot struct {
	Name string
	X2I  RingSnapshot
	I2X  RingSnapshot
}

// Take captures a Snapshot of ch. It only reads registers and ring bytes;
// it never advances a head/tail pointer or otherwise participates in the
// transport.
func Take(ch *channel.Channel) Snapshot {
	x2iDesc, i2xDesc := ch.Descriptors()
	regs := ch.Registers()
	rings := ch.Rings()

	return Snapshot{
		Name: ch.Name(),
		X2I:  ringSnapshot(regs, rings, x2iDesc),
		I2X:  ringSnapshot(regs, rings, i2xDesc),
	}
}

func ringSnapshot(regs, rings *ringio.Region, desc channel.RingDesc) RingSnapshot {
	n := desc.Size
	if n > maxDumpBytes {
		n = maxDumpBytes
	}
	dump := make([]byte, n)
	rings.CopyOut(desc.Offset, dump)

	return RingSnapshot{
		Desc:    desc,
		Head:    regs.LoadRegister(desc.HeadOffset),
		Tail:    regs.LoadRegister(desc.TailOffset),
		HexDump: hex.EncodeToString(dump),
	}
}
