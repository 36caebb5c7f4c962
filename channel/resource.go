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

package channel

// RingDesc describes one direction's ring buffer: where it starts within
// the ring-buffer region, how big it is, and where its head/tail pointer
// registers live within the mailbox register region.
type RingDesc struct {
	Offset     uint32 // start offset of this ring within the ring-buffer region
	Size       uint32 // ring size in bytes; must be a power of two
	HeadOffset uint32 // register offset of the head pointer
	TailOffset uint32 // register offset of the tail pointer
}

func (d RingDesc) powerOfTwo() bool {
	return d.Size != 0 && d.Size&(d.Size-1) == 0
}

// Message is the caller-visible unit of work for Send: an opcode, payload,
// an opaque handle the callback receives back, and an optional callback.
type Message struct {
	// Handle is returned verbatim to Callback; the transport never
	// inspects it.
	Handle interface{}

	// Callback is invoked at most once: with the response payload on a
	// normal reply, or with data == nil, size == 0 if the channel is
	// torn down before a response arrives. May be nil.
	Callback func(handle interface{}, data []byte, size int)

	Opcode   uint32
	SendData []byte

	// Timeout is accepted for API compatibility with higher layers that
	// arm their own timer over the callback; the transport itself never
	// waits on it. See the design notes on the send timeout argument.
	Timeout int64
}
