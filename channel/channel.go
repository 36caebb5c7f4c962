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

// Package channel implements one bidirectional mailbox channel: an X2I
// (host-to-device) ring for sending, an I2X (device-to-host) ring for
// receiving, message-ID correlation of responses to pending callbacks, an
// async-message queue for device-originated notifications, and the
// interrupt-driven worker that drains I2X.
package channel

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/mbox/asyncqueue"
	"github.com/cloudwego/mbox/cache/mempool"
	"github.com/cloudwego/mbox/concurrency/gopool"
	"github.com/cloudwego/mbox/idpool"
	"github.com/cloudwego/mbox/ringio"
	"github.com/cloudwego/mbox/wire"
)

// pendingRecord is what the ID pool stores for an outstanding send: just
// enough to deliver (or cancel) the caller's callback. The framed bytes
// themselves are not kept past the ring write; see Send.
type pendingRecord struct {
	handle   interface{}
	callback func(handle interface{}, data []byte, size int)
}

func (r *pendingRecord) complete(data []byte, size int) {
	if r.callback != nil {
		r.callback(r.handle, data, size)
	}
}

// Config supplies everything Channel needs at construction. Registers and
// Rings are distinct memory windows per the mailbox resource model: the
// former holds head/tail/IRQ-ack registers, the latter the ring payload
// bytes.
type Config struct {
	Name string

	Registers *ringio.Region
	Rings     *ringio.Region

	X2I RingDesc
	I2X RingDesc

	IRQAckOffset uint32

	// RegisterInterrupt hooks this channel's handler to the interrupt
	// controller (an external collaborator out of scope for this
	// package). It must arrange for handler to be invoked whenever the
	// device signals this channel's interrupt, and return a deregister
	// func. handler is non-blocking and may be called from whatever
	// context the controller delivers notifications in.
	RegisterInterrupt func(handler func()) (deregister func(), err error)

	// WorkerOption configures the drain worker's goroutine pool; nil
	// selects gopool's defaults.
	WorkerOption *gopool.Option

	// Unlink is invoked exactly once, during Destroy, to remove this
	// channel from whatever registry created it (typically a Mailbox).
	// nil is treated as a no-op; set by mailbox.CreateChannel.
	Unlink func()
}

// Channel is one mailbox channel. Multiple goroutines may call Send
// concurrently; Destroy must be called to tear it down, and calls after the
// first are no-ops.
type Channel struct {
	name string

	regs  *ringio.Region
	rings *ringio.Region

	x2i RingDesc
	i2x RingDesc

	irqAckOffset  uint32
	deregisterIRQ func()

	sendMu     sync.Mutex // serializes senders; covers cachedTail + ring write
	cachedTail uint32

	cachedHead uint32 // written only by the drain worker; no lock needed

	pending *idpool.Pool[*pendingRecord]
	asyncQ  *asyncqueue.Queue

	worker *worker

	unlink func()

	destroyed int32
}

// New creates a channel for one X2I/I2X ring pair. It seeds the cached X2I
// tail from the current tail register so the producer resumes from
// wherever the device last left it, then registers the interrupt last, so
// everything else is ready before the device can signal this channel.
func New(cfg Config) (*Channel, error) {
	if !cfg.X2I.powerOfTwo() || !cfg.I2X.powerOfTwo() {
		return nil, ErrInvalidRingSize
	}

	name := cfg.Name
	if name == "" {
		name = "channel"
	}

	unlink := cfg.Unlink
	if unlink == nil {
		unlink = func() {}
	}

	c := &Channel{
		name:         name,
		regs:         cfg.Registers,
		rings:        cfg.Rings,
		x2i:          cfg.X2I,
		i2x:          cfg.I2X,
		irqAckOffset: cfg.IRQAckOffset,
		pending:      idpool.New[*pendingRecord](),
		asyncQ:       asyncqueue.New(),
		unlink:       unlink,
	}
	c.cachedTail = c.regs.LoadRegister(c.x2i.TailOffset)
	c.cachedHead = c.regs.LoadRegister(c.i2x.HeadOffset)

	c.worker = newWorker(name, cfg.WorkerOption, c.drainOnce, c.hasInboundWork)

	if cfg.RegisterInterrupt != nil {
		deregister, err := cfg.RegisterInterrupt(c.handleInterrupt)
		if err != nil {
			return nil, err
		}
		c.deregisterIRQ = deregister
	}

	return c, nil
}

// handleInterrupt is the interrupt handler: it must be short and
// non-blocking. It schedules the drain worker, then acknowledges the
// interrupt so the device's line is cleared.
func (c *Channel) handleInterrupt() {
	c.worker.Schedule()
	c.regs.StoreRegister(c.irqAckOffset, 0)
}

func (c *Channel) hasInboundWork() bool {
	tail := c.regs.LoadRegister(c.i2x.TailOffset)
	return c.cachedHead%c.i2x.Size != tail%c.i2x.Size
}

// Send frames msg, allocates a correlation ID, and writes it into the X2I
// ring. It never blocks waiting for ring space; on failure the ID and
// framed buffer are released before returning.
func (c *Channel) Send(msg Message) error {
	if atomic.LoadInt32(&c.destroyed) != 0 {
		return ErrClosed
	}
	if err := wire.ValidatePayload(msg.SendData, c.x2i.Size); err != nil {
		return err
	}

	frame := mempool.Malloc(wire.HeaderSize + len(msg.SendData))
	defer mempool.Free(frame)

	rec := &pendingRecord{handle: msg.Handle, callback: msg.Callback}
	id, err := c.pending.Allocate(rec)
	if err != nil {
		return err
	}

	wire.Encode(frame, id, msg.Opcode, msg.SendData)

	c.sendMu.Lock()
	writeErr := c.writeX2I(frame)
	c.sendMu.Unlock()
	if writeErr != nil {
		c.pending.Take(id)
		return writeErr
	}
	return nil
}

// writeX2I implements the three-case ring-write algorithm: fail with
// ErrNoSpace if the write would catch up to the consumer; fail if wrapping would not leave
// enough safe room at the front; otherwise wrap (tombstone + reset to 0)
// or write in place, then publish the new tail to both the cached copy and
// the device-visible register. Callers must hold sendMu.
func (c *Channel) writeX2I(frame []byte) error {
	d := c.x2i
	n := d.Size
	s := uint32(len(frame))
	h := c.regs.LoadRegister(d.HeadOffset)
	t := c.cachedTail

	if t < h && t+s >= h {
		return ErrNoSpace
	}
	if t >= h && t+s > n-4 {
		if s >= h {
			return ErrNoSpace
		}
		c.rings.WriteWord(d.Offset+t, wire.Tombstone)
		t = 0
	}

	c.rings.CopyIn(d.Offset+t, frame)
	t += s
	c.cachedTail = t
	c.regs.StoreRegister(d.TailOffset, t)
	return nil
}

// drainOnce reads and dispatches I2X messages one header at a time until
// the ring is observed empty or an invalid header is seen. It is only ever
// invoked by the worker, so cachedHead needs no synchronization.
func (c *Channel) drainOnce() {
	d := c.i2x
	n := d.Size

	for {
		tail := c.regs.LoadRegister(d.TailOffset)
		h := c.cachedHead
		if h%n == tail%n {
			return
		}
		if h == n {
			h = 0
		}

		word := c.rings.PeekWord(d.Offset + h)
		if word == wire.Tombstone {
			h = 0
			c.publishHead(h)
			continue
		}

		totalSize := word
		if totalSize+wire.HeaderSize > tail-h {
			log.Printf("mbox: channel %s: invalid inbound header at offset %d, dropping rest of drain", c.name, h)
			return
		}

		var hdrBuf [wire.HeaderSize]byte
		c.rings.CopyOut(d.Offset+h, hdrBuf[:])
		hdr := wire.Decode(hdrBuf[:])

		payload := make([]byte, hdr.TotalSize)
		c.rings.CopyOut(d.Offset+h+wire.HeaderSize, payload)

		c.dispatch(hdr, payload)

		h += wire.HeaderSize + uint32(hdr.Size)
		c.publishHead(h)
	}
}

func (c *Channel) publishHead(h uint32) {
	c.cachedHead = h
	c.regs.StoreRegister(c.i2x.HeadOffset, h)
}

func (c *Channel) dispatch(hdr wire.Header, payload []byte) {
	switch {
	case hdr.IsAsync():
		c.asyncQ.Push(asyncqueue.Record{Opcode: hdr.Opcode, Payload: payload})
	case hdr.HasMagic():
		rec, ok := c.pending.Take(hdr.ID)
		if !ok {
			log.Printf("mbox: channel %s: orphan response id=0x%08x, dropping", c.name, hdr.ID)
			return
		}
		rec.complete(payload, len(payload))
	default:
		log.Printf("mbox: channel %s: bad magic id=0x%08x, dropping", c.name, hdr.ID)
	}
}

// WaitAsync retrieves the next device-originated async message. If
// blocking is true, it waits on ctx until one arrives or ctx is canceled
// (returning ErrInterrupted); otherwise it returns ErrTryAgain immediately
// if the queue is empty.
func (c *Channel) WaitAsync(ctx context.Context, blocking bool) (asyncqueue.Record, error) {
	if blocking {
		return c.asyncQ.Wait(ctx)
	}
	return c.asyncQ.TryPop()
}

// Name returns the channel's diagnostic name.
func (c *Channel) Name() string { return c.name }

// Descriptors returns the X2I and I2X ring descriptors this channel was
// created with, for read-only introspection.
func (c *Channel) Descriptors() (x2i, i2x RingDesc) {
	return c.x2i, c.i2x
}

// Registers returns the mailbox register region backing this channel, for
// read-only introspection (live head/tail register snapshots).
func (c *Channel) Registers() *ringio.Region { return c.regs }

// Rings returns the ring-buffer region backing this channel, for read-only
// introspection (hex-dumping ring contents).
func (c *Channel) Rings() *ringio.Region { return c.rings }

// Destroy tears the channel down: deregisters the interrupt (so no new
// drain can be scheduled), stops the worker (flushing any in-flight run),
// cancels every outstanding pending callback with a nil response, frees
// the async queue, and unlinks from whatever registry owns this channel.
// Idempotent.
func (c *Channel) Destroy() {
	if !atomic.CompareAndSwapInt32(&c.destroyed, 0, 1) {
		return
	}
	if c.deregisterIRQ != nil {
		c.deregisterIRQ()
	}
	c.worker.Stop()

	for _, rec := range c.pending.DrainAll() {
		rec.complete(nil, 0)
	}
	c.asyncQ.Drain()

	c.unlink()
}
