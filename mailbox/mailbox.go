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

// Package mailbox is the top-level container: it owns the MMIO register
// and ring-buffer regions shared by every channel probed off one device,
// and the lock protecting channel registration and teardown ordering.
package mailbox

import (
	"log"
	"sync"

	"github.com/cloudwego/mbox/channel"
	"github.com/cloudwego/mbox/concurrency/gopool"
	"github.com/cloudwego/mbox/ringio"
)

// Device identifies the owning device for log lines; it carries no
// behavior of its own (device probing and removal are out of scope here).
type Device struct {
	Name string
}

// Mailbox owns the register/ring regions for one device and the set of
// channels multiplexed over them.
type Mailbox struct {
	device Device

	registers *ringio.Region
	rings     *ringio.Region

	mu       sync.Mutex
	channels map[*channel.Channel]struct{}
}

// New creates a mailbox over the given register and ring-buffer regions.
// Both regions are supplied by the PCIe probe / MMIO discovery layer,
// which is out of scope for this package.
func New(device Device, registers, rings *ringio.Region) *Mailbox {
	return &Mailbox{
		device:    device,
		registers: registers,
		rings:     rings,
		channels:  make(map[*channel.Channel]struct{}),
	}
}

// ChannelConfig is channel.Config minus the fields Mailbox supplies itself
// (Registers, Rings, Unlink).
type ChannelConfig struct {
	Name               string
	X2I                channel.RingDesc
	I2X                channel.RingDesc
	IRQAckOffset       uint32
	RegisterInterrupt  func(handler func()) (deregister func(), err error)
	WorkerOption       *gopool.Option
}

// CreateChannel creates a channel backed by this mailbox's regions,
// registers it in the channel set, and arranges for Destroy to unlink it
// automatically. The mailbox lock is held only across the list mutation,
// never across interrupt registration or channel construction.
func (m *Mailbox) CreateChannel(cfg ChannelConfig) (*channel.Channel, error) {
	// ch is captured by reference in Unlink below; the closure only runs
	// from Channel.Destroy, well after this variable has been assigned.
	var ch *channel.Channel

	ch, err := channel.New(channel.Config{
		Name:              cfg.Name,
		Registers:         m.registers,
		Rings:             m.rings,
		X2I:               cfg.X2I,
		I2X:               cfg.I2X,
		IRQAckOffset:      cfg.IRQAckOffset,
		RegisterInterrupt: cfg.RegisterInterrupt,
		WorkerOption:      cfg.WorkerOption,
		Unlink: func() {
			m.mu.Lock()
			delete(m.channels, ch)
			m.mu.Unlock()
		},
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.channels[ch] = struct{}{}
	m.mu.Unlock()

	return ch, nil
}

// Destroy warns if any channel is still registered (a programming error —
// callers must destroy every channel before the mailbox) but proceeds
// regardless; it never force-destroys channels on the caller's behalf.
func (m *Mailbox) Destroy() {
	m.mu.Lock()
	n := len(m.channels)
	m.mu.Unlock()
	if n > 0 {
		log.Printf("mbox: mailbox %s destroyed with %d channel(s) still registered", m.device.Name, n)
	}
}

// ChannelCount returns the number of channels currently registered; mainly
// useful for tests and introspection.
func (m *Mailbox) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}
