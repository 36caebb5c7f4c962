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

// Package idpool is the channel's pending-message-ID allocator: a fixed
// 256-slot table with cyclic allocation, so a response carrying a just-freed
// ID is unlikely to collide with one reissued moments later.
package idpool

import (
	"errors"
	"sync"

	"github.com/cloudwego/mbox/container/ring"
	"github.com/cloudwego/mbox/wire"
)

// NumSlots is the fixed size of the pending-ID space.
const NumSlots = 256

// ErrResourceExhausted is returned by Allocate when all NumSlots are in use.
var ErrResourceExhausted = errors.New("mbox: resource exhausted")

type entry[V any] struct {
	used  bool
	value V
}

// Pool is a cyclic allocator mapping a 24-bit slot index to a caller value,
// exposed to the outside world as a magic-tagged 32-bit ID (see
// wire.IDMagic). It is safe for concurrent use by multiple sender
// goroutines and the single receive worker.
type Pool[V any] struct {
	mu     sync.Mutex
	slots  *ring.Ring[entry[V]]
	cursor int
}

// New returns an empty pool of NumSlots entries.
func New[V any]() *Pool[V] {
	return &Pool[V]{slots: ring.NewFromSlice(make([]entry[V], NumSlots))}
}

// Allocate claims the next free slot starting from the cursor and stores v
// in it, returning a magic-tagged ID. It returns ErrResourceExhausted if
// every slot is occupied.
func (p *Pool[V]) Allocate(v V) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < NumSlots; i++ {
		idx := (p.cursor + i) % NumSlots
		item, _ := p.slots.Get(idx)
		if !item.Value().used {
			e := item.Pointer()
			e.used = true
			e.value = v
			p.cursor = (idx + 1) % NumSlots
			return wire.IDMagic | uint32(idx), nil
		}
	}
	return 0, ErrResourceExhausted
}

// Take removes and returns the value stored for id, if any slot is
// currently occupied for it. The caller is expected to have already
// checked wire.Header.HasMagic before calling Take with an inbound ID.
func (p *Pool[V]) Take(id uint32) (V, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero V
	idx := id & wire.IDIndexMask
	if idx >= NumSlots {
		return zero, false
	}
	item, _ := p.slots.Get(int(idx))
	if !item.Value().used {
		return zero, false
	}
	e := item.Pointer()
	v := e.value
	e.used = false
	e.value = zero
	return v, true
}

// DrainAll empties the pool and returns every value that was still
// occupying a slot, in slot order. Used by channel teardown to deliver a
// cancellation to every outstanding caller; the lock is released before
// the caller invokes any callback, per the no-lock-across-callbacks rule.
func (p *Pool[V]) DrainAll() []V {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []V
	var zero V
	p.slots.Do(func(e *entry[V]) {
		if e.used {
			out = append(out, e.value)
			e.used = false
			e.value = zero
		}
	})
	return out
}
