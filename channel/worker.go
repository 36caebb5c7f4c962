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

import (
	"sync"
	"sync/atomic"

	"github.com/cloudwego/mbox/concurrency/gopool"
)

// worker runs a single-consumer drain loop on a dedicated gopool, dispatched
// from the interrupt handler. Repeated Schedule calls arriving before the
// drain starts, or while it is already running, coalesce into the run that
// is in flight or about to start: the interrupt handler must stay
// non-blocking, so it can never wait for the drain to finish, only ask for
// one to happen.
type worker struct {
	pool *gopool.GoPool

	drain   func()
	hasWork func() bool

	scheduled int32

	stopped int32
	wg      sync.WaitGroup
}

func newWorker(name string, opt *gopool.Option, drain func(), hasWork func() bool) *worker {
	if opt == nil {
		opt = gopool.DefaultOption()
	}
	return &worker{
		pool:    gopool.NewGoPool("mbox-"+name, opt),
		drain:   drain,
		hasWork: hasWork,
	}
}

// Schedule asks for a drain run. It is safe to call from an interrupt
// handler: it never blocks and never runs drain synchronously.
func (w *worker) Schedule() {
	if atomic.LoadInt32(&w.stopped) != 0 {
		return
	}
	if atomic.CompareAndSwapInt32(&w.scheduled, 0, 1) {
		w.wg.Add(1)
		w.pool.Go(w.runLoop)
	}
}

// runLoop drains, then rechecks for work that may have arrived between the
// last empty check inside drain and the scheduled flag being cleared, so a
// Schedule call that loses the CAS race during that window is never lost.
func (w *worker) runLoop() {
	defer w.wg.Done()
	for {
		w.drain()
		atomic.StoreInt32(&w.scheduled, 0)
		if atomic.LoadInt32(&w.stopped) != 0 {
			return
		}
		if !w.hasWork() {
			return
		}
		if !atomic.CompareAndSwapInt32(&w.scheduled, 0, 1) {
			// another goroutine's Schedule call already claimed the
			// next run; it will observe the same pending work.
			return
		}
		// keep draining on this goroutine instead of spawning a new one
		// via the pool; still single-consumer, just skips a round-trip.
	}
}

// Stop prevents any further drain runs from starting and blocks until any
// in-flight run has returned. Used by channel teardown so that no drain
// is racing the pending-map/async-queue drain that follows it.
func (w *worker) Stop() {
	atomic.StoreInt32(&w.stopped, 1)
	w.wg.Wait()
}
