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

package asyncqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryPopEmpty(t *testing.T) {
	q := New()
	_, err := q.TryPop()
	require.ErrorIs(t, err, ErrTryAgain)
}

func TestPushTryPopFIFO(t *testing.T) {
	q := New()
	q.Push(Record{Opcode: 1})
	q.Push(Record{Opcode: 2})

	r1, err := q.TryPop()
	require.NoError(t, err)
	require.Equal(t, uint32(1), r1.Opcode)

	r2, err := q.TryPop()
	require.NoError(t, err)
	require.Equal(t, uint32(2), r2.Opcode)

	_, err = q.TryPop()
	require.ErrorIs(t, err, ErrTryAgain)
}

func TestWaitWakesOnPush(t *testing.T) {
	q := New()
	done := make(chan Record, 1)
	go func() {
		r, err := q.Wait(context.Background())
		require.NoError(t, err)
		done <- r
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(Record{Opcode: 99})

	select {
	case r := <-done:
		require.Equal(t, uint32(99), r.Opcode)
	case <-time.After(time.Second):
		t.Fatal("Wait never woke up")
	}
}

func TestWaitInterruptedByCancel(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Wait(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("Wait never unblocked on cancel")
	}
}

func TestDrain(t *testing.T) {
	q := New()
	q.Push(Record{Opcode: 1})
	q.Push(Record{Opcode: 2})

	drained := q.Drain()
	require.Len(t, drained, 2)

	_, err := q.TryPop()
	require.ErrorIs(t, err, ErrTryAgain)
}
