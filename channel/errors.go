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
	"errors"

	"github.com/cloudwego/mbox/asyncqueue"
	"github.com/cloudwego/mbox/idpool"
	"github.com/cloudwego/mbox/wire"
)

var (
	// ErrInvalidArgument is returned by Send for a misaligned, oversize,
	// or tombstone-leading payload.
	ErrInvalidArgument = wire.ErrInvalidArgument

	// ErrResourceExhausted is returned by Send when all 256 pending-ID
	// slots are in use.
	ErrResourceExhausted = idpool.ErrResourceExhausted

	// ErrNoSpace is returned by Send when the X2I ring has no room for
	// the framed message; Send never blocks waiting for space.
	ErrNoSpace = errors.New("mbox: no space")

	// ErrTryAgain is returned by WaitAsync(blocking=false) when the async
	// queue is empty.
	ErrTryAgain = asyncqueue.ErrTryAgain

	// ErrInterrupted is returned by WaitAsync(blocking=true) when its
	// context is canceled before a message arrives.
	ErrInterrupted = asyncqueue.ErrInterrupted

	// ErrInvalidRingSize is returned by New when a ring size is not a
	// power of two.
	ErrInvalidRingSize = errors.New("mbox: ring size must be a power of two")

	// ErrClosed is returned by Send once Destroy has been called.
	ErrClosed = errors.New("mbox: channel closed")
)
