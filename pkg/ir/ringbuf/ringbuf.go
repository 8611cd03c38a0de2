// Zaparoo IR
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo IR.
//
// Zaparoo IR is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo IR is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo IR.  If not, see <http://www.gnu.org/licenses/>.

// Package ringbuf implements a fixed-capacity ring of 32-bit timing samples
// shared between exactly one producer (a driver's sample callback) and
// exactly one consumer (the receive task).
//
// No locks are taken. The producer only ever stores the write index and the
// consumer only ever stores the read index, so publishing an index with an
// atomic store is enough to hand the slots between them. Using more than one
// producer or more than one consumer on the same Ring is not supported.
//
// One slot is always left empty so that a full ring can be told apart from an
// empty one: a Ring created with capacity C holds at most C-1 words.
package ringbuf

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxCapacity bounds the number of slots a single Ring may allocate.
const MaxCapacity = 1 << 20

// ErrCapacity is returned by New for capacities outside [2, MaxCapacity].
var ErrCapacity = errors.New("invalid ring buffer capacity")

type Ring struct {
	buf  []uint32
	size uint32
	r    atomic.Uint32
	w    atomic.Uint32
}

func New(capacity int) (*Ring, error) {
	if capacity < 2 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d", ErrCapacity, capacity)
	}
	return &Ring{
		buf:  make([]uint32, capacity),
		size: uint32(capacity),
	}, nil
}

// Cap returns the number of slots, one more than the words the ring can hold.
func (rb *Ring) Cap() int {
	return int(rb.size)
}

// Len returns the number of words waiting to be read.
func (rb *Ring) Len() int {
	w := rb.w.Load()
	r := rb.r.Load()
	return int((rb.size + w - r) % rb.size)
}

// IsFull reports whether another WriteWord would overwrite unread data.
func (rb *Ring) IsFull() bool {
	w := rb.w.Load()
	return (w+1)%rb.size == rb.r.Load()
}

// WriteWord stores v at the write cursor and advances it. It does not check
// for space; producers call IsFull first and handle overflow themselves.
func (rb *Ring) WriteWord(v uint32) {
	w := rb.w.Load()
	rb.buf[w] = v
	rb.w.Store((w + 1) % rb.size)
}

// Read copies up to len(out) words into out, advances the read cursor and
// returns the number of words copied.
func (rb *Ring) Read(out []uint32) int {
	r := rb.r.Load()
	n := rb.copyOut(out, r)
	rb.r.Store((r + uint32(n)) % rb.size)
	return n
}

// Peek is Read without advancing the read cursor.
func (rb *Ring) Peek(out []uint32) int {
	return rb.copyOut(out, rb.r.Load())
}

// Discard drops n words from the read side. Asking for more than Len drops
// everything that is buffered. It returns the number of words dropped.
func (rb *Ring) Discard(n int) int {
	if n <= 0 {
		return 0
	}
	n = min(n, rb.Len())
	r := rb.r.Load()
	rb.r.Store((r + uint32(n)) % rb.size)
	return n
}

// Reset empties the ring from the consumer side by moving the read cursor
// onto the write cursor. The producer must be quiescent while this runs.
func (rb *Ring) Reset() {
	rb.r.Store(rb.w.Load())
}

// copyOut splits the copy in two when the readable region wraps.
func (rb *Ring) copyOut(out []uint32, r uint32) int {
	n := min(len(out), rb.Len())
	if n == 0 {
		return 0
	}
	first := min(n, int(rb.size-r))
	copy(out[:first], rb.buf[r:int(r)+first])
	if first < n {
		copy(out[first:n], rb.buf[:n-first])
	}
	return n
}
