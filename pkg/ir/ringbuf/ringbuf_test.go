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

package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{-1, 0, 1, MaxCapacity + 1} {
		_, err := New(capacity)
		require.ErrorIs(t, err, ErrCapacity, "capacity %d", capacity)
	}
}

func TestRing_Empty(t *testing.T) {
	t.Parallel()

	rb, err := New(8)
	require.NoError(t, err)

	assert.Equal(t, 8, rb.Cap())
	assert.Equal(t, 0, rb.Len())
	assert.False(t, rb.IsFull())

	out := make([]uint32, 4)
	assert.Equal(t, 0, rb.Read(out))
	assert.Equal(t, 0, rb.Peek(out))
	assert.Equal(t, 0, rb.Discard(3))
}

func TestRing_FullKeepsOneSlotFree(t *testing.T) {
	t.Parallel()

	rb, err := New(4)
	require.NoError(t, err)

	for i := range 3 {
		require.False(t, rb.IsFull(), "full after %d writes", i)
		rb.WriteWord(uint32(i))
	}
	assert.True(t, rb.IsFull())
	assert.Equal(t, 3, rb.Len())

	out := make([]uint32, 3)
	require.Equal(t, 3, rb.Read(out))
	assert.Equal(t, []uint32{0, 1, 2}, out)
	assert.Equal(t, 0, rb.Len())
	assert.False(t, rb.IsFull())
}

func TestRing_ReadWraps(t *testing.T) {
	t.Parallel()

	rb, err := New(5)
	require.NoError(t, err)

	for i := range 3 {
		rb.WriteWord(uint32(i))
	}
	require.Equal(t, 3, rb.Discard(3))

	// write cursor now wraps past the end of the backing array
	for i := 10; i < 14; i++ {
		rb.WriteWord(uint32(i))
	}
	require.True(t, rb.IsFull())

	out := make([]uint32, 4)
	require.Equal(t, 4, rb.Peek(out))
	assert.Equal(t, []uint32{10, 11, 12, 13}, out)
	assert.Equal(t, 4, rb.Len(), "peek must not consume")

	clear(out)
	require.Equal(t, 4, rb.Read(out))
	assert.Equal(t, []uint32{10, 11, 12, 13}, out)
	assert.Equal(t, 0, rb.Len())
}

func TestRing_DiscardClamps(t *testing.T) {
	t.Parallel()

	rb, err := New(16)
	require.NoError(t, err)

	for i := range 5 {
		rb.WriteWord(uint32(i))
	}
	assert.Equal(t, 5, rb.Discard(100))
	assert.Equal(t, 0, rb.Len())
	assert.Equal(t, 0, rb.Discard(-1))
}

func TestRing_ReadShortOutput(t *testing.T) {
	t.Parallel()

	rb, err := New(16)
	require.NoError(t, err)

	for i := range 6 {
		rb.WriteWord(uint32(i))
	}
	out := make([]uint32, 2)
	require.Equal(t, 2, rb.Read(out))
	assert.Equal(t, []uint32{0, 1}, out)
	assert.Equal(t, 4, rb.Len())
}

func TestRing_Reset(t *testing.T) {
	t.Parallel()

	rb, err := New(8)
	require.NoError(t, err)

	rb.WriteWord(1)
	rb.WriteWord(2)
	rb.Reset()
	assert.Equal(t, 0, rb.Len())

	rb.WriteWord(3)
	out := make([]uint32, 1)
	require.Equal(t, 1, rb.Read(out))
	assert.Equal(t, uint32(3), out[0])
}

func TestRing_ConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	const total = 20000

	rb, err := New(64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(0); i < total; {
			if rb.IsFull() {
				continue
			}
			rb.WriteWord(i)
			i++
		}
	}()

	got := make([]uint32, 0, total)
	out := make([]uint32, 16)
	for len(got) < total {
		n := rb.Read(out)
		got = append(got, out[:n]...)
	}
	wg.Wait()

	for i, v := range got {
		if v != uint32(i) {
			t.Fatalf("sample %d out of order: got %d", i, v)
		}
	}
}
