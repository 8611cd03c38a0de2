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

package irdev

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/drivers/loopback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRecvTimeout keeps receive tests short while staying well above the
// scheduling jitter of an injected capture.
const testRecvTimeout = 30 * time.Millisecond

func newSubsystem(t *testing.T, opts ...Option) *Subsystem {
	t.Helper()
	s := New(opts...)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func openLoopback(
	t *testing.T,
	s *Subsystem,
	name string,
	cfg Config,
	opts ...loopback.Option,
) (*Device, *loopback.Driver) {
	t.Helper()
	drv := loopback.New(opts...)
	d, err := s.Register(name, drv)
	require.NoError(t, err)
	require.NoError(t, d.Open(cfg))
	return d, drv
}

func TestRegister(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)

	d, err := s.Register("ir0", loopback.New())
	require.NoError(t, err)
	assert.Equal(t, "ir0", d.Name())
	assert.False(t, d.IsOpen())

	found, err := s.Find("ir0")
	require.NoError(t, err)
	assert.Same(t, d, found)
}

func TestRegister_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		drv     driver.Driver
		wantErr error
		name    string
		devName string
	}{
		{name: "empty name", devName: "", drv: loopback.New(), wantErr: ErrInvalidParameter},
		{
			name:    "name too long",
			devName: strings.Repeat("x", MaxNameLength+1),
			drv:     loopback.New(),
			wantErr: ErrInvalidParameter,
		},
		{name: "nil driver", devName: "ir0", drv: nil, wantErr: ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newSubsystem(t)
			_, err := s.Register(tt.devName, tt.drv)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_MaxLengthName(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	_, err := s.Register(strings.Repeat("x", MaxNameLength), loopback.New())
	require.NoError(t, err)
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	_, err := s.Register("ir0", loopback.New())
	require.NoError(t, err)
	_, err = s.Register("ir0", loopback.New())
	require.ErrorIs(t, err, ErrDuplicateName)
	assert.Len(t, s.Devices(), 1)
}

func TestRegister_Full(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	for i := range MaxDevices {
		_, err := s.Register(string(rune('a'+i)), loopback.New())
		require.NoError(t, err)
	}
	_, err := s.Register("extra", loopback.New())
	require.ErrorIs(t, err, ErrRegistryFull)

	devs := s.Devices()
	require.Len(t, devs, MaxDevices)
	assert.Equal(t, "a", devs[0].Name())
	assert.Equal(t, "h", devs[MaxDevices-1].Name())
}

func TestFind_NotFound(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	_, err := s.Find("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubsystemsAreIndependent(t *testing.T) {
	t.Parallel()

	a := newSubsystem(t)
	b := newSubsystem(t)
	_, err := a.Register("ir0", loopback.New())
	require.NoError(t, err)
	_, err = b.Register("ir0", loopback.New())
	require.NoError(t, err)
}

func TestRecvTaskLifecycle(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	assert.False(t, s.RecvTaskRunning())

	tx, _ := openLoopback(t, s, "tx", Config{Mode: driver.ModeSend})
	assert.False(t, s.RecvTaskRunning(), "send only devices do not start the task")

	rx1, _ := openLoopback(t, s, "rx1", Config{Mode: driver.ModeRecv})
	assert.True(t, s.RecvTaskRunning())
	rx2, _ := openLoopback(t, s, "rx2", Config{Mode: driver.ModeSendRecv})

	require.NoError(t, rx1.Close())
	assert.True(t, s.RecvTaskRunning())

	require.NoError(t, rx2.RecvStop())
	assert.False(t, s.RecvTaskRunning())
	require.NoError(t, rx2.RecvStop(), "stopping twice is a no-op")

	require.NoError(t, rx2.RecvStart())
	assert.True(t, s.RecvTaskRunning())

	require.NoError(t, rx2.Close())
	assert.False(t, s.RecvTaskRunning())
	require.NoError(t, tx.Close())
}

type countingInhibitor struct {
	acquired atomic.Int32
	released atomic.Int32
}

func (c *countingInhibitor) Acquire() error {
	c.acquired.Add(1)
	return nil
}

func (c *countingInhibitor) Release() error {
	c.released.Add(1)
	return nil
}

func TestInhibitorHeldWhileReceiving(t *testing.T) {
	t.Parallel()

	inh := &countingInhibitor{}
	s := newSubsystem(t, WithInhibitor(inh))
	cfg := Config{Mode: driver.ModeRecv, Protocol: ProtocolTimecode, RecvTimeout: testRecvTimeout}
	d, drv := openLoopback(t, s, "rx", cfg)

	require.NoError(t, drv.Inject(100, 200, 300))
	f, err := d.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	d.RecvRelease(f)

	assert.Eventually(t, func() bool {
		return inh.acquired.Load() == 1 && inh.released.Load() == 1
	}, time.Second, time.Millisecond)
}
