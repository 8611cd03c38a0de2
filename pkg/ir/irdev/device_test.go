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
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/ringbuf"
	"github.com/ZaparooProject/zaparoo-ir/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestOpen_DriverFailure(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	drv := mocks.NewMockDriver()
	drv.On("Open", driver.ModeRecv, mock.Anything).Return(errBoom)

	d, err := s.Register("ir0", drv)
	require.NoError(t, err)

	err = d.Open(Config{Mode: driver.ModeRecv})
	require.ErrorIs(t, err, ErrHardware)
	assert.False(t, d.IsOpen())
	assert.False(t, s.RecvTaskRunning())
	drv.AssertExpectations(t)
}

func TestOpen_Twice(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	d, _ := openLoopback(t, s, "ir0", Config{})
	require.ErrorIs(t, d.Open(Config{}), ErrAlreadyOpen)
}

func TestOpen_InvalidConfig(t *testing.T) {
	t.Parallel()

	badTolerance := nec.DefaultConfig
	badTolerance.Logic1Err = 100

	tests := []struct {
		wantErr error
		name    string
		cfg     Config
	}{
		{name: "mode", cfg: Config{Mode: driver.ModeMax}, wantErr: ErrInvalidParameter},
		{name: "protocol", cfg: Config{Protocol: ProtocolMax}, wantErr: ErrInvalidParameter},
		{name: "tolerance", cfg: Config{Protocol: ProtocolNEC, NEC: badTolerance}, wantErr: ErrInvalidParameter},
		{name: "tiny buffer", cfg: Config{RecvBufSize: 2}, wantErr: ErrInvalidParameter},
		{name: "queue depth", cfg: Config{RecvQueueDepth: 1000}, wantErr: ErrInvalidParameter},
		{name: "timeout", cfg: Config{RecvTimeout: time.Microsecond}, wantErr: ErrInvalidParameter},
		{
			name:    "huge buffer",
			cfg:     Config{Mode: driver.ModeRecv, RecvBufSize: ringbuf.MaxCapacity + 1},
			wantErr: ErrAllocationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newSubsystem(t)
			drv := mocks.NewMockDriver()
			d, err := s.Register("ir0", drv)
			require.NoError(t, err)

			require.ErrorIs(t, d.Open(tt.cfg), tt.wantErr)
			assert.False(t, d.IsOpen())
			drv.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
		})
	}
}

func TestClose_NotOpen(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	d, err := s.Register("ir0", mocks.NewMockDriver())
	require.NoError(t, err)
	require.ErrorIs(t, d.Close(), ErrNotOpen)
}

func TestClose_DriverFailure(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	drv := mocks.NewMockDriver()
	drv.On("Close", driver.ModeSend).Return(errBoom)
	drv.SetupSuccess()

	d, err := s.Register("ir0", drv)
	require.NoError(t, err)
	require.NoError(t, d.Open(Config{Mode: driver.ModeSend}))

	require.ErrorIs(t, d.Close(), ErrHardware)
	assert.False(t, d.IsOpen())
}

func TestReopen(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	cfg := Config{Mode: driver.ModeRecv, Protocol: ProtocolTimecode, RecvTimeout: testRecvTimeout}
	d, drv := openLoopback(t, s, "ir0", cfg)

	require.NoError(t, drv.Inject(100, 200, 300))
	require.Eventually(t, func() bool { return d.Status().Queued == 1 }, time.Second, time.Millisecond)
	require.NoError(t, d.Close())

	require.NoError(t, d.Open(cfg))
	_, err := d.Recv(t.Context(), 0)
	require.ErrorIs(t, err, ErrTimeout, "frames do not survive a close")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	require.NoError(t, s.SetRecvStackSize(4096))
	d, _ := openLoopback(t, s, "ir0", Config{Mode: driver.ModeSendRecv, Protocol: ProtocolNEC})
	require.NoError(t, d.SetSendDelay(5*time.Millisecond))

	v, err := d.Control(CmdGetStatus, nil)
	require.NoError(t, err)
	st, ok := v.(Status)
	require.True(t, ok)

	assert.Equal(t, "ir0", st.Name)
	assert.True(t, st.Open)
	assert.True(t, st.RecvActive)
	assert.Equal(t, driver.ModeSendRecv, st.Mode)
	assert.Equal(t, ProtocolNEC, st.Protocol)
	assert.Equal(t, SendIdle, st.SendState)
	assert.Equal(t, RecvIdle, st.RecvState)
	assert.Equal(t, 5*time.Millisecond, st.SendDelay)
	assert.Equal(t, 4096, st.RecvStackSize)
	assert.False(t, st.Callback)
}

func TestControl_ArgumentTypes(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	d, _ := openLoopback(t, s, "ir0", Config{})

	tests := []struct {
		arg  any
		name string
		cmd  Command
	}{
		{name: "callback", cmd: CmdSetCallback, arg: 42},
		{name: "send delay", cmd: CmdSetSendDelay, arg: 5},
		{name: "stack size", cmd: CmdSetRecvStackSize, arg: "big"},
		{name: "irq time", cmd: CmdSetIrqEnableTime, arg: uint32(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Control(tt.cmd, tt.arg)
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}

	_, err := d.Control(Command(200), nil)
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestControl_Values(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	drv := mocks.NewMockDriver()
	drv.On("StatusNotify", driver.StateIrqEnableTimeSet, 5*time.Millisecond).Return(nil).Once()
	drv.SetupSuccess()
	d, err := s.Register("ir0", drv)
	require.NoError(t, err)
	require.NoError(t, d.Open(Config{Mode: driver.ModeSend}))

	_, err = d.Control(CmdSetIrqEnableTime, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, d.Status().IrqEnableTime)

	_, err = d.Control(CmdSetSendDelay, -time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = d.Control(CmdSetRecvStackSize, 0)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = d.Control(CmdSetCallback, func(*Device, Frame) {})
	require.NoError(t, err)
	assert.True(t, d.Status().Callback)
	_, err = d.Control(CmdSetCallback, nil)
	require.NoError(t, err)
	assert.False(t, d.Status().Callback)

	require.ErrorIs(t, d.RecvStart(), ErrNotSupported, "send only device has no receiver")
	drv.AssertCalled(t, "StatusNotify", driver.StateIrqEnableTimeSet, 5*time.Millisecond)
}

func TestControl_IrqEnableTimeDriverFailure(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	drv := mocks.NewMockDriver()
	drv.On("StatusNotify", driver.StateIrqEnableTimeSet, mock.Anything).Return(errBoom)
	drv.SetupSuccess()
	d, err := s.Register("ir0", drv)
	require.NoError(t, err)
	require.NoError(t, d.Open(Config{Mode: driver.ModeSend}))

	require.ErrorIs(t, d.SetIrqEnableTime(time.Millisecond), ErrHardware)
	assert.Zero(t, d.Status().IrqEnableTime)
}

func TestControl_RequiresOpen(t *testing.T) {
	t.Parallel()

	s := newSubsystem(t)
	d, err := s.Register("ir0", mocks.NewMockDriver())
	require.NoError(t, err)

	require.ErrorIs(t, d.HwReset(), ErrNotOpen)
	require.ErrorIs(t, d.RecvStart(), ErrNotOpen)
	require.ErrorIs(t, d.RecvStop(), ErrNotOpen)
	require.ErrorIs(t, d.SetIrqEnableTime(time.Millisecond), ErrNotOpen)
	assert.False(t, d.Status().Open)
}
