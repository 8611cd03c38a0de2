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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/ringbuf"
	"github.com/rs/zerolog/log"
)

const closePollInterval = 10 * time.Millisecond

// Callback receives frames in place of the device queue. It runs on the
// shared receive task, which Close waits for while holding the device lock,
// so it must not call Open, Close, Status, Control, HwReset, RecvStart,
// RecvStop or SetIrqEnableTime on any device.
type Callback func(d *Device, f Frame)

type Device struct {
	sub  *Subsystem
	drv  driver.Driver
	recv atomic.Pointer[recvSession]
	cb   atomic.Pointer[Callback]
	name string
	send sendInfo
	cfg  Config
	// irqEnableTime is the last value forwarded with StateIrqEnableTimeSet.
	irqEnableTime time.Duration
	sendDelay     atomic.Uint32
	open          atomic.Bool
	// mu serialises Open, Close and Control.
	mu syncutil.Mutex
	// sendMu guards sendState and send.
	sendMu    syncutil.Mutex
	sendState SendState
}

func newDevice(s *Subsystem, name string, drv driver.Driver) *Device {
	return &Device{
		sub:  s,
		name: name,
		drv:  drv,
	}
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) IsOpen() bool {
	return d.open.Load()
}

// Open configures the device and starts the hardware. Receive-capable
// devices join the shared receive task.
func (d *Device) Open(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open.Load() {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, d.name)
	}

	var sess *recvSession
	if cfg.Mode.CanRecv() {
		var err error
		sess, err = newRecvSession(d, cfg)
		if err != nil {
			return err
		}
	}

	err := d.drv.Open(cfg.Mode, driver.Callbacks{
		OutputFinished: d.onOutputFinished,
		Received:       d.onReceived,
	})
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrHardware, d.name, err)
	}

	d.cfg = cfg
	d.sendMu.Lock()
	d.sendState = SendIdle
	d.send = sendInfo{}
	d.sendMu.Unlock()

	if sess != nil {
		d.recv.Store(sess)
		sess.active.Store(true)
		d.sub.joinRecv()
	}
	d.open.Store(true)

	log.Info().
		Str("device", d.name).
		Stringer("mode", cfg.Mode).
		Stringer("protocol", cfg.Protocol).
		Msg("opened ir device")
	return nil
}

// Close waits for any send in flight, drops buffered frames, leaves the
// receive task and closes the hardware.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open.Load() {
		return fmt.Errorf("%w: %s", ErrNotOpen, d.name)
	}
	d.open.Store(false)

	for d.SendState() != SendIdle {
		d.sub.clock.Sleep(closePollInterval)
	}

	if sess := d.recv.Swap(nil); sess != nil {
		if sess.active.Swap(false) {
			d.sub.leaveRecv()
		}
		dropped := sess.drain()
		if dropped > 0 {
			log.Debug().Msgf("dropped %d unread frames from %s", dropped, d.name)
		}
	}

	if err := d.drv.Close(d.cfg.Mode); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrHardware, d.name, err)
	}
	log.Info().Str("device", d.name).Msg("closed ir device")
	return nil
}

// Status is a snapshot of a device.
type Status struct {
	Name          string
	Mode          driver.Mode
	Protocol      Protocol
	SendState     SendState
	RecvState     RecvState
	SendDelay     time.Duration
	IrqEnableTime time.Duration
	Queued        int
	Buffered      int
	RecvStackSize int
	Open          bool
	RecvActive    bool
	Callback      bool
}

func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statusLocked()
}

func (d *Device) statusLocked() Status {
	st := Status{
		Name:          d.name,
		Open:          d.open.Load(),
		Mode:          d.cfg.Mode,
		Protocol:      d.cfg.Protocol,
		SendState:     d.SendState(),
		RecvState:     RecvIdle,
		SendDelay:     time.Duration(d.sendDelay.Load()) * time.Microsecond,
		IrqEnableTime: d.irqEnableTime,
		RecvStackSize: d.sub.recvStackSize(),
		Callback:      d.cb.Load() != nil,
	}
	if sess := d.recv.Load(); sess != nil {
		st.RecvState = sess.State()
		st.RecvActive = sess.active.Load()
		st.Queued = len(sess.queue)
		st.Buffered = sess.ring.Len()
	}
	return st
}

// session returns the receive session of an open, receive-capable device.
func (d *Device) session() (*recvSession, error) {
	if !d.open.Load() {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, d.name)
	}
	sess := d.recv.Load()
	if sess == nil {
		return nil, fmt.Errorf("%w: %s is send only", ErrNotSupported, d.name)
	}
	return sess, nil
}

func newRecvSession(d *Device, cfg Config) (*recvSession, error) {
	ring, err := ringbuf.New(cfg.RecvBufSize)
	if err != nil {
		if errors.Is(err, ringbuf.ErrCapacity) {
			return nil, fmt.Errorf("%w: receive buffer: %w", ErrAllocationFailed, err)
		}
		return nil, err
	}

	sess := &recvSession{
		dev:     d,
		cfg:     cfg,
		ring:    ring,
		scratch: make([]uint32, ring.Cap()+1),
		queue:   make(chan Frame, cfg.RecvQueueDepth),
	}
	sess.overflowLog.Interval = time.Second
	sess.dropLog.Interval = time.Second

	if cfg.Protocol == ProtocolNEC {
		tol, err := nec.NewTolerance(cfg.NEC)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		sess.tol = tol
	}
	return sess, nil
}
