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
	"fmt"
	"math"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/rs/zerolog/log"
)

// Command selects a Control operation.
type Command uint8

const (
	// CmdGetStatus returns a Status. No argument.
	CmdGetStatus Command = iota
	// CmdHwReset resets the transmitter. No argument.
	CmdHwReset
	// CmdRecvStart rejoins the receive task after CmdRecvStop.
	CmdRecvStart
	// CmdRecvStop stops capturing without closing the device.
	CmdRecvStop
	// CmdSetCallback takes a Callback, or nil to go back to the queue.
	CmdSetCallback
	// CmdSetSendDelay takes a time.Duration placed between repeats.
	CmdSetSendDelay
	// CmdSetRecvStackSize takes an int.
	CmdSetRecvStackSize
	// CmdSetIrqEnableTime takes a time.Duration forwarded to the driver.
	CmdSetIrqEnableTime
)

func (c Command) String() string {
	switch c {
	case CmdGetStatus:
		return "get_status"
	case CmdHwReset:
		return "hw_reset"
	case CmdRecvStart:
		return "recv_start"
	case CmdRecvStop:
		return "recv_stop"
	case CmdSetCallback:
		return "set_callback"
	case CmdSetSendDelay:
		return "set_send_delay"
	case CmdSetRecvStackSize:
		return "set_recv_stack_size"
	case CmdSetIrqEnableTime:
		return "set_irq_enable_time"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}

// Control runs cmd with arg. Only CmdGetStatus returns a value.
func (d *Device) Control(cmd Command, arg any) (any, error) {
	switch cmd {
	case CmdGetStatus:
		return d.Status(), nil
	case CmdHwReset:
		return nil, d.HwReset()
	case CmdRecvStart:
		return nil, d.RecvStart()
	case CmdRecvStop:
		return nil, d.RecvStop()
	case CmdSetCallback:
		switch cb := arg.(type) {
		case nil:
			d.SetCallback(nil)
		case Callback:
			d.SetCallback(cb)
		case func(*Device, Frame):
			d.SetCallback(cb)
		default:
			return nil, fmt.Errorf("%w: %s wants a Callback, got %T", ErrInvalidParameter, cmd, arg)
		}
		return nil, nil
	case CmdSetSendDelay:
		v, ok := arg.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants a time.Duration, got %T", ErrInvalidParameter, cmd, arg)
		}
		return nil, d.SetSendDelay(v)
	case CmdSetRecvStackSize:
		v, ok := arg.(int)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants an int, got %T", ErrInvalidParameter, cmd, arg)
		}
		return nil, d.sub.SetRecvStackSize(v)
	case CmdSetIrqEnableTime:
		v, ok := arg.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants a time.Duration, got %T", ErrInvalidParameter, cmd, arg)
		}
		return nil, d.SetIrqEnableTime(v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotSupported, cmd)
	}
}

// HwReset asks the driver to reset the transmitter. A send in progress
// fails with ErrHardware.
func (d *Device) HwReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open.Load() {
		return fmt.Errorf("%w: %s", ErrNotOpen, d.name)
	}
	if !d.cfg.Mode.CanSend() {
		return fmt.Errorf("%w: %s is receive only", ErrNotSupported, d.name)
	}

	err := d.drv.StatusNotify(driver.StateSendHwReset, nil)
	d.finishSend(fmt.Errorf("%w: %w", ErrHardware, errSendReset))
	if err != nil {
		return fmt.Errorf("%w: reset %s: %w", ErrHardware, d.name, err)
	}
	return nil
}

// RecvStart resumes capture on a device stopped with RecvStop.
func (d *Device) RecvStart() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess, err := d.session()
	if err != nil {
		return err
	}
	if sess.active.Load() {
		return nil
	}
	if err := d.drv.StatusNotify(driver.StateRecvHwInit, nil); err != nil {
		return fmt.Errorf("%w: recv init %s: %w", ErrHardware, d.name, err)
	}
	sess.active.Store(true)
	d.sub.joinRecv()
	log.Debug().Str("device", d.name).Msg("receive started")
	return nil
}

// RecvStop stops capture and discards any partial frame. Queued frames stay
// readable.
func (d *Device) RecvStop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess, err := d.session()
	if err != nil {
		return err
	}
	if !sess.active.Swap(false) {
		return nil
	}
	d.sub.leaveRecv()
	if err := d.drv.StatusNotify(driver.StateRecvHwDeinit, nil); err != nil {
		return fmt.Errorf("%w: recv deinit %s: %w", ErrHardware, d.name, err)
	}
	log.Debug().Str("device", d.name).Msg("receive stopped")
	return nil
}

// SetCallback routes received frames to cb instead of the queue. With NEC
// this also switches to incremental decoding: the frame is delivered as soon
// as it is complete, then once more for every repeat block with RepeatCount
// counting up. A nil cb restores queued delivery. See Callback for the
// methods cb must not call.
func (d *Device) SetCallback(cb Callback) {
	if cb == nil {
		d.cb.Store(nil)
		return
	}
	d.cb.Store(&cb)
}

// SetSendDelay sets the gap between repeated frames, rounded down to whole
// microseconds.
func (d *Device) SetSendDelay(delay time.Duration) error {
	us := delay / time.Microsecond
	if us < 0 || us > math.MaxUint32 {
		return fmt.Errorf("%w: send delay %s", ErrInvalidParameter, delay)
	}
	d.sendDelay.Store(uint32(us))
	return nil
}

// SetIrqEnableTime forwards the capture interrupt hold-off to the driver.
func (d *Device) SetIrqEnableTime(t time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open.Load() {
		return fmt.Errorf("%w: %s", ErrNotOpen, d.name)
	}
	if t < 0 {
		return fmt.Errorf("%w: irq enable time %s", ErrInvalidParameter, t)
	}
	if err := d.drv.StatusNotify(driver.StateIrqEnableTimeSet, t); err != nil {
		return fmt.Errorf("%w: irq enable time %s: %w", ErrHardware, d.name, err)
	}
	d.irqEnableTime = t
	return nil
}

// SetRecvStackSize records the stack size requested for the receive task.
// Goroutine stacks grow on demand so the value is informational; it is
// reported by Status.
func (s *Subsystem) SetRecvStackSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: stack size %d", ErrInvalidParameter, n)
	}
	s.mu.Lock()
	s.stackSize = n
	s.mu.Unlock()
	return nil
}

func (s *Subsystem) recvStackSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stackSize
}
