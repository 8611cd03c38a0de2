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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/rs/zerolog/log"
)

// SendTimeout bounds how long Send waits for the driver to play a frame.
const SendTimeout = 20 * time.Second

type SendState uint8

const (
	SendIdle SendState = iota
	SendBuilding
	SendSending
	SendFinished
)

func (s SendState) String() string {
	switch s {
	case SendIdle:
		return "idle"
	case SendBuilding:
		return "building"
	case SendSending:
		return "sending"
	case SendFinished:
		return "finished"
	default:
		return fmt.Sprintf("send_state(%d)", uint8(s))
	}
}

// sendInfo is the transmit progress of one Send call.
type sendInfo struct {
	done      chan error
	buf       []uint32
	cursor    int
	remaining int
	freq      uint32
}

// SendState reports the transmit state machine position.
func (d *Device) SendState() SendState {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	return d.sendState
}

// Send transmits data count times at freqHz and blocks until the driver has
// played every duration, ctx is done or SendTimeout elapses. A freqHz of 0
// selects the NEC carrier. Repeats are separated by the send delay set with
// SetSendDelay.
func (d *Device) Send(ctx context.Context, freqHz uint32, data Frame, count uint8) error {
	if !d.open.Load() {
		return fmt.Errorf("%w: %s", ErrNotOpen, d.name)
	}
	if !d.cfg.Mode.CanSend() {
		return fmt.Errorf("%w: %s is receive only", ErrNotSupported, d.name)
	}
	if count == 0 {
		return fmt.Errorf("%w: send count must be at least 1", ErrInvalidParameter)
	}
	if data == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidParameter)
	}
	if freqHz == 0 {
		freqHz = nec.Carrier
	}

	d.sendMu.Lock()
	if d.sendState != SendIdle {
		d.sendMu.Unlock()
		return fmt.Errorf("%w: %s is sending", ErrBusy, d.name)
	}
	if sess := d.recv.Load(); sess != nil && sess.State() != RecvIdle {
		d.sendMu.Unlock()
		return fmt.Errorf("%w: %s is receiving", ErrBusy, d.name)
	}
	d.sendState = SendBuilding
	d.sendMu.Unlock()

	buf, err := d.buildTimecode(data)
	if err != nil {
		d.setSendState(SendIdle)
		return err
	}

	done := make(chan error, 1)
	d.sendMu.Lock()
	d.send = sendInfo{
		buf:       buf,
		remaining: int(count) - 1,
		freq:      freqHz,
		done:      done,
	}
	d.sendState = SendSending
	d.sendMu.Unlock()

	log.Debug().
		Str("device", d.name).
		Stringer("protocol", data.Protocol()).
		Int("words", len(buf)).
		Uint8("count", count).
		Msg("sending ir frame")

	if err := d.drv.StatusNotify(driver.StatePreSend, nil); err != nil {
		d.finishSend(fmt.Errorf("%w: pre send: %w", ErrHardware, err))
	}

	timeout := d.sub.clock.After(SendTimeout)
	select {
	case err := <-done:
		return err
	case <-timeout:
		if d.abortSend(done) {
			log.Warn().Str("device", d.name).Msg("ir send timed out")
			return fmt.Errorf("%w: send on %s", ErrTimeout, d.name)
		}
		return <-done
	case <-ctx.Done():
		if d.abortSend(done) {
			return fmt.Errorf("send on %s: %w", d.name, ctx.Err())
		}
		return <-done
	}
}

func (d *Device) buildTimecode(data Frame) ([]uint32, error) {
	switch f := data.(type) {
	case NECFrame:
		buf, err := nec.Encode(d.cfg.NEC.IsMSB, f.Frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		return buf, nil
	case *NECFrame:
		return d.buildTimecode(*f)
	case TimecodeFrame:
		if len(f.Durations) == 0 {
			return nil, fmt.Errorf("%w: empty timecode", ErrInvalidParameter)
		}
		return append([]uint32(nil), f.Durations...), nil
	case *TimecodeFrame:
		return d.buildTimecode(*f)
	default:
		return nil, fmt.Errorf("%w: protocol %s", ErrNotSupported, data.Protocol())
	}
}

func (d *Device) setSendState(st SendState) {
	d.sendMu.Lock()
	d.sendState = st
	d.sendMu.Unlock()
}

// onOutputFinished advances the transmit chain by one duration. Drivers call
// it once after StatePreSend and again whenever an Output completes.
func (d *Device) onOutputFinished() {
	d.sendMu.Lock()
	if d.sendState != SendSending {
		d.sendMu.Unlock()
		return
	}
	info := &d.send

	if info.cursor >= len(info.buf) {
		if info.remaining == 0 {
			d.sendMu.Unlock()
			d.finishSend(nil)
			return
		}
		info.cursor = 0
		info.remaining--
		if delay := d.sendDelay.Load(); delay > 0 {
			freq := info.freq
			d.sendMu.Unlock()
			d.output(freq, false, delay)
			return
		}
	}

	active := info.cursor%2 == 0
	duration := info.buf[info.cursor]
	freq := info.freq
	info.cursor++
	d.sendMu.Unlock()

	d.output(freq, active, duration)
}

func (d *Device) output(freq uint32, active bool, duration uint32) {
	if err := d.drv.Output(freq, active, duration); err != nil {
		d.finishSend(fmt.Errorf("%w: output: %w", ErrHardware, err))
	}
}

// finishSend ends the transmission in progress with err.
func (d *Device) finishSend(err error) {
	d.sendMu.Lock()
	if d.sendState != SendSending {
		d.sendMu.Unlock()
		return
	}
	d.sendState = SendFinished
	done := d.send.done
	d.sendMu.Unlock()

	// Buffering backends transmit the whole chain here.
	if nerr := d.drv.StatusNotify(driver.StateSendFinish, nil); nerr != nil {
		log.Warn().Err(nerr).Str("device", d.name).Msg("send finish notify failed")
		if err == nil {
			err = fmt.Errorf("%w: send finish: %w", ErrHardware, nerr)
		}
	}

	d.sendMu.Lock()
	d.sendState = SendIdle
	d.send = sendInfo{}
	d.sendMu.Unlock()

	if done != nil {
		select {
		case done <- err:
		default:
		}
	}
}

// abortSend stops the transmission that owns done, if it is still running.
// It reports false when the send already finished on its own.
func (d *Device) abortSend(done chan error) bool {
	d.sendMu.Lock()
	if d.sendState != SendSending || d.send.done != done {
		d.sendMu.Unlock()
		return false
	}
	d.sendState = SendFinished
	d.sendMu.Unlock()

	if err := d.drv.StatusNotify(driver.StateSendFinish, nil); err != nil {
		log.Warn().Err(err).Str("device", d.name).Msg("send finish notify failed")
	}

	d.sendMu.Lock()
	d.sendState = SendIdle
	d.send = sendInfo{}
	d.sendMu.Unlock()
	return true
}

// errSendReset is delivered to a Send interrupted by HwReset.
var errSendReset = errors.New("transmitter reset")
