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

// Package loopback is an in-memory IR backend. Transmitted durations are
// recorded and can be echoed into the device's own receive path, and
// arbitrary captures can be injected. It backs the tests and the
// "loopback" driver in the configuration file.
package loopback

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/jonboulle/clockwork"
)

var (
	ErrNotOpen      = errors.New("loopback: not open")
	ErrAlreadyOpen  = errors.New("loopback: already open")
	ErrOutputFailed = errors.New("loopback: output failed")
)

// Timing controls when an Output is reported as finished.
type Timing uint8

const (
	// TimingInstant completes every output immediately on a new goroutine.
	TimingInstant Timing = iota
	// TimingRealTime completes each output after its duration on the
	// configured clock.
	TimingRealTime
	// TimingManual holds completions until Step is called.
	TimingManual
)

// Output is one recorded call to Driver.Output.
type Output struct {
	FreqHz     uint32
	DurationUs uint32
	Active     bool
}

type Option func(*Driver)

func WithTiming(t Timing) Option {
	return func(d *Driver) {
		d.timing = t
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(d *Driver) {
		d.clock = c
	}
}

// WithEcho feeds every transmitted mark and space back into the receive
// callback, as if the emitter were pointed at the receiver.
func WithEcho() Option {
	return func(d *Driver) {
		d.echo = true
	}
}

// WithOutputFailure makes the nth Output call (1-based) fail.
func WithOutputFailure(n int) Option {
	return func(d *Driver) {
		d.failAt = n
	}
}

type Driver struct {
	clock   clockwork.Clock
	timer   clockwork.Timer
	cb      driver.Callbacks
	outputs []Output
	states  []driver.State
	// echoSpace accumulates consecutive spaces so echoed samples keep
	// alternating mark and space.
	echoSpace uint32
	pending   int
	failAt    int
	calls     int
	mu        syncutil.Mutex
	// rxMu keeps Received calls from overlapping.
	rxMu   syncutil.Mutex
	mode   driver.Mode
	timing Timing
	echo   bool
	open   bool
}

func New(opts ...Option) *Driver {
	d := &Driver{
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Open(mode driver.Mode, cb driver.Callbacks) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return ErrAlreadyOpen
	}
	d.mode = mode
	d.cb = cb
	d.open = true
	d.pending = 0
	d.echoSpace = 0
	return nil
}

func (d *Driver) Close(driver.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	d.stopLocked()
	d.open = false
	d.cb = driver.Callbacks{}
	return nil
}

func (d *Driver) Output(freqHz uint32, active bool, durationUs uint32) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.calls++
	if d.failAt > 0 && d.calls == d.failAt {
		d.mu.Unlock()
		return fmt.Errorf("%w: call %d", ErrOutputFailed, d.calls)
	}
	d.outputs = append(d.outputs, Output{FreqHz: freqHz, Active: active, DurationUs: durationUs})

	var echo []uint32
	if d.echo && d.mode.CanRecv() {
		switch {
		case !active:
			d.echoSpace += durationUs
		case d.echoSpace > 0:
			echo = []uint32{d.echoSpace, durationUs}
			d.echoSpace = 0
		default:
			echo = []uint32{durationUs}
		}
	}
	received := d.cb.Received
	d.mu.Unlock()

	if len(echo) > 0 && received != nil {
		d.rxMu.Lock()
		for _, v := range echo {
			received(v)
		}
		d.rxMu.Unlock()
	}

	d.complete(durationUs)
	return nil
}

func (d *Driver) StatusNotify(state driver.State, _ any) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.states = append(d.states, state)
	switch state {
	case driver.StateSendFinish:
		// Receivers never see the space after the last mark.
		d.echoSpace = 0
	case driver.StateSendHwReset:
		d.stopLocked()
		d.echoSpace = 0
	case driver.StatePreSend, driver.StatePreRecv, driver.StateRecvFinish,
		driver.StateRecvHwInit, driver.StateRecvHwDeinit, driver.StateIrqEnableTimeSet:
	}
	d.mu.Unlock()

	if state == driver.StatePreSend {
		d.complete(0)
	}
	return nil
}

// complete schedules the OutputFinished callback for an output of us
// microseconds.
func (d *Driver) complete(us uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	finished := d.cb.OutputFinished
	if !d.open || finished == nil {
		return
	}

	switch d.timing {
	case TimingInstant:
		go finished()
	case TimingRealTime:
		d.timer = d.clock.AfterFunc(time.Duration(us)*time.Microsecond, finished)
	case TimingManual:
		d.pending++
	}
}

func (d *Driver) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = 0
}

// Step releases one held completion in TimingManual mode, running the
// callback on the calling goroutine. It reports whether one was held.
func (d *Driver) Step() bool {
	d.mu.Lock()
	if d.pending == 0 || !d.open {
		d.mu.Unlock()
		return false
	}
	d.pending--
	finished := d.cb.OutputFinished
	d.mu.Unlock()

	finished()
	return true
}

// Pending returns the number of completions held for Step.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Inject delivers durations to the receive callback as captured samples.
func (d *Driver) Inject(durations ...uint32) error {
	d.mu.Lock()
	received := d.cb.Received
	ok := d.open && d.mode.CanRecv()
	d.mu.Unlock()
	if !ok || received == nil {
		return ErrNotOpen
	}

	d.rxMu.Lock()
	defer d.rxMu.Unlock()
	for _, v := range durations {
		received(v)
	}
	return nil
}

func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Outputs returns a copy of every recorded Output call.
func (d *Driver) Outputs() []Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Output(nil), d.outputs...)
}

// Durations returns the recorded output durations in order.
func (d *Driver) Durations() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint32, len(d.outputs))
	for i, o := range d.outputs {
		out[i] = o.DurationUs
	}
	return out
}

// States returns every state passed to StatusNotify, in order.
func (d *Driver) States() []driver.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.State(nil), d.states...)
}

// ClearLog forgets recorded outputs and states.
func (d *Driver) ClearLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs = nil
	d.states = nil
}
