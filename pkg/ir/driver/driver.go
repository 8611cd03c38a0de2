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

// Package driver defines the contract between the IR device manager and the
// hardware backends that move mark/space durations on and off the wire.
package driver

import "fmt"

// Mode selects which directions a device is opened for.
type Mode uint8

const (
	ModeSendRecv Mode = iota
	ModeSend
	ModeRecv
	ModeMax
)

func (m Mode) String() string {
	switch m {
	case ModeSendRecv:
		return "send_recv"
	case ModeSend:
		return "send"
	case ModeRecv:
		return "recv"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// CanSend reports whether the mode includes the transmit path.
func (m Mode) CanSend() bool {
	return m == ModeSendRecv || m == ModeSend
}

// CanRecv reports whether the mode includes the receive path.
func (m Mode) CanRecv() bool {
	return m == ModeSendRecv || m == ModeRecv
}

// State is passed to Driver.StatusNotify to tell the backend what the manager
// is about to do or has just done.
type State uint8

const (
	// StatePreSend asks the backend to prepare the transmitter. The backend
	// must then call Callbacks.OutputFinished once, from its own goroutine,
	// to start the output chain.
	StatePreSend State = iota
	// StateSendFinish marks the end of a transmission, successful or not.
	StateSendFinish
	// StatePreRecv is sent when the first sample of a frame arrives.
	StatePreRecv
	// StateRecvFinish is sent once a frame has been decoded and the
	// receiver may be re-armed.
	StateRecvFinish
	// StateSendHwReset asks the backend to reset the transmitter, abandoning
	// any output in progress.
	StateSendHwReset
	StateRecvHwInit
	StateRecvHwDeinit
	// StateIrqEnableTimeSet carries a time.Duration argument: how long the
	// backend keeps its capture interrupt disabled after a frame.
	StateIrqEnableTimeSet
)

func (s State) String() string {
	switch s {
	case StatePreSend:
		return "pre_send"
	case StateSendFinish:
		return "send_finish"
	case StatePreRecv:
		return "pre_recv"
	case StateRecvFinish:
		return "recv_finish"
	case StateSendHwReset:
		return "send_hw_reset"
	case StateRecvHwInit:
		return "recv_hw_init"
	case StateRecvHwDeinit:
		return "recv_hw_deinit"
	case StateIrqEnableTimeSet:
		return "irq_enable_time_set"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Callbacks are implemented by the manager and handed to Driver.Open. The
// backend never calls into application code directly.
type Callbacks struct {
	// OutputFinished is called when the duration passed to the last Output
	// call has elapsed. It may call Output again before returning, so a
	// backend must not hold locks Output needs while calling it.
	OutputFinished func()
	// Received is called with each captured mark or space duration in
	// microseconds, alternating and starting with a mark. Calls for one
	// device must not overlap.
	Received func(durationUs uint32)
}

// Driver is a hardware backend for one IR endpoint.
type Driver interface {
	// Open powers up the hardware for the directions in mode.
	Open(mode Mode, cb Callbacks) error
	Close(mode Mode) error
	// Output drives the carrier at freqHz for durationUs when active is
	// true, or keeps it off for durationUs otherwise, and reports
	// completion through Callbacks.OutputFinished.
	Output(freqHz uint32, active bool, durationUs uint32) error
	// StatusNotify informs the backend of manager state changes. The
	// meaning of arg depends on state and is nil unless documented.
	StatusNotify(state State, arg any) error
}
