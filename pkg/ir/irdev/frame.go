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
	"sync"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
)

// Protocol selects how a device interprets the waveforms it moves.
type Protocol uint8

const (
	// ProtocolTimecode passes raw mark/space durations through unchanged.
	ProtocolTimecode Protocol = iota
	ProtocolNEC
	ProtocolMax
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTimecode:
		return "timecode"
	case ProtocolNEC:
		return "nec"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// Frame is the payload of a send or a receive: NECFrame or TimecodeFrame.
type Frame interface {
	Protocol() Protocol
}

type NECFrame struct {
	nec.Frame
}

func (NECFrame) Protocol() Protocol { return ProtocolNEC }

// TimecodeFrame holds alternating mark/space durations in microseconds,
// starting with a mark.
type TimecodeFrame struct {
	Durations []uint32
}

func (TimecodeFrame) Protocol() Protocol { return ProtocolTimecode }

// minTimecodeLength is the shortest capture delivered as a TimecodeFrame;
// anything shorter is a lone edge and is dropped as noise.
const minTimecodeLength = 4

var timecodePool = sync.Pool{
	New: func() any {
		buf := make([]uint32, 0, 256)
		return &buf
	},
}

func newTimecode(src []uint32) TimecodeFrame {
	bufp, ok := timecodePool.Get().(*[]uint32)
	if !ok || cap(*bufp) < len(src) {
		buf := make([]uint32, len(src))
		copy(buf, src)
		return TimecodeFrame{Durations: buf}
	}
	buf := (*bufp)[:len(src)]
	copy(buf, src)
	return TimecodeFrame{Durations: buf}
}

func releaseFrame(f Frame) {
	tc, ok := f.(TimecodeFrame)
	if !ok || tc.Durations == nil {
		return
	}
	buf := tc.Durations[:0]
	timecodePool.Put(&buf)
}
