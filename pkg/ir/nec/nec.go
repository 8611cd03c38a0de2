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

// Package nec encodes and decodes NEC infrared remote frames as arrays of
// alternating mark/space durations in microseconds.
//
// A frame is a 9ms leader mark and 4.5ms space, 32 data bits (address high
// byte, address low byte, command high byte, command low byte) each sent as a
// 560us mark followed by a 560us (logic 0) or 1690us (logic 1) space, and a
// 560us end mark. The space after the end mark pads the frame to a 110ms
// cycle. Every repeat block is a 9ms mark, 2.25ms space, 560us mark and the
// space that pads the block to 110ms.
//
// References:
// https://www.sbprojects.net/knowledge/ir/nec.php
// https://techdocs.altium.com/display/FPGA/NEC+Infrared+Transmission+Protocol
package nec

import (
	"errors"
	"fmt"
)

// Nominal NEC timings in microseconds.
const (
	LeadLow     = 9000
	LeadHigh    = 4500
	BitLow      = 560
	Logic0High  = 560
	Logic1High  = 1690
	RepeatLow   = 9000
	RepeatHigh  = 2250
	EndLow      = 560
	FramePeriod = 110000

	// Carrier is the usual NEC modulation frequency in Hz.
	Carrier = 38000
)

const (
	dataBits = 32

	// MinLength is the number of words in a frame with no repeats: leader
	// pair, 32 bit pairs, end mark and trailing space.
	MinLength = 2 + 2*dataBits + 2

	// RepeatLength is the number of words in one repeat block.
	RepeatLength = 4

	// MaxRepeatCount is the largest repeat count Encode accepts.
	MaxRepeatCount = 0xFF
)

// ErrRepeatCount is returned by Encode when Frame.RepeatCount exceeds
// MaxRepeatCount.
var ErrRepeatCount = errors.New("nec: repeat count out of range")

// Frame is a decoded NEC command.
type Frame struct {
	Address     uint16
	Command     uint16
	RepeatCount uint16
}

func (f Frame) String() string {
	return fmt.Sprintf("addr=0x%04X cmd=0x%04X repeat=%d", f.Address, f.Command, f.RepeatCount)
}

// Encode builds the timecode for f. isMSB selects most significant bit first
// within each byte.
func Encode(isMSB bool, f Frame) ([]uint32, error) {
	if f.RepeatCount > MaxRepeatCount {
		return nil, fmt.Errorf("%w: %d", ErrRepeatCount, f.RepeatCount)
	}

	out := make([]uint32, 0, MinLength+RepeatLength*int(f.RepeatCount))
	out = append(out, LeadLow, LeadHigh)

	payload := [4]byte{
		byte(f.Address >> 8), byte(f.Address),
		byte(f.Command >> 8), byte(f.Command),
	}
	for _, b := range payload {
		for i := range 8 {
			shift := i
			if isMSB {
				shift = 7 - i
			}
			if (b>>shift)&1 == 1 {
				out = append(out, BitLow, Logic1High)
			} else {
				out = append(out, BitLow, Logic0High)
			}
		}
	}

	out = append(out, EndLow)
	out = append(out, FramePeriod-sum(out))

	for range f.RepeatCount {
		out = append(out,
			RepeatLow,
			RepeatHigh,
			EndLow,
			FramePeriod-(RepeatLow+RepeatHigh+EndLow),
		)
	}

	return out, nil
}

// DecodeSingle parses one frame starting at data[0] and returns the number of
// words it consumed along with the frame.
//
// A result below MinLength means no frame was decoded: 2 when the first pair
// is not a leader, otherwise the index of the first pair that is neither a
// logic 0 nor a logic 1. Callers must treat such results as failures. Repeat
// blocks directly following the frame are counted into RepeatCount.
func DecodeSingle(data []uint32, tol *Tolerance, isMSB bool) (int, Frame) {
	if len(data) < 2 || !tol.isLeader(data[0], data[1]) {
		return 2, Frame{}
	}

	var payload [4]byte
	for bit := range dataBits {
		i := 2 + 2*bit
		if i+1 >= len(data) {
			return i, Frame{}
		}
		v, ok := tol.bit(data[i], data[i+1])
		if !ok {
			return i, Frame{}
		}
		shift := bit % 8
		if isMSB {
			shift = 7 - shift
		}
		payload[bit/8] |= v << shift
	}

	if len(data) < MinLength {
		return len(data), Frame{}
	}

	f := Frame{
		Address: uint16(payload[0])<<8 | uint16(payload[1]),
		Command: uint16(payload[2])<<8 | uint16(payload[3]),
	}
	n, count := DecodeRepeat(data[MinLength:], tol)
	f.RepeatCount = count

	return MinLength + n, f
}

// FrameHead returns the index of the first leader pair in data.
func FrameHead(data []uint32, tol *Tolerance) (int, bool) {
	for i := 0; i+1 < len(data); i++ {
		if tol.isLeader(data[i], data[i+1]) {
			return i, true
		}
	}
	return 0, false
}

// DecodeRepeat counts consecutive repeat blocks at the start of data and
// returns the words they span and how many there were. It stops at the first
// block that does not match or that is incomplete.
func DecodeRepeat(data []uint32, tol *Tolerance) (int, uint16) {
	var (
		consumed int
		count    uint16
	)
	for consumed+RepeatLength <= len(data) {
		if !tol.isRepeat(data[consumed:]) {
			break
		}
		consumed += RepeatLength
		count++
	}
	return consumed, count
}

func sum(vs []uint32) uint32 {
	var total uint32
	for _, v := range vs {
		total += v
	}
	return total
}
