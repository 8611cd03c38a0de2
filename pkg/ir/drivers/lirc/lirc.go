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

// Package lirc drives IR hardware exposed by the Linux kernel as /dev/lircN.
//
// Transmission uses LIRC_MODE_PULSE: the manager's mark/space chain is
// collected and written in one go when the send finishes, so each Output
// completes immediately. Reception reads LIRC_MODE_MODE2 packets and forwards
// pulse and space lengths.
package lirc

import (
	"encoding/binary"
	"errors"
)

// ioctl requests and flags from <linux/lirc.h>.
const (
	lircGetFeatures    = 0x80046900
	lircSetSendMode    = 0x40046911
	lircSetRecMode     = 0x40046912
	lircSetSendCarrier = 0x40046913

	lircModePulse = 0x00000002
	lircModeMode2 = 0x00000004

	lircCanSendPulse      = lircModePulse
	lircCanRecMode2       = lircModeMode2 << 16
	lircCanSetSendCarrier = 0x00000100

	lircMode2Space     = 0x00000000
	lircMode2Pulse     = 0x01000000
	lircMode2Frequency = 0x02000000
	lircMode2Timeout   = 0x03000000
	lircMode2Overflow  = 0x04000000
	lircMode2TypeMask  = 0xFF000000
	lircMode2ValueMask = 0x00FFFFFF
)

const (
	// DefaultPath is used when a device is configured without a path.
	DefaultPath = "/dev/lirc0"

	// DefaultGapUs is the shortest space treated as the silence between
	// two captures rather than part of one. NEC repeat blocks are padded
	// to 110ms, so this sits just above the longest in-frame space.
	DefaultGapUs = 120000

	bytesPerWord  = 4
	readBatch     = 64
	pollTimeoutMs = 100
	// maxTxWords matches the kernel's LIRCBUF_SIZE.
	maxTxWords = 1024
)

var (
	ErrUnsupported = errors.New("lirc: not supported on this platform")
	ErrNoSend      = errors.New("lirc: device cannot send pulses")
	ErrNoRecv      = errors.New("lirc: device cannot receive mode2")
	ErrNotOpen     = errors.New("lirc: not open")
	ErrTxOverflow  = errors.New("lirc: transmit buffer full")
)

// pulseBuffer collects a transmit chain in LIRC pulse format: odd length,
// starting and ending with a pulse.
type pulseBuffer struct {
	words      []uint32
	lastActive bool
}

func (p *pulseBuffer) reset() {
	p.words = p.words[:0]
	p.lastActive = false
}

func (p *pulseBuffer) add(active bool, us uint32) error {
	us = min(us, lircMode2ValueMask)
	switch {
	case len(p.words) == 0 && !active:
		// Leading silence has nothing to send.
		return nil
	case len(p.words) > 0 && active == p.lastActive:
		p.words[len(p.words)-1] += us
		return nil
	case len(p.words) >= maxTxWords:
		return ErrTxOverflow
	}
	p.words = append(p.words, us)
	p.lastActive = active
	return nil
}

// bytes returns the chain ready for write(2), with any trailing space
// removed.
func (p *pulseBuffer) bytes() []byte {
	words := p.words
	if len(words)%2 == 0 && len(words) > 0 {
		words = words[:len(words)-1]
	}
	out := make([]byte, 0, len(words)*bytesPerWord)
	for _, w := range words {
		out = binary.NativeEndian.AppendUint32(out, w)
	}
	return out
}

// mode2Decoder turns mode2 packets into alternating pulse and space
// lengths that start with a pulse.
type mode2Decoder struct {
	gapUs    uint32
	sawPulse bool
}

func (m *mode2Decoder) feed(word uint32, emit func(uint32)) {
	value := word & lircMode2ValueMask
	switch word & lircMode2TypeMask {
	case lircMode2Pulse:
		m.sawPulse = true
		emit(value)
	case lircMode2Space:
		if !m.sawPulse {
			return
		}
		if m.gapUs > 0 && value >= m.gapUs {
			m.sawPulse = false
			return
		}
		emit(value)
	case lircMode2Timeout, lircMode2Overflow:
		m.sawPulse = false
	case lircMode2Frequency:
	}
}

func (m *mode2Decoder) feedBytes(buf []byte, emit func(uint32)) {
	for len(buf) >= bytesPerWord {
		m.feed(binary.NativeEndian.Uint32(buf), emit)
		buf = buf[bytesPerWord:]
	}
}
