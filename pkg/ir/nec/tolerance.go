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

package nec

import (
	"errors"
	"fmt"
)

// ErrTolerance is returned when a tolerance percentage is 100 or more.
var ErrTolerance = errors.New("nec: tolerance percentage must be below 100")

// Config holds the bit order and the error tolerances of a receiver, each a
// percentage of the nominal duration it applies to.
type Config struct {
	IsMSB bool `toml:"msb"`
	// LeadErr applies to the leader mark and space.
	LeadErr uint8 `toml:"lead_err" validate:"lt=100"`
	// LogicsErr applies to every 560us mark: bit marks and the end mark.
	LogicsErr uint8 `toml:"logics_err" validate:"lt=100"`
	Logic0Err uint8 `toml:"logic0_err" validate:"lt=100"`
	Logic1Err uint8 `toml:"logic1_err" validate:"lt=100"`
	RepeatErr uint8 `toml:"repeat_err" validate:"lt=100"`
}

// DefaultConfig suits common consumer receivers, whose demodulators stretch
// marks and shorten spaces by a few hundred microseconds.
var DefaultConfig = Config{
	IsMSB:     false,
	LeadErr:   20,
	LogicsErr: 40,
	Logic0Err: 40,
	Logic1Err: 30,
	RepeatErr: 20,
}

// Tolerance is the absolute deviation in microseconds accepted for each
// element of a frame. It is derived once from a Config and never modified.
type Tolerance struct {
	LeadLow    uint32
	LeadHigh   uint32
	Logic0Low  uint32
	Logic0High uint32
	Logic1Low  uint32
	Logic1High uint32
	RepeatLow  uint32
	RepeatHigh uint32
	EndLow     uint32
}

func NewTolerance(cfg Config) (*Tolerance, error) {
	for name, pct := range map[string]uint8{
		"lead":   cfg.LeadErr,
		"logics": cfg.LogicsErr,
		"logic0": cfg.Logic0Err,
		"logic1": cfg.Logic1Err,
		"repeat": cfg.RepeatErr,
	} {
		if pct >= 100 {
			return nil, fmt.Errorf("%w: %s=%d", ErrTolerance, name, pct)
		}
	}

	return &Tolerance{
		LeadLow:    percent(LeadLow, cfg.LeadErr),
		LeadHigh:   percent(LeadHigh, cfg.LeadErr),
		Logic0Low:  percent(BitLow, cfg.LogicsErr),
		Logic0High: percent(Logic0High, cfg.Logic0Err),
		Logic1Low:  percent(BitLow, cfg.LogicsErr),
		Logic1High: percent(Logic1High, cfg.Logic1Err),
		RepeatLow:  percent(RepeatLow, cfg.RepeatErr),
		RepeatHigh: percent(RepeatHigh, cfg.RepeatErr),
		EndLow:     percent(EndLow, cfg.LogicsErr),
	}, nil
}

func percent(base uint32, pct uint8) uint32 {
	return base * uint32(pct) / 100
}

func within(v, base, tol uint32) bool {
	if v > base {
		return v-base <= tol
	}
	return base-v <= tol
}

func (t *Tolerance) isLeader(low, high uint32) bool {
	return within(low, LeadLow, t.LeadLow) && within(high, LeadHigh, t.LeadHigh)
}

// bit classifies a mark/space pair, trying logic 0 first.
func (t *Tolerance) bit(low, high uint32) (byte, bool) {
	if within(low, BitLow, t.Logic0Low) && within(high, Logic0High, t.Logic0High) {
		return 0, true
	}
	if within(low, BitLow, t.Logic1Low) && within(high, Logic1High, t.Logic1High) {
		return 1, true
	}
	return 0, false
}

// isRepeat checks the first three words of a repeat block. The fourth is the
// padding space, whose length depends on the sender.
func (t *Tolerance) isRepeat(block []uint32) bool {
	return within(block[0], RepeatLow, t.RepeatLow) &&
		within(block[1], RepeatHigh, t.RepeatHigh) &&
		within(block[2], EndLow, t.EndLow)
}
