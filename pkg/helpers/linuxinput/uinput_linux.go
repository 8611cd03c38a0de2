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

//go:build linux

package linuxinput

import (
	"fmt"
	"time"

	"github.com/bendahl/uinput"
)

const uinputDev = "/dev/uinput"

// NewKeyboard creates a uinput virtual keyboard. delay is held between key
// down and key up. The device must be closed when the service stops.
func NewKeyboard(delay time.Duration) (*Keyboard, error) {
	kbd, err := uinput.CreateKeyboard(uinputDev, []byte(DeviceName))
	if err != nil {
		return nil, fmt.Errorf("failed to create keyboard device: %w", err)
	}
	return &Keyboard{
		Device: kbd,
		Delay:  delay,
	}, nil
}
