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

package linuxinput

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DeviceName     = "Zaparoo IR"
	DefaultTimeout = 40 * time.Millisecond
)

var ErrUnsupported = errors.New("virtual input is not supported on this platform")

// KeyDevice is the part of a uinput keyboard used for key presses.
type KeyDevice interface {
	KeyDown(key int) error
	KeyUp(key int) error
	Close() error
}

type Keyboard struct {
	Device KeyDevice
	Delay  time.Duration
}

func (k *Keyboard) Close() error {
	if err := k.Device.Close(); err != nil {
		return fmt.Errorf("failed to close keyboard device: %w", err)
	}
	return nil
}

// Press taps a single key. Negative codes are pressed with shift held.
func (k *Keyboard) Press(key int) error {
	if key < 0 {
		return k.Combo(keyLeftShift, -key)
	}

	err := k.Device.KeyDown(key)
	if err != nil {
		return fmt.Errorf("failed to press key down: %w", err)
	}

	time.Sleep(k.Delay)

	if err := k.Device.KeyUp(key); err != nil {
		return fmt.Errorf("failed to release key: %w", err)
	}
	return nil
}

func (k *Keyboard) Combo(keys ...int) error {
	for _, key := range keys {
		err := k.Device.KeyDown(key)
		if err != nil {
			return fmt.Errorf("failed to press combo key down: %w", err)
		}
	}
	time.Sleep(k.Delay)
	for _, key := range keys {
		err := k.Device.KeyUp(key)
		if err != nil {
			return fmt.Errorf("failed to release combo key: %w", err)
		}
	}
	return nil
}

// Send presses codes as returned by ParseKeyCombo.
func (k *Keyboard) Send(codes []int, isCombo bool) error {
	if isCombo {
		return k.Combo(codes...)
	}
	for _, c := range codes {
		if err := k.Press(c); err != nil {
			return err
		}
	}
	return nil
}

// ParseKeyCombo parses a key argument such as "a", "{f9}" or "{ctrl+q}"
// into key codes. isCombo is true when several keys must be held together.
func ParseKeyCombo(arg string) (codes []int, isCombo bool, err error) {
	var names []string

	if len(arg) > 1 && arg[0] == '{' && arg[len(arg)-1] == '}' {
		parts := strings.Split(arg[1:len(arg)-1], "+")
		if len(parts) > 1 {
			names = make([]string, len(parts))
			for i, part := range parts {
				if len(part) > 1 {
					names[i] = "{" + part + "}"
				} else {
					names[i] = part
				}
			}
			isCombo = true
		} else {
			names = []string{arg}
		}
	} else {
		names = []string{arg}
	}

	codes = make([]int, 0, len(names))
	for _, name := range names {
		code, ok := ToKeyboardCode(name)
		if !ok {
			return nil, false, fmt.Errorf("unknown keyboard key: %s", name)
		}
		codes = append(codes, code)
	}

	return codes, isCombo, nil
}
