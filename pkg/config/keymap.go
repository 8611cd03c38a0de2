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

package config

import "fmt"

// KeyMapping turns a received NEC frame into a virtual key press. An empty
// Device matches frames from any device.
type KeyMapping struct {
	Device  string `toml:"device,omitempty" validate:"omitempty,max=16"`
	Key     string `toml:"key" validate:"required"`
	Address uint16 `toml:"address"`
	Command uint16 `toml:"command"`
	// Repeat presses the key again for every repeat code.
	Repeat bool `toml:"repeat,omitempty"`
}

func (k *KeyMapping) Matches(device string, address, command uint16) bool {
	if k.Device != "" && k.Device != device {
		return false
	}
	return k.Address == address && k.Command == command
}

func cloneKeymap(ks []KeyMapping) []KeyMapping {
	if ks == nil {
		return nil
	}
	out := make([]KeyMapping, len(ks))
	copy(out, ks)
	return out
}

func (c *Instance) Keymap() []KeyMapping {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneKeymap(c.vals.Keymap)
}

func (c *Instance) SetKeymap(ks []KeyMapping) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.vals
	next.Keymap = cloneKeymap(ks)
	if err := validateValues(&next); err != nil {
		return fmt.Errorf("set keymap: %w", err)
	}
	c.vals = next
	return nil
}
