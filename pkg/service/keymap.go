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

package service

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/config"
	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/linuxinput"
	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/irdev"
	"github.com/rs/zerolog/log"
)

type KeyboardFactory func(delay time.Duration) (*linuxinput.Keyboard, error)

type keyEntry struct {
	mapping config.KeyMapping
	codes   []int
	combo   bool
}

// Keymapper presses keys on a virtual keyboard for mapped NEC frames.
type Keymapper struct {
	kbd     *linuxinput.Keyboard
	entries []keyEntry
	mu      syncutil.RWMutex
}

func NewKeymapper(kbd *linuxinput.Keyboard, mappings []config.KeyMapping) (*Keymapper, error) {
	entries, err := parseKeymap(mappings)
	if err != nil {
		return nil, err
	}
	return &Keymapper{kbd: kbd, entries: entries}, nil
}

func parseKeymap(mappings []config.KeyMapping) ([]keyEntry, error) {
	entries := make([]keyEntry, 0, len(mappings))
	for _, m := range mappings {
		codes, combo, err := linuxinput.ParseKeyCombo(m.Key)
		if err != nil {
			return nil, fmt.Errorf("keymap 0x%04X/0x%04X: %w", m.Address, m.Command, err)
		}
		entries = append(entries, keyEntry{mapping: m, codes: codes, combo: combo})
	}
	return entries, nil
}

// Update replaces the mappings. On error the current mappings stay.
func (km *Keymapper) Update(mappings []config.KeyMapping) error {
	entries, err := parseKeymap(mappings)
	if err != nil {
		return err
	}
	km.mu.Lock()
	km.entries = entries
	km.mu.Unlock()
	return nil
}

func (km *Keymapper) match(device string, f *irdev.NECFrame) (keyEntry, bool) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	for _, e := range km.entries {
		if e.mapping.Matches(device, f.Address, f.Command) {
			return e, true
		}
	}
	return keyEntry{}, false
}

// Handle is a FrameHandler. Only the first matching mapping fires.
func (km *Keymapper) Handle(d *irdev.Device, f irdev.Frame) {
	nf, ok := f.(irdev.NECFrame)
	if !ok {
		return
	}
	e, ok := km.match(d.Name(), &nf)
	if !ok {
		return
	}

	presses := 1
	if e.mapping.Repeat {
		presses += int(nf.RepeatCount)
	}
	log.Debug().
		Str("device", d.Name()).
		Str("key", e.mapping.Key).
		Int("presses", presses).
		Msg("mapped ir frame to key")
	for range presses {
		if err := km.kbd.Send(e.codes, e.combo); err != nil {
			log.Warn().Err(err).Str("key", e.mapping.Key).Msg("error pressing mapped key")
			return
		}
	}
}

func (km *Keymapper) Close() error {
	return km.kbd.Close()
}
