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

package irtoy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

// USB IDs of the IR Toy v2 CDC interface.
const (
	usbVID = "04d8"
	usbPID = "fd08"
)

var ErrNotFound = errors.New("irtoy: no device found")

// PortLister returns the serial ports present on the system.
type PortLister func() ([]*enumerator.PortDetails, error)

// Detect returns the path of the first attached IR Toy.
func Detect(list PortLister) (string, error) {
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	ports, err := list()
	if err != nil {
		return "", fmt.Errorf("failed to list serial ports: %w", err)
	}

	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if strings.EqualFold(p.VID, usbVID) && strings.EqualFold(p.PID, usbPID) {
			log.Debug().Str("path", p.Name).Str("serial", p.SerialNumber).Msg("found ir toy")
			return p.Name, nil
		}
	}
	return "", ErrNotFound
}
