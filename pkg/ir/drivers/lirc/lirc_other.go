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

//go:build !linux

package lirc

import "github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"

// Driver is unavailable outside Linux; Open always fails.
type Driver struct {
	path string
}

func New(path string) *Driver {
	if path == "" {
		path = DefaultPath
	}
	return &Driver{path: path}
}

func (*Driver) Open(driver.Mode, driver.Callbacks) error {
	return ErrUnsupported
}

func (*Driver) Close(driver.Mode) error {
	return ErrNotOpen
}

func (*Driver) Output(uint32, bool, uint32) error {
	return ErrNotOpen
}

func (*Driver) StatusNotify(driver.State, any) error {
	return ErrNotOpen
}
