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

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrAlreadyOpen      = errors.New("device already open")
	ErrNotOpen          = errors.New("device not open")
	ErrAllocationFailed = errors.New("allocation failed")
	ErrNotSupported     = errors.New("not supported")
	ErrBusy             = errors.New("device busy")
	ErrTimeout          = errors.New("timed out")
	ErrDecode           = errors.New("frame decode failed")
	ErrHardware         = errors.New("hardware error")

	ErrNotFound      = errors.New("device not found")
	ErrDuplicateName = errors.New("device name already registered")
	ErrRegistryFull  = errors.New("device registry full")
)
