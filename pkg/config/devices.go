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

import (
	"fmt"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
)

const (
	DriverLoopback = "loopback"
	DriverLIRC     = "lirc"
	DriverIRToy    = "irtoy"
)

const (
	ModeSendRecv = "send_recv"
	ModeSend     = "send"
	ModeRecv     = "recv"
)

const (
	ProtocolNEC      = "nec"
	ProtocolTimecode = "timecode"
)

// Device is one [[devices]] entry. Zero receive settings fall back to the
// IR subsystem defaults; a missing [devices.nec] table uses
// nec.DefaultConfig.
type Device struct {
	NEC            *nec.Config `toml:"nec,omitempty"`
	Name           string      `toml:"name" validate:"required,max=16"`
	Driver         string      `toml:"driver" validate:"oneof=loopback lirc irtoy"`
	Path           string      `toml:"path,omitempty"`
	Mode           string      `toml:"mode,omitempty" validate:"omitempty,oneof=send_recv send recv"`
	Protocol       string      `toml:"protocol,omitempty" validate:"omitempty,oneof=nec timecode"`
	RecvBufSize    int         `toml:"recv_buf_size,omitempty" validate:"omitempty,min=4"`
	RecvQueueDepth int         `toml:"recv_queue_depth,omitempty" validate:"omitempty,min=1,max=256"`
	RecvTimeoutMs  int         `toml:"recv_timeout_ms,omitempty" validate:"omitempty,min=1"`
	SendDelayUs    int         `toml:"send_delay_us,omitempty" validate:"omitempty,min=0"`
}

func (d *Device) NECConfig() nec.Config {
	if d.NEC == nil {
		return nec.DefaultConfig
	}
	return *d.NEC
}

func cloneDevices(ds []Device) []Device {
	if ds == nil {
		return nil
	}
	out := make([]Device, len(ds))
	copy(out, ds)
	for i := range out {
		if out[i].NEC != nil {
			n := *out[i].NEC
			out[i].NEC = &n
		}
	}
	return out
}

func (c *Instance) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneDevices(c.vals.Devices)
}

func (c *Instance) LookupDevice(name string) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.vals.Devices {
		if d.Name == name {
			return cloneDevices([]Device{d})[0], true
		}
	}
	return Device{}, false
}

// SetDevices validates and replaces the device list. The file is not
// written until Save.
func (c *Instance) SetDevices(ds []Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.vals
	next.Devices = cloneDevices(ds)
	if err := validateValues(&next); err != nil {
		return fmt.Errorf("set devices: %w", err)
	}
	c.vals = next
	return nil
}
