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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/config"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/drivers/irtoy"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/drivers/lirc"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/drivers/loopback"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/irdev"
)

var ErrUnknownDriver = errors.New("unknown ir driver")

// DriverFactory builds the backend for one configured device.
type DriverFactory func(dev *config.Device) (driver.Driver, error)

// DefaultDriverFactory maps config driver names to the real backends. An
// irtoy device with no path, or the path "auto", is found by USB ID.
func DefaultDriverFactory(dev *config.Device) (driver.Driver, error) {
	switch dev.Driver {
	case config.DriverLoopback:
		return loopback.New(
			loopback.WithTiming(loopback.TimingRealTime),
			loopback.WithEcho(),
		), nil
	case config.DriverLIRC:
		path := dev.Path
		if path == "" {
			path = lirc.DefaultPath
		}
		return lirc.New(path), nil
	case config.DriverIRToy:
		path := dev.Path
		if path == "" || strings.EqualFold(path, "auto") {
			found, err := irtoy.Detect(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to detect ir toy for %s: %w", dev.Name, err)
			}
			path = found
		}
		return irtoy.New(path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, dev.Driver)
	}
}

func parseMode(s string) (driver.Mode, error) {
	switch s {
	case "", config.ModeSendRecv:
		return driver.ModeSendRecv, nil
	case config.ModeSend:
		return driver.ModeSend, nil
	case config.ModeRecv:
		return driver.ModeRecv, nil
	default:
		return driver.ModeMax, fmt.Errorf("%w: mode %q", irdev.ErrInvalidParameter, s)
	}
}

func parseProtocol(s string) (irdev.Protocol, error) {
	switch s {
	case "", config.ProtocolNEC:
		return irdev.ProtocolNEC, nil
	case config.ProtocolTimecode:
		return irdev.ProtocolTimecode, nil
	default:
		return irdev.ProtocolMax, fmt.Errorf("%w: protocol %q", irdev.ErrInvalidParameter, s)
	}
}

// DeviceConfig converts a [[devices]] entry into the settings passed to
// Device.Open.
func DeviceConfig(dev *config.Device) (irdev.Config, error) {
	mode, err := parseMode(dev.Mode)
	if err != nil {
		return irdev.Config{}, err
	}
	prot, err := parseProtocol(dev.Protocol)
	if err != nil {
		return irdev.Config{}, err
	}
	return irdev.Config{
		Mode:           mode,
		Protocol:       prot,
		NEC:            dev.NECConfig(),
		RecvBufSize:    dev.RecvBufSize,
		RecvQueueDepth: dev.RecvQueueDepth,
		RecvTimeout:    time.Duration(dev.RecvTimeoutMs) * time.Millisecond,
	}, nil
}
