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

// Package inhibit keeps the host awake while IR frames are being captured.
// On Linux it takes a systemd-logind "idle:sleep" inhibitor lock.
package inhibit

import (
	"fmt"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	logindService = "org.freedesktop.login1"
	logindPath    = dbus.ObjectPath("/org/freedesktop/login1")
	inhibitMethod = "org.freedesktop.login1.Manager.Inhibit"
	inhibitWhat   = "idle:sleep"
	inhibitMode   = "block"
)

// Logind holds at most one inhibitor lock at a time.
type Logind struct {
	inhibit  func(who, why string) (int, error)
	who      string
	why      string
	fd       int
	mu       syncutil.Mutex
	disabled bool
}

func New(who, why string) *Logind {
	return &Logind{
		inhibit: logindInhibit,
		who:     who,
		why:     why,
		fd:      -1,
	}
}

func logindInhibit(who, why string) (int, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return -1, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	var fd dbus.UnixFD
	err = conn.Object(logindService, logindPath).
		Call(inhibitMethod, 0, inhibitWhat, who, why, inhibitMode).
		Store(&fd)
	if err != nil {
		return -1, fmt.Errorf("logind inhibit failed: %w", err)
	}
	return int(fd), nil
}

// Acquire takes the lock. If logind is unreachable the first error is
// returned and later calls do nothing.
func (l *Logind) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disabled || l.fd >= 0 {
		return nil
	}
	fd, err := l.inhibit(l.who, l.why)
	if err != nil {
		l.disabled = true
		return err
	}
	l.fd = fd
	log.Debug().Msg("took sleep inhibitor lock")
	return nil
}

// Release drops the lock by closing its descriptor.
func (l *Logind) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fd < 0 {
		return nil
	}
	fd := l.fd
	l.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("failed to release inhibitor lock: %w", err)
	}
	return nil
}
