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

package lirc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

type Driver struct {
	cb       driver.Callbacks
	stop     chan struct{}
	path     string
	tx       pulseBuffer
	wg       sync.WaitGroup
	fd       int
	features uint32
	txFreq   uint32
	mu       syncutil.Mutex
	mode     driver.Mode
	paused   bool
	open     bool
}

func New(path string) *Driver {
	if path == "" {
		path = DefaultPath
	}
	return &Driver{path: path, fd: -1}
}

func (d *Driver) Open(mode driver.Mode, cb driver.Callbacks) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return fmt.Errorf("lirc: %s already open", d.path)
	}

	fd, err := unix.Open(d.path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.path, err)
	}

	features, err := unix.IoctlGetUint32(fd, lircGetFeatures)
	if err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("failed to read features of %s: %w", d.path, err)
	}

	if mode.CanSend() {
		if features&lircCanSendPulse == 0 {
			_ = unix.Close(fd)
			return ErrNoSend
		}
		if err := unix.IoctlSetPointerInt(fd, lircSetSendMode, lircModePulse); err != nil {
			_ = unix.Close(fd)
			return fmt.Errorf("failed to set send mode: %w", err)
		}
	}
	if mode.CanRecv() {
		if features&lircCanRecMode2 == 0 {
			_ = unix.Close(fd)
			return ErrNoRecv
		}
		if err := unix.IoctlSetPointerInt(fd, lircSetRecMode, lircModeMode2); err != nil {
			_ = unix.Close(fd)
			return fmt.Errorf("failed to set receive mode: %w", err)
		}
	}

	d.fd = fd
	d.features = features
	d.mode = mode
	d.cb = cb
	d.open = true
	d.paused = false
	d.tx.reset()

	if mode.CanRecv() {
		d.stop = make(chan struct{})
		d.wg.Add(1)
		go d.readLoop(fd, d.stop)
	}

	log.Debug().Str("path", d.path).Msgf("opened lirc device, features 0x%08x", features)
	return nil
}

func (d *Driver) Close(driver.Mode) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.open = false
	stop := d.stop
	d.stop = nil
	fd := d.fd
	d.fd = -1
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		d.wg.Wait()
	}
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("failed to close %s: %w", d.path, err)
	}
	return nil
}

// Output queues one mark or space and reports it finished straight away.
// The chain is transmitted when the send finishes.
func (d *Driver) Output(freqHz uint32, active bool, durationUs uint32) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.txFreq = freqHz
	err := d.tx.add(active, durationUs)
	finished := d.cb.OutputFinished
	d.mu.Unlock()

	if err != nil {
		return err
	}
	go finished()
	return nil
}

func (d *Driver) StatusNotify(state driver.State, _ any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return ErrNotOpen
	}

	switch state {
	case driver.StatePreSend:
		d.tx.reset()
		go d.cb.OutputFinished()
	case driver.StateSendFinish:
		return d.flushLocked()
	case driver.StateSendHwReset:
		d.tx.reset()
	case driver.StateRecvHwInit:
		d.paused = false
	case driver.StateRecvHwDeinit:
		d.paused = true
	case driver.StatePreRecv, driver.StateRecvFinish, driver.StateIrqEnableTimeSet:
	}
	return nil
}

// flushLocked writes the collected chain. write(2) on a lirc device blocks
// until the kernel has transmitted it.
func (d *Driver) flushLocked() error {
	buf := d.tx.bytes()
	d.tx.reset()
	if len(buf) == 0 {
		return nil
	}

	if d.features&lircCanSetSendCarrier != 0 && d.txFreq > 0 {
		if err := unix.IoctlSetPointerInt(d.fd, lircSetSendCarrier, int(d.txFreq)); err != nil {
			return fmt.Errorf("failed to set carrier %d: %w", d.txFreq, err)
		}
	}

	for len(buf) > 0 {
		n, err := unix.Write(d.fd, buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to write pulses: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

func (d *Driver) readLoop(fd int, stop <-chan struct{}) {
	defer d.wg.Done()

	dec := mode2Decoder{gapUs: DefaultGapUs}
	buf := make([]byte, readBatch*bytesPerWord)
	pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}} //nolint:gosec // fds are small

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := unix.Poll(pollFds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Error().Err(err).Str("path", d.path).Msg("lirc poll failed")
			return
		}
		if n == 0 || pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		read, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			log.Error().Err(err).Str("path", d.path).Msg("lirc read failed")
			return
		}

		d.mu.Lock()
		received := d.cb.Received
		paused := d.paused
		d.mu.Unlock()
		if paused || received == nil {
			continue
		}
		dec.feedBytes(buf[:read], received)
	}
}
