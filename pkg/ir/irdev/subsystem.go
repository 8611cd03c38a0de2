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

// Package irdev multiplexes IR hardware between the transmit and receive
// paths. Devices are registered once with a driver backend, opened with a
// Config, and then used to send frames and to receive decoded frames.
//
// All receive-capable devices share one background task. Driver sample
// callbacks write into a per-device ring buffer and hand the device to that
// task, which waits for the frame to end, decodes it and delivers the result
// either to the device's queue or to an application callback.
package irdev

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// MaxDevices is the registry capacity.
	MaxDevices = 8
	// MaxNameLength is the longest device name Register accepts, in bytes.
	MaxNameLength = 16
)

// Inhibitor keeps the host out of low-power states while a frame is being
// captured.
type Inhibitor interface {
	Acquire() error
	Release() error
}

type nopInhibitor struct{}

func (nopInhibitor) Acquire() error { return nil }
func (nopInhibitor) Release() error { return nil }

type Option func(*Subsystem)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Subsystem) {
		s.clock = clock
	}
}

func WithInhibitor(inh Inhibitor) Option {
	return func(s *Subsystem) {
		s.inhibitor = inh
	}
}

type recvTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Subsystem owns the device registry and the shared receive task. Separate
// Subsystems share nothing.
type Subsystem struct {
	clock     clockwork.Clock
	inhibitor Inhibitor
	epoch     time.Time
	// notify carries sessions that just started receiving to the task. Each
	// session is queued at most once per frame, so this never fills in
	// practice; callbacks still never block on it.
	notify  chan *recvSession
	task    *recvTask
	devices []*Device
	// recvActive counts devices taking part in receive. The task runs
	// while it is above zero.
	recvActive int
	stackSize  int
	mu         syncutil.Mutex
	// taskMu guards task and recvActive, and is held while the task stops
	// so two tasks never share notify.
	taskMu syncutil.Mutex
}

func New(opts ...Option) *Subsystem {
	s := &Subsystem{
		clock:     clockwork.NewRealClock(),
		inhibitor: nopInhibitor{},
		notify:    make(chan *recvSession, 2*MaxDevices),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.epoch = s.clock.Now()
	return s
}

// Register adds a device backed by drv. Names are unique and at most
// MaxNameLength bytes. Registered devices are never removed.
func (s *Subsystem) Register(name string, drv driver.Driver) (*Device, error) {
	if name == "" || len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: device name %q", ErrInvalidParameter, name)
	}
	if drv == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrInvalidParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.name == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
	}
	if len(s.devices) >= MaxDevices {
		return nil, ErrRegistryFull
	}

	d := newDevice(s, name, drv)
	s.devices = append(s.devices, d)
	log.Debug().Msgf("registered ir device: %s", name)
	return d, nil
}

func (s *Subsystem) Find(name string) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Devices returns the registered devices in registration order.
func (s *Subsystem) Devices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Device(nil), s.devices...)
}

// Close closes every open device.
func (s *Subsystem) Close() error {
	var errs []error
	for _, d := range s.Devices() {
		if !d.IsOpen() {
			continue
		}
		if err := d.Close(); err != nil && !errors.Is(err, ErrNotOpen) {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	return errors.Join(errs...)
}

// RecvTaskRunning reports whether the shared receive task is alive.
func (s *Subsystem) RecvTaskRunning() bool {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	return s.task != nil
}

// joinRecv registers one more receiving device, starting the task for the
// first one.
func (s *Subsystem) joinRecv() {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	s.recvActive++
	if s.task != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &recvTask{cancel: cancel, done: make(chan struct{})}
	s.task = t
	log.Debug().Msg("starting ir receive task")
	go s.runRecvTask(ctx, t.done)
}

// leaveRecv drops one receiving device and, after the last one, stops the
// task and waits for it to exit.
func (s *Subsystem) leaveRecv() {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	s.recvActive--
	if s.recvActive > 0 || s.task == nil {
		return
	}
	t := s.task
	s.task = nil
	t.cancel()
	<-t.done
	log.Debug().Msg("ir receive task stopped")
}

// tick is a millisecond counter that wraps like a hardware tick counter.
func (s *Subsystem) tick() uint32 {
	return uint32(s.clock.Since(s.epoch) / time.Millisecond)
}
