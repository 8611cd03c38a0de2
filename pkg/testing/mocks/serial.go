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

package mocks

import (
	"errors"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
)

var errPortClosed = errors.New("port closed")

// MockSerialPort is an in-memory serial port. Bytes passed to Feed are
// returned by Read; writes are recorded and handed to WriteFunc, which can
// Feed a reply the way a device would.
type MockSerialPort struct {
	WriteError error
	CloseError error
	TimeoutErr error
	WriteFunc  func(p []byte)
	incoming   chan []byte
	leftover   []byte
	written    []byte
	timeout    time.Duration
	mu         syncutil.Mutex
	closed     bool
}

func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{
		incoming: make(chan []byte, 256),
		timeout:  10 * time.Millisecond,
	}
}

// Feed queues data to be read.
func (m *MockSerialPort) Feed(data ...byte) {
	m.incoming <- append([]byte(nil), data...)
}

// Read blocks for up to the read timeout and returns 0, nil when nothing
// arrives, like a real port.
func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	closed := m.closed
	timeout := m.timeout
	m.mu.Unlock()
	if closed {
		return 0, errPortClosed
	}

	if len(m.leftover) == 0 {
		select {
		case data := <-m.incoming:
			m.leftover = data
		case <-time.After(timeout):
			return 0, nil
		}
	}
	n := copy(p, m.leftover)
	m.leftover = m.leftover[n:]
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errPortClosed
	}
	if m.WriteError != nil {
		err := m.WriteError
		m.mu.Unlock()
		return 0, err
	}
	m.written = append(m.written, p...)
	hook := m.WriteFunc
	m.mu.Unlock()

	if hook != nil {
		hook(append([]byte(nil), p...))
	}
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseError
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TimeoutErr != nil {
		return m.TimeoutErr
	}
	// Keep reads short so readers notice Close quickly.
	m.timeout = min(t, 10*time.Millisecond)
	return nil
}

// Written returns every byte written so far.
func (m *MockSerialPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// IsClosed returns true if the port has been closed.
func (m *MockSerialPort) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
