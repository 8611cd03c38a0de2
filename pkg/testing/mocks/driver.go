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
	"fmt"
	"sync"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/stretchr/testify/mock"
)

// MockDriver is a mock implementation of driver.Driver using testify/mock.
// The callbacks passed to Open are kept so tests can play the hardware.
type MockDriver struct {
	mock.Mock
	cb driver.Callbacks
	mu sync.Mutex
}

func (m *MockDriver) Open(mode driver.Mode, cb driver.Callbacks) error {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()

	args := m.Called(mode, cb)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockDriver) Close(mode driver.Mode) error {
	args := m.Called(mode)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockDriver) Output(freqHz uint32, active bool, durationUs uint32) error {
	args := m.Called(freqHz, active, durationUs)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockDriver) StatusNotify(state driver.State, arg any) error {
	args := m.Called(state, arg)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

// Callbacks returns the callbacks from the last Open call.
func (m *MockDriver) Callbacks() driver.Callbacks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb
}

// NewMockDriver returns a MockDriver with no expectations.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

// SetupSuccess lets every method succeed. Expectations registered before it
// take precedence.
func (m *MockDriver) SetupSuccess() *MockDriver {
	m.On("Open", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("Close", mock.Anything).Return(nil).Maybe()
	m.On("Output", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("StatusNotify", mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}
