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

import "github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"

// MockKeyboard records key events in place of a uinput keyboard.
type MockKeyboard struct {
	KeyDownErr   error
	keyDownCalls []int
	keyUpCalls   []int
	mu           syncutil.Mutex
	closed       bool
}

func NewMockKeyboard() *MockKeyboard {
	return &MockKeyboard{}
}

func (m *MockKeyboard) KeyDown(key int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.KeyDownErr != nil {
		return m.KeyDownErr
	}
	m.keyDownCalls = append(m.keyDownCalls, key)
	return nil
}

func (m *MockKeyboard) KeyUp(key int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyUpCalls = append(m.keyUpCalls, key)
	return nil
}

func (m *MockKeyboard) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockKeyboard) KeyDownCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.keyDownCalls...)
}

func (m *MockKeyboard) KeyUpCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.keyUpCalls...)
}

func (m *MockKeyboard) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
