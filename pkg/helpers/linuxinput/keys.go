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

package linuxinput

import "strings"

const keyLeftShift = 42

// Linux input event codes.
var namedKeys = map[string]int{
	"esc":          1,
	"backspace":    14,
	"tab":          15,
	"enter":        28,
	"ctrl":         29,
	"shift":        42,
	"alt":          56,
	"space":        57,
	"f1":           59,
	"f2":           60,
	"f3":           61,
	"f4":           62,
	"f5":           63,
	"f6":           64,
	"f7":           65,
	"f8":           66,
	"f9":           67,
	"f10":          68,
	"f11":          87,
	"f12":          88,
	"home":         102,
	"up":           103,
	"pageup":       104,
	"left":         105,
	"right":        106,
	"end":          107,
	"down":         108,
	"pagedown":     109,
	"insert":       110,
	"delete":       111,
	"mute":         113,
	"volumedown":   114,
	"volumeup":     115,
	"power":        116,
	"meta":         125,
	"nextsong":     163,
	"playpause":    164,
	"previoussong": 165,
	"stopcd":       166,
}

var charKeys = map[rune]int{
	'1': 2, '2': 3, '3': 4, '4': 5, '5': 6, '6': 7, '7': 8, '8': 9, '9': 10, '0': 11,
	'-': 12, '=': 13,
	'q': 16, 'w': 17, 'e': 18, 'r': 19, 't': 20, 'y': 21, 'u': 22, 'i': 23, 'o': 24, 'p': 25,
	'[': 26, ']': 27,
	'a': 30, 's': 31, 'd': 32, 'f': 33, 'g': 34, 'h': 35, 'j': 36, 'k': 37, 'l': 38,
	';': 39, '\'': 40, '`': 41, '\\': 43,
	'z': 44, 'x': 45, 'c': 46, 'v': 47, 'b': 48, 'n': 49, 'm': 50,
	',': 51, '.': 52, '/': 53,
}

// ToKeyboardCode maps a single character or a {name} to its key code.
// Upper case letters return the negated code of the lower case key.
func ToKeyboardCode(name string) (int, bool) {
	if len(name) > 2 && name[0] == '{' && name[len(name)-1] == '}' {
		code, ok := namedKeys[strings.ToLower(name[1:len(name)-1])]
		return code, ok
	}

	rs := []rune(name)
	if len(rs) != 1 {
		return 0, false
	}
	r := rs[0]
	if r >= 'A' && r <= 'Z' {
		code, ok := charKeys[r+('a'-'A')]
		return -code, ok
	}
	code, ok := charKeys[r]
	return code, ok
}
