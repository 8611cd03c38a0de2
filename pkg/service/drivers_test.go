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
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/config"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/drivers/irtoy"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/drivers/lirc"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/drivers/loopback"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/irdev"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceConfig(t *testing.T) {
	t.Parallel()

	necCfg := nec.Config{IsMSB: true, LeadErr: 10}

	tests := []struct {
		wantErr error
		name    string
		dev     config.Device
		want    irdev.Config
	}{
		{
			name: "defaults",
			dev:  config.Device{Name: "a", Driver: config.DriverLoopback},
			want: irdev.Config{
				Mode:     driver.ModeSendRecv,
				Protocol: irdev.ProtocolNEC,
				NEC:      nec.DefaultConfig,
			},
		},
		{
			name: "all fields",
			dev: config.Device{
				Name:           "a",
				Driver:         config.DriverLIRC,
				Mode:           config.ModeRecv,
				Protocol:       config.ProtocolTimecode,
				RecvBufSize:    64,
				RecvQueueDepth: 2,
				RecvTimeoutMs:  120,
				NEC:            &necCfg,
			},
			want: irdev.Config{
				Mode:           driver.ModeRecv,
				Protocol:       irdev.ProtocolTimecode,
				NEC:            necCfg,
				RecvBufSize:    64,
				RecvQueueDepth: 2,
				RecvTimeout:    120 * time.Millisecond,
			},
		},
		{
			name: "send only",
			dev:  config.Device{Name: "a", Mode: config.ModeSend},
			want: irdev.Config{
				Mode:     driver.ModeSend,
				Protocol: irdev.ProtocolNEC,
				NEC:      nec.DefaultConfig,
			},
		},
		{
			name:    "bad mode",
			dev:     config.Device{Name: "a", Mode: "both"},
			wantErr: irdev.ErrInvalidParameter,
		},
		{
			name:    "bad protocol",
			dev:     config.Device{Name: "a", Protocol: "rc5"},
			wantErr: irdev.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DeviceConfig(&tt.dev)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultDriverFactory(t *testing.T) {
	t.Parallel()

	drv, err := DefaultDriverFactory(&config.Device{Name: "a", Driver: config.DriverLoopback})
	require.NoError(t, err)
	assert.IsType(t, &loopback.Driver{}, drv)

	drv, err = DefaultDriverFactory(&config.Device{Name: "b", Driver: config.DriverLIRC})
	require.NoError(t, err)
	assert.IsType(t, &lirc.Driver{}, drv)

	drv, err = DefaultDriverFactory(&config.Device{Name: "c", Driver: config.DriverIRToy, Path: "/dev/ttyACM0"})
	require.NoError(t, err)
	assert.IsType(t, &irtoy.Driver{}, drv)

	_, err = DefaultDriverFactory(&config.Device{Name: "d", Driver: "serial"})
	require.ErrorIs(t, err, ErrUnknownDriver)
}
