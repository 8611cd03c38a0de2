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
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigDir = "/config"

func writeConfig(t *testing.T, fs afero.Fs, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(testConfigDir, 0o750))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(testConfigDir, CfgFile), []byte(content), 0o600))
}

func TestNewConfig_WritesDefaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, filepath.Join(testConfigDir, CfgFile))
	require.NoError(t, err)
	assert.True(t, exists)

	devices := cfg.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, "ir0", devices[0].Name)
	assert.Equal(t, DriverLIRC, devices[0].Driver)
	assert.Equal(t, "/dev/lirc0", devices[0].Path)
	assert.Equal(t, filepath.Join(testConfigDir, CfgFile), cfg.Path())
}

func TestNewConfig_EnvOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv(CfgEnv, "/elsewhere/custom.toml")

	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/custom.toml", cfg.Path())

	exists, err := afero.Exists(fs, "/elsewhere/custom.toml")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLoad_DevicesAndNEC(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, `config_schema = 1
debug_logging = true

[recv]
stack_size = 4096

[[devices]]
name = "tv"
driver = "irtoy"
path = "/dev/ttyACM0"
mode = "send"
send_delay_us = 40000

[[devices]]
name = "loop"
driver = "loopback"
protocol = "timecode"
recv_buf_size = 256
recv_queue_depth = 5
recv_timeout_ms = 150

[devices.nec]
msb = true
lead_err = 10
logics_err = 35
logic0_err = 35
logic1_err = 25
repeat_err = 15
`)

	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	assert.True(t, cfg.DebugLogging())
	assert.Equal(t, 4096, cfg.RecvStackSize())

	devices := cfg.Devices()
	require.Len(t, devices, 2)

	tv := devices[0]
	assert.Equal(t, "tv", tv.Name)
	assert.Equal(t, DriverIRToy, tv.Driver)
	assert.Equal(t, ModeSend, tv.Mode)
	assert.Equal(t, 40000, tv.SendDelayUs)
	assert.Nil(t, tv.NEC)
	assert.Equal(t, nec.DefaultConfig, tv.NECConfig())

	loop, ok := cfg.LookupDevice("loop")
	require.True(t, ok)
	assert.Equal(t, ProtocolTimecode, loop.Protocol)
	assert.Equal(t, 256, loop.RecvBufSize)
	assert.Equal(t, 5, loop.RecvQueueDepth)
	assert.Equal(t, 150, loop.RecvTimeoutMs)
	assert.Equal(t, nec.Config{
		IsMSB:     true,
		LeadErr:   10,
		LogicsErr: 35,
		Logic0Err: 35,
		Logic1Err: 25,
		RepeatErr: 15,
	}, loop.NECConfig())

	_, ok = cfg.LookupDevice("missing")
	assert.False(t, ok)
}

func TestLoad_PreservesDefaultsForMissingFields(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config_schema = 1\n")

	defaults := BaseDefaults
	defaults.DebugLogging = true
	defaults.Recv.StackSize = 2048

	cfg, err := NewConfig(fs, testConfigDir, defaults)
	require.NoError(t, err)

	assert.True(t, cfg.DebugLogging())
	assert.Equal(t, 2048, cfg.RecvStackSize())
	assert.Empty(t, cfg.Devices(), "file without devices replaces the default list")
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		content string
	}{
		{
			name:    "schema mismatch",
			content: "config_schema = 7\n",
			wantErr: ErrSchemaMismatch,
		},
		{
			name: "unknown driver",
			content: `config_schema = 1
[[devices]]
name = "a"
driver = "serial"
`,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "bad mode",
			content: `config_schema = 1
[[devices]]
name = "a"
driver = "loopback"
mode = "both"
`,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "name too long",
			content: `config_schema = 1
[[devices]]
name = "abcdefghijklmnopq"
driver = "loopback"
`,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "duplicate names",
			content: `config_schema = 1
[[devices]]
name = "a"
driver = "loopback"
[[devices]]
name = "a"
driver = "lirc"
`,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "tolerance out of range",
			content: `config_schema = 1
[[devices]]
name = "a"
driver = "loopback"
[devices.nec]
lead_err = 100
`,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "tiny receive buffer",
			content: `config_schema = 1
[[devices]]
name = "a"
driver = "loopback"
recv_buf_size = 2
`,
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			writeConfig(t, fs, tt.content)

			_, err := NewConfig(fs, testConfigDir, BaseDefaults)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config_schema = [\n")

	_, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	necCfg := nec.DefaultConfig
	necCfg.IsMSB = true
	require.NoError(t, cfg.SetDevices([]Device{
		{Name: "loop", Driver: DriverLoopback, Mode: ModeRecv, NEC: &necCfg, RecvTimeoutMs: 80},
	}))
	cfg.SetDebugLogging(true)
	cfg.SetRecvStackSize(8192)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	assert.True(t, reloaded.DebugLogging())
	assert.Equal(t, 8192, reloaded.RecvStackSize())
	devices := reloaded.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, "loop", devices[0].Name)
	assert.Equal(t, ModeRecv, devices[0].Mode)
	assert.Equal(t, 80, devices[0].RecvTimeoutMs)
	assert.True(t, devices[0].NECConfig().IsMSB)
}

func TestSetDevices_RejectsInvalid(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	err = cfg.SetDevices([]Device{{Name: "", Driver: DriverLoopback}})
	require.ErrorIs(t, err, ErrInvalidConfig)

	devices := cfg.Devices()
	require.Len(t, devices, 1, "rejected list must not replace current devices")
	assert.Equal(t, "ir0", devices[0].Name)
}

func TestDevices_ReturnsCopies(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	necCfg := nec.DefaultConfig
	require.NoError(t, cfg.SetDevices([]Device{{Name: "a", Driver: DriverLoopback, NEC: &necCfg}}))

	devices := cfg.Devices()
	devices[0].Name = "changed"
	devices[0].NEC.LeadErr = 99

	again := cfg.Devices()
	assert.Equal(t, "a", again[0].Name)
	assert.Equal(t, nec.DefaultConfig.LeadErr, again[0].NEC.LeadErr)
	assert.Equal(t, "ir0", BaseDefaults.Devices[0].Name)
}

func TestInstance_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if i%2 == 0 {
					cfg.SetDebugLogging(true)
					_ = cfg.Devices()
				} else {
					_ = cfg.DebugLogging()
					_, _ = cfg.LookupDevice("ir0")
				}
			}
		}()
	}
	wg.Wait()

	require.NoError(t, cfg.Save())
	require.NoError(t, cfg.Load())
	assert.True(t, cfg.DebugLogging())
}

func TestLoad_Keymap(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, `config_schema = 1

[[keymap]]
address = 0x00
command = 0x45
key = "{power}"

[[keymap]]
device = "ir1"
address = 0x00
command = 0x46
key = "{volumeup}"
repeat = true
`)

	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	km := cfg.Keymap()
	require.Len(t, km, 2)
	assert.Equal(t, "{power}", km[0].Key)
	assert.True(t, km[0].Matches("ir0", 0x00, 0x45))
	assert.True(t, km[0].Matches("ir1", 0x00, 0x45))
	assert.False(t, km[0].Matches("ir0", 0x00, 0x46))

	assert.True(t, km[1].Repeat)
	assert.True(t, km[1].Matches("ir1", 0x00, 0x46))
	assert.False(t, km[1].Matches("ir0", 0x00, 0x46))
}

func TestSetKeymap_RequiresKey(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfig(fs, testConfigDir, BaseDefaults)
	require.NoError(t, err)

	err = cfg.SetKeymap([]KeyMapping{{Address: 1, Command: 2}})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Empty(t, cfg.Keymap())

	require.NoError(t, cfg.SetKeymap([]KeyMapping{{Address: 1, Command: 2, Key: "a"}}))
	assert.Len(t, cfg.Keymap(), 1)
}
