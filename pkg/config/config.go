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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ZAPAROO_IR_CFG"
	CfgFile       = "zaparoo-ir.toml"
)

// AppVersion is set at build time with -ldflags.
var AppVersion = "DEVELOPMENT"

var (
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrInvalidConfig  = errors.New("invalid config")
)

type Values struct {
	Devices      []Device     `toml:"devices,omitempty" validate:"max=8,unique=Name,dive"`
	Keymap       []KeyMapping `toml:"keymap,omitempty" validate:"dive"`
	Recv         Recv         `toml:"recv,omitempty"`
	ConfigSchema int      `toml:"config_schema"`
	DebugLogging bool     `toml:"debug_logging"`
}

type Recv struct {
	// StackSize is reported in device status only.
	StackSize int `toml:"stack_size,omitempty" validate:"omitempty,min=1024"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Devices: []Device{
		{
			Name:     "ir0",
			Driver:   DriverLIRC,
			Path:     "/dev/lirc0",
			Mode:     ModeSendRecv,
			Protocol: ProtocolNEC,
		},
	},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type Instance struct {
	fs       afero.Fs
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads zaparoo-ir.toml from configDir, or the file named by
// ZAPAROO_IR_CFG. A missing file is created from defaults.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(fs afero.Fs, configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		fs:       fs,
		cfgPath:  cfgPath,
		defaults: defaults,
	}
	cfg.vals = cloneValues(defaults)

	if _, err := fs.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := fs.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top. Device and
	// keymap lists come from the file only.
	newVals := cloneValues(c.defaults)
	newVals.Devices = nil
	newVals.Keymap = nil
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	if err := validateValues(&newVals); err != nil {
		return err
	}

	c.vals = newVals
	log.Info().Msgf("loaded config with %d ir devices", len(newVals.Devices))
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = afero.WriteFile(c.fs, c.cfgPath, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func validateValues(v *Values) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}

//nolint:gocritic // values copied on purpose
func cloneValues(v Values) Values {
	v.Devices = cloneDevices(v.Devices)
	v.Keymap = cloneKeymap(v.Keymap)
	return v
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

func (c *Instance) RecvStackSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Recv.StackSize
}

func (c *Instance) SetRecvStackSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recv.StackSize = n
}
