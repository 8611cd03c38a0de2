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

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ZaparooProject/zaparoo-ir/pkg/config"
	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/irdev"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/ZaparooProject/zaparoo-ir/pkg/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrInvalidSend = errors.New("invalid send value")

type Flags struct {
	Daemon  *bool
	Send    *string
	Device  *string
	Freq    *uint
	Count   *uint
	Listen  *bool
	Version *bool
	Config  *bool
	Debug   *bool
}

// SetupFlags defines every flag on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Daemon: fs.Bool(
			"daemon",
			false,
			"open configured devices and log received frames",
		),
		Send: fs.String(
			"send",
			"",
			"send nec:ADDR:CMD[:REPEAT] or raw:d1,d2,... and exit",
		),
		Device: fs.String(
			"device",
			"",
			"device name for -send (default first send capable device)",
		),
		Freq: fs.Uint(
			"freq",
			nec.Carrier,
			"carrier frequency in Hz for -send",
		),
		Count: fs.Uint(
			"count",
			1,
			"number of times to transmit the -send value",
		),
		Listen: fs.Bool(
			"listen",
			false,
			"print received frames until interrupted",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Config: fs.Bool(
			"config",
			false,
			"print config file path and exit",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

// Pre handles flags that need no config or devices. It reports whether
// the program should exit.
func (f *Flags) Pre(out io.Writer) bool {
	if *f.Version {
		_, _ = fmt.Fprintf(out, "Zaparoo IR v%s\n", config.AppVersion)
		return true
	}
	return false
}

// Setup initializes logging and loads the user config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	fs afero.Fs,
	defaultConfig config.Values,
	writers []io.Writer,
	debug bool,
) (*config.Instance, error) {
	logDir, err := helpers.LogDir()
	if err != nil {
		return nil, err
	}
	err = helpers.InitLogging(logDir, writers)
	if err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfgDir, err := helpers.ConfigDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(fs, cfgDir, defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	helpers.SetDebugLogging(debug || cfg.DebugLogging())
	return cfg, nil
}

// ParseSend parses a -send value. NEC numbers accept 0x prefixes. A
// REPEAT field sets the number of repeat codes after the frame.
func ParseSend(value string) (irdev.Frame, error) {
	kind, rest, ok := strings.Cut(value, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSend, value)
	}

	switch strings.ToLower(kind) {
	case "nec":
		ps := strings.Split(rest, ":")
		if len(ps) < 2 || len(ps) > 3 {
			return nil, fmt.Errorf("%w: expected nec:ADDR:CMD[:REPEAT]", ErrInvalidSend)
		}
		var vals [3]uint16
		for i, p := range ps {
			v, err := strconv.ParseUint(p, 0, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSend, p, err)
			}
			vals[i] = uint16(v)
		}
		if vals[2] > nec.MaxRepeatCount {
			return nil, fmt.Errorf("%w: repeat count %d exceeds %d", ErrInvalidSend, vals[2], nec.MaxRepeatCount)
		}
		return irdev.NECFrame{Frame: nec.Frame{
			Address:     vals[0],
			Command:     vals[1],
			RepeatCount: vals[2],
		}}, nil
	case "raw":
		ps := strings.Split(rest, ",")
		durations := make([]uint32, 0, len(ps))
		for _, p := range ps {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
			if err != nil || v == 0 {
				return nil, fmt.Errorf("%w: duration %q", ErrInvalidSend, p)
			}
			durations = append(durations, uint32(v))
		}
		return irdev.TimecodeFrame{Durations: durations}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSend, kind)
	}
}

// RunSend transmits the -send value once and closes the devices.
func RunSend(ctx context.Context, cfg *config.Instance, f *Flags, opts ...service.Option) error {
	frame, err := ParseSend(*f.Send)
	if err != nil {
		return err
	}
	if *f.Count == 0 || *f.Count > math.MaxUint8 {
		return fmt.Errorf("%w: count must be 1-%d", ErrInvalidSend, math.MaxUint8)
	}
	if *f.Freq > math.MaxUint32 {
		return fmt.Errorf("%w: frequency %d", ErrInvalidSend, *f.Freq)
	}

	svc, err := service.Open(cfg, opts...)
	if err != nil {
		return fmt.Errorf("error opening devices: %w", err)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing devices")
		}
	}()

	err = svc.Send(ctx, *f.Device, uint32(*f.Freq), frame, uint8(*f.Count))
	if err != nil {
		log.Error().Err(err).Msg("error sending")
		return err
	}
	log.Info().Msgf("sent %s", *f.Send)
	return nil
}

// FormatFrame renders a frame the way -listen prints it.
func FormatFrame(d *irdev.Device, f irdev.Frame) string {
	switch fr := f.(type) {
	case irdev.NECFrame:
		return fmt.Sprintf("%s nec %s", d.Name(), fr.Frame)
	case irdev.TimecodeFrame:
		vs := make([]string, len(fr.Durations))
		for i, v := range fr.Durations {
			vs[i] = strconv.FormatUint(uint64(v), 10)
		}
		return fmt.Sprintf("%s raw:%s", d.Name(), strings.Join(vs, ","))
	default:
		return fmt.Sprintf("%s %T", d.Name(), f)
	}
}

// RunListen prints every received frame to out until ctx is done.
func RunListen(ctx context.Context, cfg *config.Instance, out io.Writer, opts ...service.Option) error {
	svc, err := service.Open(cfg, opts...)
	if err != nil {
		return fmt.Errorf("error opening devices: %w", err)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing devices")
		}
	}()

	err = svc.Listen(ctx, func(d *irdev.Device, f irdev.Frame) {
		_, _ = fmt.Fprintln(out, FormatFrame(d, f))
	})
	if err != nil {
		return fmt.Errorf("error listening: %w", err)
	}
	return nil
}
