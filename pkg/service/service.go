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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/config"
	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/inhibit"
	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/linuxinput"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/irdev"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// listenTimeout bounds each Recv in a listen loop so a loop notices a
// closed device without waiting on ctx.
const listenTimeout = time.Second

type FrameHandler func(d *irdev.Device, f irdev.Frame)

type Option func(*options)

type options struct {
	factory  DriverFactory
	keyboard KeyboardFactory
	subOpts  []irdev.Option
}

func WithDriverFactory(f DriverFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithKeyboardFactory replaces the uinput keyboard used for [[keymap]]
// entries.
func WithKeyboardFactory(f KeyboardFactory) Option {
	return func(o *options) {
		o.keyboard = f
	}
}

// WithSubsystemOptions are passed to irdev.New. The default adds a logind
// inhibitor.
func WithSubsystemOptions(opts ...irdev.Option) Option {
	return func(o *options) {
		o.subOpts = opts
	}
}

// Service owns a Subsystem holding every configured device.
type Service struct {
	sub     *irdev.Subsystem
	devices []*irdev.Device
}

// Open registers and opens every device in cfg. On failure the devices
// opened so far are closed again.
func Open(cfg *config.Instance, opts ...Option) (*Service, error) {
	o := buildOptions(opts)

	svc := &Service{sub: irdev.New(o.subOpts...)}

	if n := cfg.RecvStackSize(); n > 0 {
		if err := svc.sub.SetRecvStackSize(n); err != nil {
			return nil, fmt.Errorf("failed to set receive stack size: %w", err)
		}
	}

	for _, dc := range cfg.Devices() {
		d, err := svc.openDevice(&dc, o.factory)
		if err != nil {
			if closeErr := svc.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("error closing devices after failed start")
			}
			return nil, err
		}
		svc.devices = append(svc.devices, d)
	}

	return svc, nil
}

func buildOptions(opts []Option) options {
	o := options{
		factory:  DefaultDriverFactory,
		keyboard: linuxinput.NewKeyboard,
		subOpts: []irdev.Option{
			irdev.WithInhibitor(inhibit.New(helpers.AppName, "receiving infrared frame")),
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (s *Service) openDevice(dc *config.Device, factory DriverFactory) (*irdev.Device, error) {
	irCfg, err := DeviceConfig(dc)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", dc.Name, err)
	}

	drv, err := factory(dc)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", dc.Name, err)
	}

	d, err := s.sub.Register(dc.Name, drv)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", dc.Name, err)
	}

	err = d.Open(irCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dc.Name, err)
	}

	if dc.SendDelayUs > 0 {
		err = d.SetSendDelay(time.Duration(dc.SendDelayUs) * time.Microsecond)
		if err != nil {
			return d, fmt.Errorf("failed to set send delay on %s: %w", dc.Name, err)
		}
	}

	log.Info().
		Str("device", dc.Name).
		Str("driver", dc.Driver).
		Str("mode", irCfg.Mode.String()).
		Str("protocol", irCfg.Protocol.String()).
		Msg("ir device ready")
	return d, nil
}

func (s *Service) Subsystem() *irdev.Subsystem {
	return s.sub
}

func (s *Service) Devices() []*irdev.Device {
	return s.sub.Devices()
}

// Send transmits f on the named device, or the first send-capable device
// when name is empty.
func (s *Service) Send(ctx context.Context, name string, freqHz uint32, f irdev.Frame, count uint8) error {
	d, err := s.sendDevice(name)
	if err != nil {
		return err
	}
	err = d.Send(ctx, freqHz, f, count)
	if err != nil {
		return fmt.Errorf("failed to send on %s: %w", d.Name(), err)
	}
	return nil
}

func (s *Service) sendDevice(name string) (*irdev.Device, error) {
	if name != "" {
		d, err := s.sub.Find(name)
		if err != nil {
			return nil, fmt.Errorf("failed to find device: %w", err)
		}
		return d, nil
	}
	for _, d := range s.sub.Devices() {
		if d.IsOpen() && d.Status().Mode.CanSend() {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no send capable device", irdev.ErrNotFound)
}

// Listen runs one receive loop per receive-capable device, calling fn for
// each frame, until ctx is done or a device fails. Frames are released
// after fn returns.
func (s *Service) Listen(ctx context.Context, fn FrameHandler) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range s.sub.Devices() {
		if !d.IsOpen() || !d.Status().Mode.CanRecv() {
			continue
		}
		g.Go(func() error {
			return listen(gctx, d, fn)
		})
	}
	err := g.Wait()
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}
	return nil
}

func listen(ctx context.Context, d *irdev.Device, fn FrameHandler) error {
	for {
		f, err := d.Recv(ctx, listenTimeout)
		switch {
		case err == nil:
			fn(d, f)
			d.RecvRelease(f)
		case errors.Is(err, irdev.ErrTimeout):
			continue
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("receive on %s: %w", d.Name(), err)
		}
	}
}

// Close closes every open device.
func (s *Service) Close() error {
	var errs []error
	for _, d := range s.sub.Devices() {
		if !d.IsOpen() {
			continue
		}
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogFrame is the daemon's frame handler.
func LogFrame(d *irdev.Device, f irdev.Frame) {
	switch fr := f.(type) {
	case irdev.NECFrame:
		log.Info().
			Str("device", d.Name()).
			Str("protocol", fr.Protocol().String()).
			Msgf("received %s", fr.Frame)
	case irdev.TimecodeFrame:
		log.Info().
			Str("device", d.Name()).
			Str("protocol", fr.Protocol().String()).
			Int("length", len(fr.Durations)).
			Msgf("received timecode %v", fr.Durations)
	default:
		log.Warn().Str("device", d.Name()).Msgf("received unknown frame: %T", f)
	}
}

// Start opens the configured devices and logs their frames in the
// background, pressing keys for any [[keymap]] matches. stop closes
// everything and waits for the listen loops.
func Start(cfg *config.Instance, opts ...Option) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	handler := LogFrame
	var km *Keymapper
	if mappings := cfg.Keymap(); len(mappings) > 0 {
		km, err = startKeymapper(buildOptions(opts).keyboard, mappings)
		if err != nil {
			log.Error().Err(err).Msg("keymap disabled")
		} else {
			handler = func(d *irdev.Device, f irdev.Frame) {
				LogFrame(d, f)
				km.Handle(d, f)
			}
		}
	}

	svc, err := Open(cfg, opts...)
	if err != nil {
		log.Error().Err(err).Msg("error opening ir devices")
		if km != nil {
			_ = km.Close()
		}
		return nil, nil, err
	}

	stopWatch, err := WatchConfig(cfg, func(c *config.Instance) {
		helpers.SetDebugLogging(c.DebugLogging())
		if km == nil {
			return
		}
		if err := km.Update(c.Keymap()); err != nil {
			log.Error().Err(err).Msg("keeping previous keymap")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("config changes will need a restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		log.Info().Msg("starting ir listen loops")
		if err := svc.Listen(ctx, handler); err != nil {
			log.Error().Err(err).Msg("ir listen loop stopped")
		}
	}()

	stop = func() error {
		cancel()
		<-doneCh
		if stopWatch != nil {
			if err := stopWatch(); err != nil {
				log.Warn().Err(err).Msg("error stopping config watcher")
			}
		}
		if km != nil {
			if err := km.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing keyboard")
			}
		}
		err := svc.Close()
		if err != nil {
			log.Error().Err(err).Msg("error closing ir devices")
			return err
		}
		log.Info().Msg("service cleanup completed")
		return nil
	}
	return stop, doneCh, nil
}

func startKeymapper(newKeyboard KeyboardFactory, mappings []config.KeyMapping) (*Keymapper, error) {
	kbd, err := newKeyboard(linuxinput.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyboard: %w", err)
	}
	km, err := NewKeymapper(kbd, mappings)
	if err != nil {
		_ = kbd.Close()
		return nil, err
	}
	log.Info().Msgf("mapped %d ir frames to keys", len(mappings))
	return km, nil
}
