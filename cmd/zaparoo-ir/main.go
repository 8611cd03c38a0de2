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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/zaparoo-ir/pkg/cli"
	"github.com/ZaparooProject/zaparoo-ir/pkg/config"
	"github.com/ZaparooProject/zaparoo-ir/pkg/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	flag.Parse()

	if flags.Pre(os.Stdout) {
		return nil
	}

	var logWriters []io.Writer
	if *flags.Daemon || *flags.Listen || *flags.Send != "" {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg, err := cli.Setup(afero.NewOsFs(), config.BaseDefaults, logWriters, *flags.Debug)
	if err != nil {
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	switch {
	case *flags.Config:
		_, _ = fmt.Println(cfg.Path())
		return nil
	case *flags.Send != "":
		return cli.RunSend(ctx, cfg, flags)
	case *flags.Listen:
		return cli.RunListen(ctx, cfg, os.Stdout)
	case *flags.Daemon:
		stopSvc, done, err := service.Start(cfg)
		if err != nil {
			return fmt.Errorf("error starting service: %w", err)
		}
		log.Info().Msg("started in daemon mode")

		select {
		case <-ctx.Done():
		case <-done:
		}

		if err := stopSvc(); err != nil {
			log.Error().Msgf("error stopping service: %s", err)
			return fmt.Errorf("error stopping service: %w", err)
		}
		return nil
	default:
		flag.Usage()
		return errors.New("nothing to do: pass -daemon, -listen or -send")
	}
}
