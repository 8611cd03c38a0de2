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
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-ir/pkg/config"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// WatchConfig reloads cfg whenever its file is written or replaced and
// passes it to apply. A file that fails to load is logged and the previous
// values stay in effect. The directory is watched so editors that replace
// the file are seen.
func WatchConfig(cfg *config.Instance, apply func(*config.Instance)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	path := filepath.Clean(cfg.Path())
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path ||
					!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := cfg.Load(); err != nil {
					log.Error().Err(err).Msg("error reloading config")
					continue
				}
				log.Info().Msg("config reloaded")
				apply(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("error in config watcher")
			}
		}
	}()

	log.Info().Msgf("watching config file: %s", path)
	return func() error {
		err := watcher.Close()
		<-done
		if err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			return fmt.Errorf("failed to close config watcher: %w", err)
		}
		return nil
	}, nil
}
