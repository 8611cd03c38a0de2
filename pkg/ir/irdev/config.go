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

package irdev

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultRecvBufSize    = 1024
	DefaultRecvQueueDepth = 3
	DefaultRecvTimeout    = 300 * time.Millisecond
)

// Config is applied to a device by Open. Zero values for the receive
// settings select the defaults above.
type Config struct {
	NEC            nec.Config
	RecvTimeout    time.Duration `validate:"omitempty,min=1ms,max=1h"`
	RecvBufSize    int           `validate:"omitempty,min=4"`
	RecvQueueDepth int           `validate:"omitempty,min=1,max=256"`
	Mode           driver.Mode
	Protocol       Protocol
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) withDefaults() Config {
	if c.RecvBufSize == 0 {
		c.RecvBufSize = DefaultRecvBufSize
	}
	if c.RecvQueueDepth == 0 {
		c.RecvQueueDepth = DefaultRecvQueueDepth
	}
	if c.RecvTimeout == 0 {
		c.RecvTimeout = DefaultRecvTimeout
	}
	return c
}

func (c Config) validate() error {
	if c.Mode >= driver.ModeMax {
		return fmt.Errorf("%w: mode %s", ErrInvalidParameter, c.Mode)
	}
	if c.Protocol >= ProtocolMax {
		return fmt.Errorf("%w: protocol %s", ErrInvalidParameter, c.Protocol)
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidParameter, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return nil
}
