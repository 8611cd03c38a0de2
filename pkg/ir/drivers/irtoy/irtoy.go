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

// Package irtoy drives a Dangerous Prototypes USB IR Toy in sample mode over
// its CDC serial port.
//
// In sample mode the toy reports each mark and space as a 16-bit big-endian
// count of 21.333us ticks, with 0xFFFF marking the end of a capture.
// Transmission uses the same encoding with the handshake, notify and byte
// count extensions enabled.
package irtoy

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	cmdReset      = 0x00
	cmdSampleMode = 's'
	cmdTransmit   = 0x03
	cmdCarrier    = 0x06
	cmdByteCount  = 0x24
	cmdNotify     = 0x25
	cmdHandshake  = 0x26

	respByteCount = 't'
	respComplete  = 'C'
	respFailed    = 'F'

	sampleModeVersion = "S01"
	endOfSignal       = 0xFFFF
	maxTicks          = endOfSignal - 1
	// chunkSize is the toy's transmit buffer, announced by every handshake.
	chunkSize = 62

	baudRate      = 115200
	readTimeout   = 100 * time.Millisecond
	replyTimeout  = time.Second
	resetRepeats  = 5
	txQueueLength = 256
)

var (
	ErrNotOpen   = errors.New("irtoy: not open")
	ErrProtocol  = errors.New("irtoy: unexpected reply")
	ErrTxFailed  = errors.New("irtoy: transmit failed")
	ErrTxTimeout = errors.New("irtoy: no reply from device")
)

// SerialPort is the part of serial.Port the driver uses.
type SerialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens the serial port at path.
type PortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultPortFactory opens a real serial port.
func DefaultPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// TicksToMicros converts toy sample ticks to microseconds.
func TicksToMicros(ticks uint16) uint32 {
	return uint32(ticks) * 64 / 3
}

// MicrosToTicks converts microseconds to the nearest tick count the toy can
// send.
func MicrosToTicks(us uint32) uint16 {
	ticks := (uint64(us)*3 + 32) / 64
	return uint16(min(ticks, maxTicks))
}

// carrierPR2 is the PIC timer period for a carrier of freqHz.
func carrierPR2(freqHz uint32) byte {
	if freqHz == 0 {
		return 0
	}
	pr2 := 48_000_000/(16*uint64(freqHz)) - 1
	return byte(min(pr2, 0xFF))
}

type Option func(*Driver)

func WithPortFactory(f PortFactory) Option {
	return func(d *Driver) {
		d.factory = f
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(d *Driver) {
		d.clock = c
	}
}

type Driver struct {
	clock   clockwork.Clock
	factory PortFactory
	port    SerialPort
	cb      driver.Callbacks
	stop    chan struct{}
	// replies carries bytes read while a transmit is in progress.
	replies chan byte
	path    string
	tx      []uint32
	wg      sync.WaitGroup
	txFreq  uint32
	mu      syncutil.Mutex
	// transmitting routes incoming bytes to replies instead of the
	// receive callback.
	transmitting atomic.Bool
	paused       atomic.Bool
	lastActive   bool
	open         bool
}

func New(path string, opts ...Option) *Driver {
	d := &Driver{
		path:    path,
		factory: DefaultPortFactory,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Open(mode driver.Mode, cb driver.Callbacks) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return fmt.Errorf("irtoy: %s already open", d.path)
	}

	port, err := d.factory(d.path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := d.enterSampleMode(port); err != nil {
		_ = port.Close()
		return err
	}

	d.port = port
	d.cb = cb
	d.open = true
	d.tx = d.tx[:0]
	d.replies = make(chan byte, txQueueLength)
	d.stop = make(chan struct{})
	d.paused.Store(false)

	var received func(uint32)
	if mode.CanRecv() {
		received = cb.Received
	}
	d.wg.Add(1)
	go d.readLoop(port, d.stop, received)

	log.Info().Str("path", d.path).Msg("ir toy opened in sample mode")
	return nil
}

func (d *Driver) enterSampleMode(port SerialPort) error {
	reset := make([]byte, resetRepeats)
	for i := range reset {
		reset[i] = cmdReset
	}
	if _, err := port.Write(append(reset, cmdSampleMode)); err != nil {
		return fmt.Errorf("failed to enter sample mode: %w", err)
	}

	reply := make([]byte, 0, len(sampleModeVersion))
	buf := make([]byte, len(sampleModeVersion))
	deadline := d.clock.Now().Add(replyTimeout)
	for len(reply) < len(sampleModeVersion) {
		if d.clock.Now().After(deadline) {
			return fmt.Errorf("%w: sample mode", ErrTxTimeout)
		}
		n, err := port.Read(buf[:len(sampleModeVersion)-len(reply)])
		if err != nil {
			return fmt.Errorf("failed to read sample mode reply: %w", err)
		}
		reply = append(reply, buf[:n]...)
	}
	if string(reply) != sampleModeVersion {
		return fmt.Errorf("%w: sample mode reply %q", ErrProtocol, reply)
	}
	return nil
}

func (d *Driver) Close(driver.Mode) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.open = false
	port := d.port
	stop := d.stop
	d.port = nil
	d.mu.Unlock()

	close(stop)
	d.wg.Wait()
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", d.path, err)
	}
	return nil
}

// Output queues one mark or space and reports it finished straight away.
// The chain is sent to the toy when the send finishes.
func (d *Driver) Output(freqHz uint32, active bool, durationUs uint32) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.txFreq = freqHz
	switch {
	case len(d.tx) == 0 && !active:
	case len(d.tx) > 0 && active == d.lastActive:
		d.tx[len(d.tx)-1] += durationUs
	default:
		d.tx = append(d.tx, durationUs)
		d.lastActive = active
	}
	finished := d.cb.OutputFinished
	d.mu.Unlock()

	go finished()
	return nil
}

func (d *Driver) StatusNotify(state driver.State, _ any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return ErrNotOpen
	}

	switch state {
	case driver.StatePreSend:
		d.tx = d.tx[:0]
		go d.cb.OutputFinished()
	case driver.StateSendFinish:
		err := d.transmitLocked()
		d.tx = d.tx[:0]
		return err
	case driver.StateSendHwReset:
		d.tx = d.tx[:0]
	case driver.StateRecvHwInit:
		d.paused.Store(false)
	case driver.StateRecvHwDeinit:
		d.paused.Store(true)
	case driver.StatePreRecv, driver.StateRecvFinish, driver.StateIrqEnableTimeSet:
	}
	return nil
}

// encodeTx converts the queued chain to toy ticks, dropping a trailing
// space and appending the end marker.
func encodeTx(chain []uint32) []byte {
	if len(chain)%2 == 0 && len(chain) > 0 {
		chain = chain[:len(chain)-1]
	}
	out := make([]byte, 0, 2*len(chain)+2)
	for _, us := range chain {
		t := MicrosToTicks(us)
		out = append(out, byte(t>>8), byte(t))
	}
	return append(out, 0xFF, 0xFF)
}

func (d *Driver) transmitLocked() error {
	if len(d.tx) == 0 {
		return nil
	}
	data := encodeTx(d.tx)

	d.transmitting.Store(true)
	defer d.transmitting.Store(false)
	for drained := false; !drained; {
		select {
		case <-d.replies:
		default:
			drained = true
		}
	}

	if _, err := d.port.Write([]byte{cmdCarrier, carrierPR2(d.txFreq), 0x00}); err != nil {
		return fmt.Errorf("failed to set carrier: %w", err)
	}
	if _, err := d.port.Write([]byte{cmdHandshake, cmdNotify, cmdByteCount, cmdTransmit}); err != nil {
		return fmt.Errorf("failed to start transmit: %w", err)
	}

	for sent := 0; sent < len(data); {
		free, err := d.reply()
		if err != nil {
			return err
		}
		n := min(len(data)-sent, int(free))
		if free == 0 || free > chunkSize {
			n = min(len(data)-sent, chunkSize)
		}
		if _, err := d.port.Write(data[sent : sent+n]); err != nil {
			return fmt.Errorf("failed to write transmit data: %w", err)
		}
		sent += n
	}

	for {
		b, err := d.reply()
		if err != nil {
			return err
		}
		if b == respByteCount {
			break
		}
	}
	hi, err := d.reply()
	if err != nil {
		return err
	}
	lo, err := d.reply()
	if err != nil {
		return err
	}
	if count := int(hi)<<8 | int(lo); count != len(data) {
		log.Debug().Msgf("ir toy acknowledged %d of %d bytes", count, len(data))
	}

	status, err := d.reply()
	if err != nil {
		return err
	}
	switch status {
	case respComplete:
		return nil
	case respFailed:
		return ErrTxFailed
	default:
		return fmt.Errorf("%w: transmit status 0x%02x", ErrProtocol, status)
	}
}

func (d *Driver) reply() (byte, error) {
	select {
	case b := <-d.replies:
		return b, nil
	case <-d.clock.After(replyTimeout):
		return 0, ErrTxTimeout
	}
}

func (d *Driver) readLoop(port SerialPort, stop <-chan struct{}, received func(uint32)) {
	defer d.wg.Done()

	var (
		pending  byte
		havePart bool
	)
	buf := make([]byte, 64)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			log.Error().Err(err).Str("path", d.path).Msg("ir toy read failed")
			return
		}

		for _, b := range buf[:n] {
			if d.transmitting.Load() {
				select {
				case d.replies <- b:
				default:
					log.Warn().Msg("ir toy reply queue full")
				}
				havePart = false
				continue
			}
			if !havePart {
				pending = b
				havePart = true
				continue
			}
			havePart = false
			ticks := uint16(pending)<<8 | uint16(b)
			if ticks == endOfSignal || received == nil || d.paused.Load() {
				continue
			}
			received(TicksToMicros(ticks))
		}
	}
}
