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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/driver"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/nec"
	"github.com/ZaparooProject/zaparoo-ir/pkg/ir/ringbuf"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RecvPollInterval is how often the receive task checks devices that are
// capturing a frame.
const RecvPollInterval = 50 * time.Millisecond

type RecvState int32

const (
	RecvIdle RecvState = iota
	RecvReceiving
	RecvFinished
	RecvParsing
	// RecvOverflow means the ring filled mid frame. The frame is cut short
	// and decoded from what was buffered.
	RecvOverflow
)

func (s RecvState) String() string {
	switch s {
	case RecvIdle:
		return "idle"
	case RecvReceiving:
		return "receiving"
	case RecvFinished:
		return "finished"
	case RecvParsing:
		return "parsing"
	case RecvOverflow:
		return "overflow"
	default:
		return fmt.Sprintf("recv_state(%d)", int32(s))
	}
}

// recvSession is the receive side of one Open. It is replaced on every
// reopen so a stale driver callback can never touch a new ring.
type recvSession struct {
	dev   *Device
	tol   *nec.Tolerance
	ring  *ringbuf.Ring
	queue chan Frame
	// scratch is owned by the receive task.
	scratch     []uint32
	overflowLog rate.Sometimes
	dropLog     rate.Sometimes
	cfg         Config
	// held is the last frame delivered by the incremental decoder; repeats
	// that follow it are delivered as copies with a rising RepeatCount.
	held     nec.Frame
	state    atomic.Int32
	lastTick atomic.Uint32
	// stale counts words a late sample left in the ring after it was
	// emptied. The producer sets it when a frame starts and the receive
	// task drops them before reading.
	stale    atomic.Uint32
	active   atomic.Bool
	haveHeld bool
}

func (r *recvSession) State() RecvState {
	return RecvState(r.state.Load())
}

func (r *recvSession) setState(st RecvState) {
	r.state.Store(int32(st))
}

func (r *recvSession) cas(from, to RecvState) bool {
	return r.state.CompareAndSwap(int32(from), int32(to))
}

// syncMode reports whether NEC frames are decoded while still arriving.
func (r *recvSession) syncMode() bool {
	return r.cfg.Protocol == ProtocolNEC && r.dev.cb.Load() != nil
}

func (r *recvSession) timeoutMs() uint32 {
	return uint32(r.cfg.RecvTimeout / time.Millisecond)
}

// drain empties the frame queue and returns how many frames were dropped.
func (r *recvSession) drain() int {
	n := 0
	for {
		select {
		case f := <-r.queue:
			releaseFrame(f)
			n++
		default:
			return n
		}
	}
}

// abort discards a partial capture. Receive task only.
func (r *recvSession) abort() {
	r.ring.Reset()
	r.haveHeld = false
	r.setState(RecvIdle)
}

// onReceived is the driver sample callback. It never blocks.
func (d *Device) onReceived(durationUs uint32) {
	sess := d.recv.Load()
	if sess == nil || !sess.active.Load() {
		return
	}

	switch sess.State() {
	case RecvIdle:
		sess.lastTick.Store(d.sub.tick())
		if !sess.cas(RecvIdle, RecvReceiving) {
			return
		}
		sess.stale.Store(uint32(sess.ring.Len()))
		sess.ring.WriteWord(durationUs)
		if err := d.drv.StatusNotify(driver.StatePreRecv, nil); err != nil {
			log.Warn().Err(err).Str("device", d.name).Msg("pre recv notify failed")
		}
		select {
		case d.sub.notify <- sess:
		default:
			log.Error().Str("device", d.name).Msg("receive notify queue full")
		}
	case RecvReceiving:
		sess.lastTick.Store(d.sub.tick())
		if sess.ring.IsFull() {
			if sess.cas(RecvReceiving, RecvOverflow) {
				sess.overflowLog.Do(func() {
					log.Warn().Str("device", d.name).Msg("receive buffer overflow, frame truncated")
				})
			}
			return
		}
		sess.ring.WriteWord(durationUs)
	case RecvFinished, RecvParsing, RecvOverflow:
		// Samples arriving between frames are dropped.
	}
}

// runRecvTask services every receiving session until ctx is cancelled.
func (s *Subsystem) runRecvTask(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	pending := make(map[*recvSession]struct{})
	inhibited := false
	setInhibit := func(on bool) {
		if on == inhibited {
			return
		}
		var err error
		if on {
			err = s.inhibitor.Acquire()
		} else {
			err = s.inhibitor.Release()
		}
		if err != nil {
			log.Warn().Err(err).Bool("acquire", on).Msg("sleep inhibitor failed")
		}
		inhibited = on
	}

	defer func() {
		for drained := false; !drained; {
			select {
			case sess := <-s.notify:
				pending[sess] = struct{}{}
			default:
				drained = true
			}
		}
		for sess := range pending {
			sess.abort()
		}
		setInhibit(false)
	}()

	for {
		if len(pending) == 0 {
			setInhibit(false)
			select {
			case <-ctx.Done():
				return
			case sess := <-s.notify:
				pending[sess] = struct{}{}
			}
		}
		setInhibit(true)

		for sess := range pending {
			if s.serviceSession(sess) {
				delete(pending, sess)
			}
		}
		if len(pending) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case sess := <-s.notify:
			pending[sess] = struct{}{}
		case <-s.clock.After(RecvPollInterval):
		}
	}
}

// serviceSession advances one session and reports whether its frame is
// complete.
func (s *Subsystem) serviceSession(sess *recvSession) bool {
	if !sess.active.Load() {
		sess.abort()
		return true
	}

	if n := sess.stale.Swap(0); n > 0 {
		sess.ring.Discard(int(n))
		log.Debug().Uint32("words", n).Str("device", sess.dev.name).Msg("dropped samples from previous capture")
	}

	switch sess.State() {
	case RecvIdle:
		return true
	case RecvReceiving:
		if sess.syncMode() {
			n := sess.ring.Peek(sess.scratch[:sess.ring.Cap()])
			sess.ring.Discard(sess.syncDecode(sess.scratch[:n]))
		}
		elapsed := s.tick() - sess.lastTick.Load()
		if elapsed <= sess.timeoutMs() || !sess.cas(RecvReceiving, RecvFinished) {
			return false
		}
	case RecvOverflow:
		log.Debug().Str("device", sess.dev.name).Msg("decoding truncated frame")
		sess.setState(RecvFinished)
	case RecvFinished, RecvParsing:
	}

	sess.finishFrame()
	return true
}

// finishFrame decodes the buffered capture and re-arms the receiver.
func (r *recvSession) finishFrame() {
	r.setState(RecvParsing)

	n := r.ring.Read(r.scratch[:r.ring.Cap()])
	// The receiver never reports the space after the last mark, so the
	// timeout stands in for it.
	data := append(r.scratch[:n], uint32(r.cfg.RecvTimeout/time.Microsecond))

	switch {
	case r.syncMode():
		r.syncDecode(data)
	case r.cfg.Protocol == ProtocolNEC:
		r.decodeQueued(data)
	case len(data) >= minTimecodeLength:
		r.deliver(newTimecode(data))
	default:
		log.Debug().Int("words", len(data)).Str("device", r.dev.name).Msg("dropping short capture")
	}

	r.ring.Reset()
	r.haveHeld = false
	if err := r.dev.drv.StatusNotify(driver.StateRecvFinish, nil); err != nil {
		log.Warn().Err(err).Str("device", r.dev.name).Msg("recv finish notify failed")
	}
	r.setState(RecvIdle)
}

// decodeQueued decodes every complete frame in data. Repeat blocks are
// folded into the RepeatCount of the frame they follow.
func (r *recvSession) decodeQueued(data []uint32) {
	for len(data) >= nec.MinLength {
		head, ok := nec.FrameHead(data, r.tol)
		if !ok {
			return
		}
		data = data[head:]
		if len(data) < nec.MinLength {
			return
		}

		n, f := nec.DecodeSingle(data, r.tol, r.cfg.NEC.IsMSB)
		if n < nec.MinLength {
			log.Debug().
				Str("device", r.dev.name).
				Int("at", n).
				Err(ErrDecode).
				Msg("malformed nec frame")
			data = data[2:]
			continue
		}
		r.deliver(NECFrame{Frame: f})
		data = data[n:]
	}
}

// syncDecode consumes what it can from data and returns the number of words
// used. Each frame and each repeat is delivered as soon as it is complete.
func (r *recvSession) syncDecode(data []uint32) int {
	consumed := 0
	for {
		rest := data[consumed:]

		if r.haveHeld {
			n, count := nec.DecodeRepeat(rest, r.tol)
			if count == 0 {
				if len(rest) < nec.RepeatLength {
					return consumed
				}
				r.haveHeld = false
				continue
			}
			for range count {
				r.held.RepeatCount++
				r.deliver(NECFrame{Frame: r.held})
			}
			consumed += n
			continue
		}

		head, ok := nec.FrameHead(rest, r.tol)
		if !ok {
			// The last word may be the mark of a leader still arriving.
			if len(rest) > 1 {
				consumed += len(rest) - 1
			}
			return consumed
		}
		consumed += head
		rest = rest[head:]
		if len(rest) < nec.MinLength {
			return consumed
		}

		n, f := nec.DecodeSingle(rest[:nec.MinLength], r.tol, r.cfg.NEC.IsMSB)
		if n < nec.MinLength {
			log.Debug().
				Str("device", r.dev.name).
				Int("at", n).
				Err(ErrDecode).
				Msg("malformed nec frame")
			consumed += 2
			continue
		}
		consumed += nec.MinLength
		r.held = f
		r.haveHeld = true
		r.deliver(NECFrame{Frame: f})
	}
}

func (r *recvSession) deliver(f Frame) {
	if cb := r.dev.cb.Load(); cb != nil {
		(*cb)(r.dev, f)
		return
	}
	select {
	case r.queue <- f:
	default:
		r.dropLog.Do(func() {
			log.Warn().Str("device", r.dev.name).Msg("receive queue full, dropping frame")
		})
		releaseFrame(f)
	}
}

// Recv returns the next decoded frame. A timeout of zero or less polls
// without waiting. TimecodeFrames should be handed back with RecvRelease.
func (d *Device) Recv(ctx context.Context, timeout time.Duration) (Frame, error) {
	sess, err := d.session()
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		select {
		case f := <-sess.queue:
			return f, nil
		default:
			return nil, fmt.Errorf("%w: no frame on %s", ErrTimeout, d.name)
		}
	}

	select {
	case f := <-sess.queue:
		return f, nil
	case <-d.sub.clock.After(timeout):
		return nil, fmt.Errorf("%w: no frame on %s", ErrTimeout, d.name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecvRelease returns a received frame's storage for reuse. The frame must
// not be used afterwards.
func (d *Device) RecvRelease(f Frame) {
	if f != nil {
		releaseFrame(f)
	}
}
