// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package signal drives the DCC track waveform.
//
// A Generator owns a fixed pool of packets and a pair of hardware
// timers. The full-cycle timer interrupt picks the next bit to send,
// programs both timers with the bit's durations and raises the track
// direction pin; the pulse timer interrupt drops it at the bit
// midpoint. Foreground code feeds packets through a to-send FIFO and
// gets exhausted slots back through a free list; when the FIFO runs
// dry the generator transmits its idle packet to keep the track alive.
package signal // import "github.com/go-rail/dcc/signal"

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-rail/dcc/hal"
	"github.com/go-rail/dcc/packet"
)

// DCC bit durations, in µs (S-9.1).
const (
	zeroBitTotal = 196
	zeroBitPulse = 98
	oneBitTotal  = 116
	oneBitPulse  = 58
)

var (
	// IdlePayload is the canonical DCC idle packet payload.
	IdlePayload = []byte{0xFF, 0x00}
	// ResetPayload is the canonical DCC digital decoder reset payload.
	ResetPayload = []byte{0x00, 0x00}
)

var (
	errNotConfigured = errors.New("signal: generator not fully configured")
	errStarted       = errors.New("signal: generator already started")
)

// Generator continuously emits a DCC waveform on one track.
//
// A Generator is driven by exactly one foreground caller; higher
// layers must serialise their own access.
type Generator struct {
	name string
	pin  hal.Pin

	msg  *log.Logger
	gpio hal.GPIO
	tmr  hal.TimerProvider

	fullID  int
	pulseID int
	full    hal.Timer
	pulse   hal.Timer

	pool   []packet.Packet
	free   *ring
	tosend *ring

	// interrupt-context state. active points into pool or at idle;
	// the foreground only touches it across Stop's quiescence wait.
	active    *packet.Packet
	activeIdx uint32
	idle      packet.Packet

	// busy is raised while a pool packet is being transmitted, so
	// WaitQueueEmpty covers the in-flight packet and its repeats.
	busy atomic.Bool

	started bool
	sleep   func(time.Duration)
}

// Option configures a Generator.
type Option func(*Generator)

// WithGPIO sets the GPIO driver for the direction pin.
func WithGPIO(gpio hal.GPIO) Option {
	return func(g *Generator) { g.gpio = gpio }
}

// WithTimers sets the timer provider and the hardware timer indices
// for the full-cycle and pulse timers.
func WithTimers(tmr hal.TimerProvider, fullID, pulseID int) Option {
	return func(g *Generator) {
		g.tmr = tmr
		g.fullID = fullID
		g.pulseID = pulseID
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(msg *log.Logger) Option {
	return func(g *Generator) { g.msg = msg }
}

// New creates a signal generator named name, driving the direction
// pin, with a preallocated pool of max packets. The direction pin is
// configured as an output and driven low; no waveform is generated
// until Start.
func New(name string, pin hal.Pin, max int, opts ...Option) (*Generator, error) {
	if max < 1 {
		return nil, fmt.Errorf("signal: invalid pool size %d", max)
	}

	g := &Generator{
		name:  name,
		pin:   pin,
		pool:  make([]packet.Packet, max),
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.msg == nil {
		g.msg = log.New(os.Stdout, fmt.Sprintf("signal: [%s] ", name), 0)
	}
	if g.gpio == nil || g.tmr == nil {
		return nil, errNotConfigured
	}

	g.free = newRing(max)
	g.tosend = newRing(max)
	for i := range g.pool {
		g.free.push(uint32(i))
	}

	err := g.idle.Encode(IdlePayload, 0)
	if err != nil {
		return nil, fmt.Errorf("signal: could not encode idle packet: %w", err)
	}

	err = g.gpio.ConfigureOutput(pin)
	if err != nil {
		return nil, fmt.Errorf("signal: could not configure pin %d: %w", pin, err)
	}
	g.gpio.Set(pin, false)

	return g, nil
}

// Name returns the generator name.
func (g *Generator) Name() string { return g.name }

// Start seeds the queue with the S-9.2.4 §A power-up sequence
// (a reset packet with 20 repeats, then an idle packet with 10
// repeats, to force decoders out of any residual service mode) and
// arms both timers.
func (g *Generator) Start() error {
	if g.started {
		return errStarted
	}

	g.msg.Printf("adding reset packet to packet queue")
	err := g.Load(ResetPayload, 20)
	if err != nil {
		return fmt.Errorf("signal: could not queue reset packets: %w", err)
	}
	g.msg.Printf("adding idle packet to packet queue")
	err = g.Load(IdlePayload, 10)
	if err != nil {
		return fmt.Errorf("signal: could not queue idle packets: %w", err)
	}

	g.msg.Printf("configuring timer(%d) for full wave", g.fullID)
	g.full, err = g.tmr.Timer(g.fullID)
	if err != nil {
		return fmt.Errorf("signal: could not create full-cycle timer: %w", err)
	}
	g.msg.Printf("configuring timer(%d) for half wave", g.pulseID)
	g.pulse, err = g.tmr.Timer(g.pulseID)
	if err != nil {
		_ = g.full.Close()
		g.full = nil
		return fmt.Errorf("signal: could not create pulse timer: %w", err)
	}

	g.full.Attach(g.onFullCycle)
	g.full.SetAlarm(oneBitTotal, true)
	g.full.Reset()

	g.pulse.Attach(g.onPulse)
	g.pulse.SetAlarm(oneBitPulse, false)
	g.pulse.Reset()

	g.full.Enable()
	g.pulse.Enable()

	g.started = true
	return nil
}

// Stop tears down both timers, waits for in-flight interrupts to
// complete and drains the to-send queue back into the free list.
// The packet pool is retained; the generator can be started again.
func (g *Generator) Stop() error {
	if !g.started {
		return nil
	}

	g.msg.Printf("shutting down timer(%d) (full wave)", g.fullID)
	g.full.Disable()
	err := g.full.Close()
	if err != nil {
		return fmt.Errorf("signal: could not close full-cycle timer: %w", err)
	}

	g.msg.Printf("shutting down timer(%d) (half wave)", g.pulseID)
	g.pulse.Disable()
	err = g.pulse.Close()
	if err != nil {
		return fmt.Errorf("signal: could not close pulse timer: %w", err)
	}

	// let any in-flight timer interrupt complete before touching
	// the timers and queues from the foreground.
	g.sleep(250 * time.Millisecond)
	g.full = nil
	g.pulse = nil

	if g.active != nil && g.active != &g.idle {
		idx := g.activeIdx
		g.pool[idx].Zero()
		g.free.push(idx)
	}
	g.active = nil
	g.busy.Store(false)

	for {
		idx, ok := g.tosend.pop()
		if !ok {
			break
		}
		g.pool[idx].Zero()
		g.free.push(idx)
	}

	g.gpio.Set(g.pin, false)
	g.started = false
	return nil
}

// Load obtains a free packet slot, encodes payload into it and
// appends it to the to-send queue. When the free list is exhausted
// Load blocks until the interrupt handler returns a slot.
func (g *Generator) Load(payload []byte, repeats int) error {
	if len(payload) < 1 || len(payload) > packet.MaxPayload {
		return fmt.Errorf("signal: [%s] %w: %d bytes", g.name, packet.ErrPayloadSize, len(payload))
	}

	var idx uint32
	for {
		var ok bool
		idx, ok = g.free.pop()
		if ok {
			break
		}
		g.sleep(2 * time.Millisecond)
	}

	err := g.pool[idx].Encode(payload, repeats)
	if err != nil {
		g.pool[idx].Zero()
		g.free.push(idx)
		return fmt.Errorf("signal: [%s] could not encode packet: %w", g.name, err)
	}

	g.tosend.push(idx)
	return nil
}

// QueueEmpty reports whether the to-send queue is empty.
func (g *Generator) QueueEmpty() bool {
	return g.tosend.empty()
}

// WaitQueueEmpty blocks until every queued packet, including the one
// in flight and all its repeats, has been transmitted.
func (g *Generator) WaitQueueEmpty() {
	for !g.tosend.empty() || g.busy.Load() {
		if n := g.tosend.len(); n > 0 {
			g.msg.Printf("waiting for %d packets to send...", n)
		}
		g.sleep(10 * time.Millisecond)
	}
}

// onFullCycle runs once per transmitted bit, in interrupt context.
func (g *Generator) onFullCycle() {
	// retire the active packet once all bits and repeats are out.
	if g.active != nil && g.active.Cur == g.active.NumBits {
		if g.active.Repeats > 0 {
			g.active.Repeats--
			g.active.Cur = 0
		} else {
			if g.active != &g.idle {
				g.pool[g.activeIdx].Zero()
				g.free.push(g.activeIdx)
				g.busy.Store(false)
			}
			g.active = nil
		}
	}

	// pull the next packet, falling back to the idle packet.
	if g.active == nil {
		if idx, ok := g.tosend.pop(); ok {
			g.active = &g.pool[idx]
			g.activeIdx = idx
			g.busy.Store(true)
		} else {
			g.active = &g.idle
			g.active.Cur = 0
		}
	}

	bit := g.active.Bit(int(g.active.Cur))
	g.active.Cur++

	if bit {
		g.pulse.SetAlarm(oneBitPulse, false)
		g.full.SetAlarm(oneBitTotal, true)
	} else {
		g.pulse.SetAlarm(zeroBitPulse, false)
		g.full.SetAlarm(zeroBitTotal, true)
	}
	g.pulse.Reset()
	g.pulse.Enable()
	g.gpio.Set(g.pin, true)
}

// onPulse runs at the bit midpoint, in interrupt context.
func (g *Generator) onPulse() {
	g.gpio.Set(g.pin, false)
}
