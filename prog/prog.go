// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prog implements DCC decoder programming: the service-mode
// CV engine on the programming track (S-9.2.3, with ACK detection by
// current pulse) and the fire-and-forget operations-mode CV writer.
package prog // import "github.com/go-rail/dcc/prog"

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-rail/dcc/board"
	"github.com/go-rail/dcc/hal"
	"github.com/go-rail/dcc/signal"
)

const (
	// number of ADC samples taken for each ACK decision.
	sampleCount = 250
	// spacing between two ADC samples.
	sampleDelay = 2 * time.Millisecond
	// a decoder ACK raises the track current by ~60 mA; the
	// threshold converts that to raw counts of a 12-bit ADC.
	ackRef = 4096 * 60

	maxWriteAttempts = 5

	maxCV = 1024
)

var (
	// ErrNoAck means the decoder did not acknowledge a service-mode
	// operation. This is an expected outcome on an empty or
	// write-protected programming track, not a hardware fault.
	ErrNoAck = errors.New("prog: no acknowledgement from decoder")

	// ErrCV means the CV number is outside 1..1024.
	ErrCV = errors.New("prog: invalid CV number")

	// ErrBit means the bit position is outside 0..7.
	ErrBit = errors.New("prog: invalid bit position")
)

// Programmer runs service-mode CV operations on the programming
// track. It assumes exclusive use of its generator for the duration
// of each call.
type Programmer struct {
	gen *signal.Generator
	adc hal.ADC
	ch  hal.Channel
	msg *log.Logger

	threshold int
	sleep     func(time.Duration)
}

// Option configures a Programmer.
type Option func(*Programmer)

// WithLogger sets the diagnostics logger.
func WithLogger(msg *log.Logger) Option {
	return func(p *Programmer) { p.msg = msg }
}

// New creates a Programmer driving gen, detecting decoder ACKs on
// brd's current-sense channel.
func New(gen *signal.Generator, brd *board.Board, adc hal.ADC, opts ...Option) (*Programmer, error) {
	if brd.MaxMilliAmps <= 0 {
		return nil, fmt.Errorf("prog: invalid current rating %d mA for board %q", brd.MaxMilliAmps, brd.Name)
	}

	p := &Programmer{
		gen:       gen,
		adc:       adc,
		ch:        brd.ADC,
		threshold: ackRef / brd.MaxMilliAmps,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.msg == nil {
		p.msg = log.New(os.Stdout, "prog: ", 0)
	}
	return p, nil
}

// sample takes sampleCount raw readings, discards failed ones and
// returns the mean of the rest.
func (p *Programmer) sample() int {
	var (
		sum int
		n   int
	)
	for i := 0; i < sampleCount; i++ {
		v, err := p.adc.ReadRaw(p.ch)
		if err == nil && v > 0 {
			sum += v
			n++
		}
		p.sleep(sampleDelay)
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// ack drains the queue and reports whether the decoder pulled an
// acknowledgement current pulse.
func (p *Programmer) ack() bool {
	p.gen.WaitQueueEmpty()
	return p.sample() > p.threshold
}

// cvAddr returns the two CV address bytes of a service-mode
// instruction: the low two bits of the zero-based CV number's high
// byte, and its low byte.
func cvAddr(cv uint16) (hi, lo byte) {
	cv--
	return byte(cv>>8) & 0x03, byte(cv)
}

func verifyBitPacket(cv uint16, bit uint8) []byte {
	hi, lo := cvAddr(cv)
	return []byte{0x78 | hi, lo, 0xE8 | bit}
}

func verifyBytePacket(cv uint16, value uint8) []byte {
	hi, lo := cvAddr(cv)
	return []byte{0x74 | hi, lo, value}
}

func writeBytePacket(cv uint16, value uint8) []byte {
	hi, lo := cvAddr(cv)
	return []byte{0x7C | hi, lo, value}
}

func writeBitPacket(cv uint16, bit, value uint8) []byte {
	hi, lo := cvAddr(cv)
	return []byte{0x78 | hi, lo, 0xF0 | bit | value<<3}
}

func confirmBitPacket(cv uint16, bit, value uint8) []byte {
	hi, lo := cvAddr(cv)
	return []byte{0x74 | hi, lo, 0xB0 | bit | value<<3}
}

// ReadCV reads the value of a CV in service mode. Each bit is probed
// with a verify-bit instruction; the assembled byte is then confirmed
// with a verify-byte instruction. ErrNoAck means the confirmation
// failed.
func (p *Programmer) ReadCV(cv uint16) (uint8, error) {
	if cv < 1 || cv > maxCV {
		return 0, fmt.Errorf("%w: %d", ErrCV, cv)
	}

	p.msg.Printf("reading CV %d, samples: %d, ack value: %d", cv, sampleCount, p.threshold)

	var value uint8
	for bit := uint8(0); bit < 8; bit++ {
		p.load(signal.ResetPayload, 3)
		p.load(verifyBitPacket(cv, bit), 5)
		if p.ack() {
			p.msg.Printf("CV %d, bit [%d/7] ON", cv, bit)
			value |= 1 << bit
		} else {
			p.msg.Printf("CV %d, bit [%d/7] OFF", cv, bit)
		}
	}

	p.msg.Printf("CV %d, read value %d, verifying", cv, value)
	p.load(signal.ResetPayload, 3)
	p.load(verifyBytePacket(cv, value), 5)
	if !p.ack() {
		p.msg.Printf("CV %d could not be verified", cv)
		return 0, fmt.Errorf("%w: CV %d", ErrNoAck, cv)
	}
	return value, nil
}

// WriteCV writes a CV byte in service mode and verifies it back, with
// up to 5 attempts. ErrNoAck means no attempt verified.
func (p *Programmer) WriteCV(cv uint16, value uint8) error {
	if cv < 1 || cv > maxCV {
		return fmt.Errorf("%w: %d", ErrCV, cv)
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		p.msg.Printf("[%d/%d] writing CV %d as %d", attempt, maxWriteAttempts, cv, value)
		verified := p.writeVerify(
			writeBytePacket(cv, value),
			verifyBytePacket(cv, value),
		)
		// leave the decoder in a neutral state between attempts.
		p.load(signal.ResetPayload, 3)
		if verified {
			p.msg.Printf("CV %d write value %d verified", cv, value)
			return nil
		}
		p.msg.Printf("CV %d write value %d could not be verified", cv, value)
	}
	return fmt.Errorf("%w: CV %d", ErrNoAck, cv)
}

// WriteCVBit writes a single CV bit in service mode and verifies it
// back, with up to 5 attempts.
func (p *Programmer) WriteCVBit(cv uint16, bit uint8, value bool) error {
	if cv < 1 || cv > maxCV {
		return fmt.Errorf("%w: %d", ErrCV, cv)
	}
	if bit > 7 {
		return fmt.Errorf("%w: %d", ErrBit, bit)
	}

	var v uint8
	if value {
		v = 1
	}
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		p.msg.Printf("[%d/%d] writing CV %d bit %d as %d", attempt, maxWriteAttempts, cv, bit, v)
		verified := p.writeVerify(
			writeBitPacket(cv, bit, v),
			confirmBitPacket(cv, bit, v),
		)
		p.load(signal.ResetPayload, 3)
		if verified {
			p.msg.Printf("CV %d bit %d write verified", cv, bit)
			return nil
		}
		p.msg.Printf("CV %d bit %d write could not be verified", cv, bit)
	}
	return fmt.Errorf("%w: CV %d bit %d", ErrNoAck, cv, bit)
}

// writeVerify sends one write instruction and, if the decoder ACKs
// it, the matching verify instruction.
func (p *Programmer) writeVerify(write, verify []byte) bool {
	p.load(signal.ResetPayload, 1)
	p.load(write, 4)
	if !p.ack() {
		return false
	}
	p.load(signal.ResetPayload, 3)
	p.load(verify, 5)
	return p.ack()
}

func (p *Programmer) load(payload []byte, repeats int) {
	err := p.gen.Load(payload, repeats)
	if err != nil {
		// payloads are fixed-size and valid by construction.
		p.msg.Printf("could not queue packet: %+v", err)
	}
}
