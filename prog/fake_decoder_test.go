// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prog

import (
	"sync"

	"github.com/go-rail/dcc/hal"
	"github.com/go-rail/dcc/hal/sim"
)

// fakeDecoder emulates a decoder sitting on the programming track.
// The test pump feeds it the duration of every full-cycle alarm; it
// reconstructs the DCC frames and, when a service-mode instruction
// matches its CV store, pulls an acknowledgement current by raising
// the scripted ADC reading.
type fakeDecoder struct {
	mu  sync.Mutex
	cvs map[uint16]uint8

	adc  *sim.ADC
	ch   hal.Channel
	base int
	ack  int

	// frame reassembly state.
	ones    int
	inFrame bool
	cur     byte
	nbit    int
	frame   []byte

	frames [][]byte // every decoded frame, checksum included
}

func newFakeDecoder(adc *sim.ADC, ch hal.Channel, base, ack int) *fakeDecoder {
	adc.Set(ch, base)
	return &fakeDecoder{
		cvs:  make(map[uint16]uint8),
		adc:  adc,
		ch:   ch,
		base: base,
		ack:  ack,
	}
}

// feed consumes the duration of one transmitted bit.
func (d *fakeDecoder) feed(us uint32) {
	bit := byte(0)
	if us == 116 {
		bit = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inFrame {
		if bit == 1 {
			d.ones++
			return
		}
		if d.ones >= 14 {
			d.inFrame = true
			d.frame = d.frame[:0]
			d.cur = 0
			d.nbit = 0
		}
		d.ones = 0
		return
	}

	if d.nbit >= 0 {
		d.cur = d.cur<<1 | bit
		d.nbit++
		if d.nbit == 8 {
			d.frame = append(d.frame, d.cur)
			d.nbit = -1 // next bit is a separator or the end bit
		}
		return
	}

	// separator (0) starts another byte, end bit (1) closes the frame.
	if bit == 0 {
		d.cur = 0
		d.nbit = 0
		return
	}
	d.inFrame = false
	d.ones = 1
	frame := append([]byte(nil), d.frame...)
	d.frames = append(d.frames, frame)
	d.handle(frame)
}

// handle reacts to a complete frame the way a service-mode decoder
// would.
func (d *fakeDecoder) handle(frame []byte) {
	var sum byte
	for _, v := range frame {
		sum ^= v
	}
	if sum != 0 || len(frame) < 3 {
		return
	}
	data := frame[:len(frame)-1]

	if len(data) == 2 {
		if data[0] == 0x00 && data[1] == 0x00 {
			// decoder reset: quiescent current.
			d.adc.Set(d.ch, d.base)
		}
		// idle packets leave the ACK state alone.
		return
	}
	if len(data) != 3 || data[0]&0xF0 != 0x70 {
		return
	}

	var (
		cv  = uint16(data[0]&0x03)<<8 + uint16(data[1]) + 1
		arg = data[2]
	)
	switch {
	case data[0]&0xFC == 0x74 && arg&0xF0 == 0xB0:
		// bit verify, as emitted after a bit write.
		d.ackIf(d.cvs[cv]>>(arg&0x07)&1 == arg>>3&1)
	case data[0]&0xFC == 0x74:
		d.ackIf(d.cvs[cv] == arg)
	case data[0]&0xFC == 0x7C:
		d.cvs[cv] = arg
		d.ackIf(true)
	case data[0]&0xFC == 0x78 && arg&0xF0 == 0xF0:
		var (
			bit = arg & 0x07
			val = arg >> 3 & 1
		)
		d.cvs[cv] = d.cvs[cv]&^(1<<bit) | val<<bit
		d.ackIf(true)
	case data[0]&0xFC == 0x78 && arg&0xF8 == 0xE8:
		// bit verify against 1, used by the CV read loop.
		d.ackIf(d.cvs[cv]>>(arg&0x07)&1 == 1)
	}
}

func (d *fakeDecoder) ackIf(ok bool) {
	if ok {
		d.adc.Set(d.ch, d.ack)
	} else {
		d.adc.Set(d.ch, d.base)
	}
}

func (d *fakeDecoder) set(cv uint16, v uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cvs[cv] = v
}

func (d *fakeDecoder) get(cv uint16) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cvs[cv]
}

func (d *fakeDecoder) allFrames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.frames))
	for i, f := range d.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}
