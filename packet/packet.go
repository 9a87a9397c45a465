// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package packet encodes DCC packets into their on-wire bit frames.
//
// A frame is a preamble of ones, then each payload byte (the last one
// being the XOR checksum of the others) preceded by a zero start or
// separator bit, then a one end bit. Between two back-to-back frames
// the end bit and the next preamble form the continuous run of ones
// required by S-9.2.
package packet // import "github.com/go-rail/dcc/packet"

import (
	"errors"
	"fmt"
)

const (
	// MaxBytes is the size of a packet bit buffer. It fits the
	// largest frame (a 5-byte payload plus checksum, 76 bits).
	MaxBytes = 10

	// MaxPayload is the maximum number of payload bytes, checksum
	// excluded.
	MaxPayload = 5

	preambleBits = 21
)

var (
	// ErrPayloadSize means the payload length is outside 1..5.
	ErrPayloadSize = errors.New("packet: invalid payload size")
)

// Packet is a DCC packet as transmitted on the track: a packed bit
// buffer together with the transmission state of the signal generator.
//
// While a Packet sits in a generator free list it is zeroed. Once
// loaded into a to-send queue, Buf and NumBits must not be mutated;
// Cur and Repeats are then owned by the interrupt handler.
type Packet struct {
	Buf     [MaxBytes]byte
	NumBits uint8 // total bits to transmit
	Cur     uint8 // transmission cursor, 0 <= Cur <= NumBits
	Repeats uint8 // extra transmissions after the first
}

// New encodes payload into a fresh packet.
func New(payload []byte, repeats int) (Packet, error) {
	var p Packet
	err := p.Encode(payload, repeats)
	return p, err
}

// Encode encodes payload, appends its XOR checksum and packs the
// on-wire frame into p. Encode overwrites any previous content of p,
// so pool slots can be reused in place.
func (p *Packet) Encode(payload []byte, repeats int) error {
	if len(payload) < 1 || len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadSize, len(payload))
	}

	var sum byte
	for _, v := range payload {
		sum ^= v
	}

	p.Zero()
	p.Repeats = uint8(repeats)

	w := bitWriter{buf: p.Buf[:]}
	for i := 0; i < preambleBits; i++ {
		w.put(1)
	}
	for _, v := range payload {
		w.put(0)
		w.byte(v)
	}
	w.put(0)
	w.byte(sum)
	w.put(1)

	p.NumBits = w.n
	return nil
}

// Bit reports the value of the i-th transmitted bit, MSB first within
// each buffer byte.
func (p *Packet) Bit(i int) bool {
	return p.Buf[i/8]&(0x80>>uint(i%8)) != 0
}

// Zero clears the packet to its free-list state.
func (p *Packet) Zero() {
	*p = Packet{}
}

// Payload decodes the payload bytes (checksum included) back out of
// the packed frame.
func Payload(p *Packet) ([]byte, error) {
	n := int(p.NumBits) - preambleBits - 1 // strip preamble and end bit
	if n <= 0 || n%9 != 0 {
		return nil, fmt.Errorf("packet: invalid frame length %d bits", p.NumBits)
	}
	data := make([]byte, n/9)
	for i := range data {
		off := preambleBits + 9*i
		if p.Bit(off) {
			return nil, fmt.Errorf("packet: missing separator at bit %d", off)
		}
		var v byte
		for j := 0; j < 8; j++ {
			v <<= 1
			if p.Bit(off + 1 + j) {
				v |= 1
			}
		}
		data[i] = v
	}
	return data, nil
}

type bitWriter struct {
	buf []byte
	n   uint8
}

func (w *bitWriter) put(v byte) {
	if v != 0 {
		w.buf[w.n/8] |= 0x80 >> uint(w.n%8)
	}
	w.n++
}

func (w *bitWriter) byte(v byte) {
	for i := 7; i >= 0; i-- {
		w.put(v >> uint(i) & 1)
	}
}
