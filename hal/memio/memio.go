// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memio implements GPIO over memory-mapped SoC registers,
// for base stations whose track drivers hang off a Linux SoC GPIO
// block (out-set / out-clear / direction registers, one bit per pin).
package memio // import "github.com/go-rail/dcc/hal/memio"

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/go-rail/dcc/hal"
)

// RegLayout locates the GPIO registers inside the mapped window.
// Offsets are in bytes; each register is a bank of 32-bit words, one
// bit per pin.
type RegLayout struct {
	Dir int64 // direction, 1 = output
	Set int64 // out-set, write 1 to drive high
	Clr int64 // out-clear, write 1 to drive low
}

// GPIO drives pins through a register window mapped from devmem.
type GPIO struct {
	h    *Handle
	regs RegLayout
	err  error
	xbuf [4]byte
}

// Open maps span bytes of devmem at offset base and binds the GPIO
// registers described by regs.
func Open(devmem string, base int64, span int, regs RegLayout) (*GPIO, error) {
	f, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("memio: could not open %q: %w", devmem, err)
	}
	defer f.Close()

	data, err := unix.Mmap(
		int(f.Fd()),
		base, span,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("memio: could not mmap %q: %w", devmem, err)
	}
	if data == nil || len(data) != span {
		return nil, fmt.Errorf("memio: invalid mmap'd data: %d", len(data))
	}

	return &GPIO{h: HandleFrom(data), regs: regs}, nil
}

// Close unmaps the register window.
func (g *GPIO) Close() error {
	return g.h.Close()
}

// Err returns the first register access error, if any. Set latches
// errors instead of returning them, as it runs on the waveform path.
func (g *GPIO) Err() error {
	return g.err
}

// ConfigureOutput drives pin low and marks it as an output.
func (g *GPIO) ConfigureOutput(pin hal.Pin) error {
	g.Set(pin, false)

	off := g.regs.Dir + 4*int64(pin/32)
	dir := g.readU32(off)
	g.writeU32(off, dir|1<<(pin%32))
	if g.err != nil {
		return fmt.Errorf("memio: could not configure pin %d: %w", pin, g.err)
	}
	return nil
}

// Set drives pin through the out-set or out-clear bank.
func (g *GPIO) Set(pin hal.Pin, high bool) {
	reg := g.regs.Clr
	if high {
		reg = g.regs.Set
	}
	g.writeU32(reg+4*int64(pin/32), 1<<(pin%32))
}

func (g *GPIO) readU32(off int64) uint32 {
	if g.err != nil {
		return 0
	}
	_, g.err = g.h.ReadAt(g.xbuf[:4], off)
	if g.err != nil {
		g.err = fmt.Errorf("memio: could not read register 0x%x: %w", off, g.err)
		return 0
	}
	return binary.LittleEndian.Uint32(g.xbuf[:4])
}

func (g *GPIO) writeU32(off int64, v uint32) {
	if g.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(g.xbuf[:4], v)
	_, g.err = g.h.WriteAt(g.xbuf[:4], off)
	if g.err != nil {
		g.err = fmt.Errorf("memio: could not write register 0x%x: %w", off, g.err)
	}
}

var _ hal.GPIO = (*GPIO)(nil)
