// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memio

import (
	"encoding/binary"
	"errors"
	"os"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
	t.Run("offsets", func(t *testing.T) {
		h := HandleFrom([]byte{0, 1, 2, 3})

		if got, want := h.Len(), 4; got != want {
			t.Fatalf("invalid len: got=%d, want=%d", got, want)
		}
		if got, want := h.At(1), byte(1); got != want {
			t.Fatalf("invalid value: got=%d, want=%d", got, want)
		}

		_, err := h.WriteAt(nil, -1)
		if got, want := err.Error(), "memio: invalid WriteAt offset -1"; got != want {
			t.Fatalf("invalid error: %+v", err)
		}

		_, err = h.ReadAt(nil, -1)
		if got, want := err.Error(), "memio: invalid ReadAt offset -1"; got != want {
			t.Fatalf("invalid error: %+v", err)
		}
	})
}

func TestGPIO(t *testing.T) {
	var (
		regs = RegLayout{Dir: 0x00, Set: 0x10, Clr: 0x20}
		mem  = make([]byte, 0x30)
		gpio = &GPIO{h: HandleFrom(mem), regs: regs}
	)

	err := gpio.ConfigureOutput(17)
	if err != nil {
		t.Fatalf("could not configure pin: %+v", err)
	}
	if got, want := binary.LittleEndian.Uint32(mem[0x20:]), uint32(1<<17); got != want {
		t.Fatalf("pin not driven low: got=0x%x, want=0x%x", got, want)
	}
	if got, want := binary.LittleEndian.Uint32(mem[0x00:]), uint32(1<<17); got != want {
		t.Fatalf("pin not set as output: got=0x%x, want=0x%x", got, want)
	}

	err = gpio.ConfigureOutput(16)
	if err != nil {
		t.Fatalf("could not configure pin: %+v", err)
	}
	if got, want := binary.LittleEndian.Uint32(mem[0x00:]), uint32(1<<17|1<<16); got != want {
		t.Fatalf("direction bank clobbered: got=0x%x, want=0x%x", got, want)
	}

	gpio.Set(17, true)
	if got, want := binary.LittleEndian.Uint32(mem[0x10:]), uint32(1<<17); got != want {
		t.Fatalf("pin not set high: got=0x%x, want=0x%x", got, want)
	}
	gpio.Set(17, false)
	if got, want := binary.LittleEndian.Uint32(mem[0x20:]), uint32(1<<17); got != want {
		t.Fatalf("pin not set low: got=0x%x, want=0x%x", got, want)
	}

	// pins above 31 land in the next bank word.
	err = gpio.ConfigureOutput(33)
	if err != nil {
		t.Fatalf("could not configure pin: %+v", err)
	}
	if got, want := binary.LittleEndian.Uint32(mem[0x04:]), uint32(1<<1); got != want {
		t.Fatalf("pin not set as output in bank 1: got=0x%x, want=0x%x", got, want)
	}

	if gpio.Err() != nil {
		t.Fatalf("unexpected latched error: %+v", gpio.Err())
	}
}
