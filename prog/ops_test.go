// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prog

import (
	"errors"
	"io"
	"log"
	"reflect"
	"testing"

	"github.com/go-rail/dcc/hal/sim"
	"github.com/go-rail/dcc/signal"
)

type opsRig struct {
	gen *signal.Generator
	mon *fakeDecoder
}

// newOpsRig builds an OPS generator on simulated drivers with a wire
// monitor on the full-cycle timer.
func newOpsRig(t *testing.T) (*OpsWriter, *opsRig) {
	t.Helper()
	var (
		tmr  = sim.NewTimers()
		gpio = sim.NewGPIO()
		adc  = sim.NewADC()
	)
	gen, err := signal.New("OPS", 17, 64,
		signal.WithGPIO(gpio),
		signal.WithTimers(tmr, 0, 1),
		signal.WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("could not create generator: %+v", err)
	}
	err = gen.Start()
	if err != nil {
		t.Fatalf("could not start generator: %+v", err)
	}

	var (
		mon  = newFakeDecoder(adc, 0, 0, 0)
		full = tmr.Get(0)
		stop = make(chan struct{})
	)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				if full.Fire() {
					mon.feed(full.Alarm())
				}
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		_ = gen.Stop()
	})

	w := NewOpsWriter(gen, WithOpsLogger(log.New(io.Discard, "", 0)))
	return w, &opsRig{gen: gen, mon: mon}
}

func TestOpsWriteCVLongAddress(t *testing.T) {
	w, rig := newOpsRig(t)

	err := w.WriteCV(3000, 8, 8)
	if err != nil {
		t.Fatalf("could not write CV: %+v", err)
	}
	rig.gen.WaitQueueEmpty()

	want := []byte{0xCB, 0xB8, 0xEC, 0x07, 0x08, 0x90}
	n := 0
	for _, frame := range rig.mon.allFrames() {
		if reflect.DeepEqual(frame, want) {
			n++
		}
	}
	if got, want := n, 5; got != want {
		t.Fatalf("invalid transmission count: got=%d, want=%d", got, want)
	}
}

func TestOpsWriteCVShortAddress(t *testing.T) {
	w, rig := newOpsRig(t)

	err := w.WriteCV(3, 8, 8)
	if err != nil {
		t.Fatalf("could not write CV: %+v", err)
	}
	rig.gen.WaitQueueEmpty()

	want := []byte{0x03, 0xEC, 0x07, 0x08, 0x03 ^ 0xEC ^ 0x07 ^ 0x08}
	found := false
	for _, frame := range rig.mon.allFrames() {
		if reflect.DeepEqual(frame, want) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("short-address write packet not transmitted")
	}
}

func TestOpsWriteCVBit(t *testing.T) {
	w, rig := newOpsRig(t)

	err := w.WriteCVBit(29, 29, 2, true)
	if err != nil {
		t.Fatalf("could not write CV bit: %+v", err)
	}
	rig.gen.WaitQueueEmpty()

	want := []byte{0x1D, 0xE8, 0x1C, 0xFA, 0x1D ^ 0xE8 ^ 0x1C ^ 0xFA}
	found := false
	for _, frame := range rig.mon.allFrames() {
		if reflect.DeepEqual(frame, want) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("bit write packet not transmitted")
	}
}

func TestOpsAddressEncoding(t *testing.T) {
	for _, tc := range []struct {
		name string
		loco uint16
		want []byte
	}{
		{"short-min", 1, []byte{0x01, 0xEC}},
		{"short-max", 127, []byte{0x7F, 0xEC}},
		{"long-min", 128, []byte{0xC0, 0x80, 0xEC}},
		{"long-3000", 3000, []byte{0xCB, 0xB8, 0xEC}},
		{"long-max", 10239, []byte{0xE7, 0xFF, 0xEC}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := opsPayload(tc.loco, 0xEC)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid payload:\ngot= %#v\nwant=%#v", got, tc.want)
			}
		})
	}
}

func TestOpsErrors(t *testing.T) {
	w, _ := newOpsRig(t)

	err := w.WriteCV(0, 8, 8)
	if !errors.Is(err, ErrLoco) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrLoco)
	}
	err = w.WriteCV(10240, 8, 8)
	if !errors.Is(err, ErrLoco) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrLoco)
	}
	err = w.WriteCV(3, 0, 8)
	if !errors.Is(err, ErrCV) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrCV)
	}
	err = w.WriteCVBit(3, 1025, 0, true)
	if !errors.Is(err, ErrCV) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrCV)
	}
	err = w.WriteCVBit(3, 29, 8, true)
	if !errors.Is(err, ErrBit) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrBit)
	}
}
