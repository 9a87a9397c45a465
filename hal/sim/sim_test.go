// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"errors"
	"reflect"
	"testing"
)

func TestTimers(t *testing.T) {
	ts := NewTimers()

	tm, err := ts.Timer(0)
	if err != nil {
		t.Fatalf("could not create timer: %+v", err)
	}
	_, err = ts.Timer(0)
	if err == nil {
		t.Fatalf("expected an error for a timer already in use")
	}

	err = tm.Close()
	if err != nil {
		t.Fatalf("could not close timer: %+v", err)
	}
	_, err = ts.Timer(0)
	if err != nil {
		t.Fatalf("could not reuse closed timer: %+v", err)
	}

	ts.SetErr(5, errors.New("boom"))
	_, err = ts.Timer(5)
	if err == nil {
		t.Fatalf("expected an injected error")
	}
}

func TestTimerFire(t *testing.T) {
	ts := NewTimers()
	tm, err := ts.Timer(0)
	if err != nil {
		t.Fatalf("could not create timer: %+v", err)
	}

	n := 0
	tm.Attach(func() { n++ })

	if ts.Get(0).Fire() {
		t.Fatalf("disabled timer fired")
	}

	tm.SetAlarm(116, true)
	tm.Enable()
	for i := 0; i < 3; i++ {
		if !ts.Get(0).Fire() {
			t.Fatalf("auto-reload timer did not fire (i=%d)", i)
		}
	}
	if got, want := n, 3; got != want {
		t.Fatalf("invalid fire count: got=%d, want=%d", got, want)
	}
	if got, want := ts.Get(0).Trace(), []uint32{116, 116, 116}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid trace: got=%v, want=%v", got, want)
	}

	// one-shot timers disarm after a single fire.
	tm.SetAlarm(58, false)
	if !ts.Get(0).Fire() {
		t.Fatalf("one-shot timer did not fire")
	}
	if ts.Get(0).Fire() {
		t.Fatalf("one-shot timer fired twice")
	}

	ts.Get(0).ResetTrace()
	if len(ts.Get(0).Trace()) != 0 {
		t.Fatalf("trace not reset")
	}
}

func TestGPIO(t *testing.T) {
	g := NewGPIO()

	err := g.ConfigureOutput(17)
	if err != nil {
		t.Fatalf("could not configure pin: %+v", err)
	}
	if !g.Output(17) || g.Output(16) {
		t.Fatalf("invalid output configuration")
	}
	if g.Level(17) {
		t.Fatalf("configured pin not low")
	}

	g.Set(17, true)
	g.Set(17, true)
	g.Set(17, false)
	if g.Level(17) {
		t.Fatalf("invalid level")
	}
	if got, want := g.Edges(17), 2; got != want {
		t.Fatalf("invalid edge count: got=%d, want=%d", got, want)
	}
}

func TestADC(t *testing.T) {
	a := NewADC()

	v, err := a.ReadRaw(0)
	if err != nil || v != 0 {
		t.Fatalf("invalid zero reading: got=(%d,%v)", v, err)
	}

	a.Set(3, 1024)
	v, err = a.ReadRaw(3)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := v, 1024; got != want {
		t.Fatalf("invalid reading: got=%d, want=%d", got, want)
	}

	a.SetErr(3, errors.New("saturated"))
	_, err = a.ReadRaw(3)
	if err == nil {
		t.Fatalf("expected an injected error")
	}
}
