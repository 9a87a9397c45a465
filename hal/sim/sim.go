// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim provides simulated hal drivers: manually fired timers
// that record their alarm programming, a pin recorder and a scripted
// ADC. They back the signal and prog tests and the dry-run mode of
// the station daemon.
package sim // import "github.com/go-rail/dcc/hal/sim"

import (
	"fmt"
	"sync"

	"github.com/go-rail/dcc/hal"
)

// Timers is a simulated timer provider. Each timer index is
// single-owner until closed.
type Timers struct {
	mu     sync.Mutex
	timers map[int]*Timer
	errs   map[int]error
}

// NewTimers returns an empty timer provider.
func NewTimers() *Timers {
	return &Timers{
		timers: make(map[int]*Timer),
		errs:   make(map[int]error),
	}
}

// SetErr makes subsequent Timer calls for id fail with err, to
// exercise hardware-init failure paths.
func (ts *Timers) SetErr(id int, err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.errs[id] = err
}

// Timer hands out the simulated timer id.
func (ts *Timers) Timer(id int) (hal.Timer, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err := ts.errs[id]; err != nil {
		return nil, err
	}
	if _, dup := ts.timers[id]; dup {
		return nil, fmt.Errorf("sim: timer %d already in use", id)
	}
	t := &Timer{owner: ts, id: id}
	ts.timers[id] = t
	return t, nil
}

// Get returns the open timer id, or nil.
func (ts *Timers) Get(id int) *Timer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.timers[id]
}

func (ts *Timers) release(id int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.timers, id)
}

// Timer is a simulated hardware timer. It never fires on its own:
// tests (or a Pump) call Fire to model an alarm expiry.
type Timer struct {
	owner *Timers
	id    int

	mu      sync.Mutex
	fn      func()
	alarm   uint32
	reload  bool
	enabled bool
	trace   []uint32
}

func (t *Timer) Attach(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = fn
}

func (t *Timer) SetAlarm(us uint32, reload bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alarm = us
	t.reload = reload
}

func (t *Timer) Reset() {}

func (t *Timer) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = true
}

func (t *Timer) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

func (t *Timer) Close() error {
	t.Disable()
	t.owner.release(t.id)
	return nil
}

// Fire models one alarm expiry: it runs the attached handler and
// records the alarm duration the handler leaves programmed, i.e. the
// duration of the period just started. Fire reports false when the
// timer is disabled or has no handler.
func (t *Timer) Fire() bool {
	t.mu.Lock()
	if !t.enabled || t.fn == nil {
		t.mu.Unlock()
		return false
	}
	if !t.reload {
		t.enabled = false
	}
	fn := t.fn
	t.mu.Unlock()

	fn()

	t.mu.Lock()
	t.trace = append(t.trace, t.alarm)
	t.mu.Unlock()
	return true
}

// Alarm returns the currently programmed alarm duration.
func (t *Timer) Alarm() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alarm
}

// Trace returns a copy of the recorded alarm durations.
func (t *Timer) Trace() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint32, len(t.trace))
	copy(out, t.trace)
	return out
}

// ResetTrace discards the recorded alarm durations.
func (t *Timer) ResetTrace() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trace = t.trace[:0]
}

// GPIO records pin configuration and levels.
type GPIO struct {
	mu     sync.Mutex
	out    map[hal.Pin]bool
	levels map[hal.Pin]bool
	edges  map[hal.Pin]int
}

// NewGPIO returns a pin recorder.
func NewGPIO() *GPIO {
	return &GPIO{
		out:    make(map[hal.Pin]bool),
		levels: make(map[hal.Pin]bool),
		edges:  make(map[hal.Pin]int),
	}
}

func (g *GPIO) ConfigureOutput(pin hal.Pin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.out[pin] = true
	g.levels[pin] = false
	return nil
}

func (g *GPIO) Set(pin hal.Pin, high bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.levels[pin] != high {
		g.edges[pin]++
	}
	g.levels[pin] = high
}

// Output reports whether pin was configured as an output.
func (g *GPIO) Output(pin hal.Pin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.out[pin]
}

// Level returns the current level of pin.
func (g *GPIO) Level(pin hal.Pin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// Edges returns the number of recorded level changes on pin.
func (g *GPIO) Edges(pin hal.Pin) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.edges[pin]
}

// ADC is a scripted ADC: each channel returns its programmed value.
type ADC struct {
	mu   sync.Mutex
	v    map[hal.Channel]int
	errs map[hal.Channel]error
}

// NewADC returns a scripted ADC with all channels reading zero.
func NewADC() *ADC {
	return &ADC{
		v:    make(map[hal.Channel]int),
		errs: make(map[hal.Channel]error),
	}
}

// Set programs the reading of channel ch.
func (a *ADC) Set(ch hal.Channel, v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v[ch] = v
}

// SetErr makes ReadRaw on channel ch fail with err.
func (a *ADC) SetErr(ch hal.Channel, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs[ch] = err
}

func (a *ADC) ReadRaw(ch hal.Channel) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.errs[ch]; err != nil {
		return 0, err
	}
	return a.v[ch], nil
}

var (
	_ hal.TimerProvider = (*Timers)(nil)
	_ hal.Timer         = (*Timer)(nil)
	_ hal.GPIO          = (*GPIO)(nil)
	_ hal.ADC           = (*ADC)(nil)
)
