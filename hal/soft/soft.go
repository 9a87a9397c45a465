// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package soft implements hal timers on the Go runtime scheduler.
// Alarm jitter on a stock kernel is orders of magnitude above the
// DCC bit budget, so these timers are only suitable for bench and
// bring-up work; production stations need a hardware timer driver.
package soft // import "github.com/go-rail/dcc/hal/soft"

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-rail/dcc/hal"
)

// Timers is a software timer provider.
type Timers struct {
	mu     sync.Mutex
	timers map[int]*Timer
}

// NewTimers returns an empty software timer provider.
func NewTimers() *Timers {
	return &Timers{timers: make(map[int]*Timer)}
}

// Timer hands out the software timer id.
func (ts *Timers) Timer(id int) (hal.Timer, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, dup := ts.timers[id]; dup {
		return nil, fmt.Errorf("soft: timer %d already in use", id)
	}
	t := &Timer{owner: ts, id: id}
	ts.timers[id] = t
	return t, nil
}

func (ts *Timers) release(id int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.timers, id)
}

// Timer runs its alarm handler from a goroutine.
type Timer struct {
	owner *Timers
	id    int

	mu      sync.Mutex
	fn      func()
	alarm   time.Duration
	reload  bool
	enabled bool
	gen     int // bumped on Disable/Close to stop the run loop
}

func (t *Timer) Attach(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = fn
}

func (t *Timer) SetAlarm(us uint32, reload bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alarm = time.Duration(us) * time.Microsecond
	t.reload = reload
}

func (t *Timer) Reset() {}

func (t *Timer) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		return
	}
	t.enabled = true
	t.gen++
	go t.run(t.gen)
}

func (t *Timer) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
	t.gen++
}

func (t *Timer) Close() error {
	t.Disable()
	t.owner.release(t.id)
	return nil
}

func (t *Timer) run(gen int) {
	for {
		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		var (
			d      = t.alarm
			reload = t.reload
			fn     = t.fn
		)
		t.mu.Unlock()

		time.Sleep(d)

		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		if !reload {
			t.enabled = false
		}
		t.mu.Unlock()

		if fn != nil {
			fn()
		}
		if !reload {
			return
		}
	}
}

var (
	_ hal.TimerProvider = (*Timers)(nil)
	_ hal.Timer         = (*Timer)(nil)
)
