// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hal defines the hardware interfaces the DCC signal core is
// written against: microsecond timers, GPIO pins and an ADC sampler.
// Concrete drivers live in the sub-packages (sim, memio, smb).
package hal // import "github.com/go-rail/dcc/hal"

// Pin identifies a GPIO pin number.
type Pin uint32

// Channel identifies an ADC input channel.
type Channel uint8

// GPIO drives digital output pins.
type GPIO interface {
	// ConfigureOutput configures pin as a digital output, driven low.
	ConfigureOutput(pin Pin) error

	// Set drives pin high (true) or low (false).
	Set(pin Pin, high bool)
}

// Timer is a hardware timer prescaled to a 1 µs tick, with a single
// alarm. The attached function runs in interrupt context: it must not
// block, allocate or acquire locks.
type Timer interface {
	// Attach registers fn as the alarm interrupt handler.
	Attach(fn func())

	// SetAlarm programs the alarm to fire us microseconds after the
	// counter start. With reload the counter restarts automatically
	// on each alarm; without, the alarm fires once per Enable.
	SetAlarm(us uint32, reload bool)

	// Reset zeroes the timer counter.
	Reset()

	// Enable arms the alarm.
	Enable()

	// Disable disarms the alarm.
	Disable()

	// Close detaches the handler and releases the timer.
	Close() error
}

// TimerProvider hands out hardware timers by index.
type TimerProvider interface {
	Timer(id int) (Timer, error)
}

// ADC performs single-shot raw conversions.
type ADC interface {
	// ReadRaw samples channel ch once and returns the raw reading.
	// A zero reading (or an error) denotes a failed conversion.
	ReadRaw(ch Channel) (int, error)
}
