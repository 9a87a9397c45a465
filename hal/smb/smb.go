// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package smb implements the hal ADC on an ADS1015-class I2C
// current-sense converter, for motor boards that expose their sense
// output over SMBus instead of an on-chip ADC channel.
package smb // import "github.com/go-rail/dcc/hal/smb"

import (
	"fmt"
	"time"

	"github.com/go-daq/smbus"

	"github.com/go-rail/dcc/hal"
)

const (
	regConv = 0x00
	regCfg  = 0x01

	cfgOS       = 0x8000 // start a single conversion
	cfgMuxGnd   = 0x4000 // single-ended input, AINx vs GND
	cfgPGA2048  = 0x0400 // ±2.048 V full scale
	cfgSingle   = 0x0100 // single-shot mode
	cfgRate1600 = 0x0080 // 1600 samples/s
	cfgCompOff  = 0x0003

	convDelay = 1 * time.Millisecond
)

// ADC drives an ADS1015-class converter at addr on an SMBus.
type ADC struct {
	c    *smbus.Conn
	addr uint8
}

// Open connects to the converter at addr on I2C bus number bus.
func Open(bus int, addr uint8) (*ADC, error) {
	c, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("smb: could not open i2c-%d: %w", bus, err)
	}
	return &ADC{c: c, addr: addr}, nil
}

// Close releases the bus.
func (a *ADC) Close() error {
	return a.c.Close()
}

// ReadRaw starts a single-shot conversion of channel ch and returns
// the 12-bit result.
func (a *ADC) ReadRaw(ch hal.Channel) (int, error) {
	if ch > 3 {
		return 0, fmt.Errorf("smb: invalid channel %d", ch)
	}

	cfg := uint16(cfgOS | cfgMuxGnd | cfgPGA2048 | cfgSingle | cfgRate1600 | cfgCompOff)
	cfg |= uint16(ch) << 12
	err := a.c.WriteWord(a.addr, regCfg, swap(cfg))
	if err != nil {
		return 0, fmt.Errorf("smb: could not start conversion on channel %d: %w", ch, err)
	}

	time.Sleep(convDelay)

	raw, err := a.c.ReadWord(a.addr, regConv)
	if err != nil {
		return 0, fmt.Errorf("smb: could not read conversion on channel %d: %w", ch, err)
	}
	return int(swap(raw) >> 4), nil
}

// swap converts between SMBus little-endian words and the
// converter's big-endian registers.
func swap(v uint16) uint16 {
	return v<<8 | v>>8
}

var _ hal.ADC = (*ADC)(nil)
