// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the base-station configuration file.
package config // import "github.com/go-rail/dcc/config"

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the station configuration.
type Config struct {
	Ctl    CtlConfig       `yaml:"ctl"`
	Driver DriverConfig    `yaml:"driver"`
	Ops    GeneratorConfig `yaml:"ops"`
	Prog   GeneratorConfig `yaml:"prog"`
	Boards []BoardConfig   `yaml:"boards"`
}

// CtlConfig configures the control listener.
type CtlConfig struct {
	Addr string `yaml:"addr"`
}

// DriverConfig selects and configures the hardware drivers.
type DriverConfig struct {
	Mode string `yaml:"mode"` // "sim" or "memio"

	// memio mode: GPIO register window.
	DevMem   string `yaml:"devmem"`
	GPIOBase int64  `yaml:"gpio_base"`
	GPIOSpan int    `yaml:"gpio_span"`
	DirOff   int64  `yaml:"gpio_dir"`
	SetOff   int64  `yaml:"gpio_set"`
	ClrOff   int64  `yaml:"gpio_clr"`

	// memio mode: I2C current-sense ADC.
	I2CBus  int   `yaml:"i2c_bus"`
	I2CAddr uint8 `yaml:"i2c_addr"`
}

// GeneratorConfig configures one signal generator.
type GeneratorConfig struct {
	Pin        uint32 `yaml:"pin"`         // direction GPIO
	FullTimer  int    `yaml:"full_timer"`  // full-cycle hardware timer index
	PulseTimer int    `yaml:"pulse_timer"` // pulse hardware timer index
	MaxPackets int    `yaml:"max_packets"` // packet pool size
}

// BoardConfig configures one motor board.
type BoardConfig struct {
	Name         string `yaml:"name"`
	ADCChannel   uint8  `yaml:"adc_channel"`
	MaxMilliAmps int    `yaml:"max_milliamps"`
}

// Default returns the configuration of a stock two-track station.
func Default() *Config {
	return &Config{
		Ctl: CtlConfig{
			Addr: ":8766",
		},
		Driver: DriverConfig{
			Mode:     "sim",
			DevMem:   "/dev/mem",
			GPIOSpan: 0x1000,
			DirOff:   0x00,
			SetOff:   0x10,
			ClrOff:   0x20,
			I2CBus:   1,
			I2CAddr:  0x48,
		},
		Ops: GeneratorConfig{
			Pin:        17,
			FullTimer:  0,
			PulseTimer: 1,
			MaxPackets: 512,
		},
		Prog: GeneratorConfig{
			Pin:        16,
			FullTimer:  2,
			PulseTimer: 3,
			MaxPackets: 64,
		},
		Boards: []BoardConfig{
			{Name: "OPS", ADCChannel: 0, MaxMilliAmps: 5000},
			{Name: "PROG", ADCChannel: 3, MaxMilliAmps: 250},
		},
	}
}

// Load reads the configuration from fname, falling back to the
// defaults when the file does not exist.
func Load(fname string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(fname)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: could not read %q: %w", fname, err)
	}

	err = yaml.Unmarshal(raw, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: could not parse %q: %w", fname, err)
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config: invalid configuration %q: %w", fname, err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.Driver.Mode {
	case "sim", "memio":
	default:
		return fmt.Errorf("unknown driver mode %q", cfg.Driver.Mode)
	}
	for _, gen := range []struct {
		name string
		cfg  GeneratorConfig
	}{
		{"ops", cfg.Ops},
		{"prog", cfg.Prog},
	} {
		if gen.cfg.MaxPackets < 1 {
			return fmt.Errorf("%s: invalid pool size %d", gen.name, gen.cfg.MaxPackets)
		}
		if gen.cfg.FullTimer == gen.cfg.PulseTimer {
			return fmt.Errorf("%s: full and pulse timers alias (%d)", gen.name, gen.cfg.FullTimer)
		}
	}
	if cfg.Ops.Pin == cfg.Prog.Pin {
		return fmt.Errorf("ops and prog direction pins alias (%d)", cfg.Ops.Pin)
	}
	for _, brd := range cfg.Boards {
		if brd.Name == "" {
			return fmt.Errorf("board with empty name")
		}
		if brd.MaxMilliAmps <= 0 {
			return fmt.Errorf("board %q: invalid current rating %d mA", brd.Name, brd.MaxMilliAmps)
		}
	}
	return nil
}
