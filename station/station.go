// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package station assembles a complete base station: the OPS and
// PROG signal generators on their drivers, the motor-board registry,
// the service-mode programmer and the ops-mode writer, behind a
// small command surface.
package station // import "github.com/go-rail/dcc/station"

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-rail/dcc/board"
	"github.com/go-rail/dcc/config"
	"github.com/go-rail/dcc/hal"
	"github.com/go-rail/dcc/hal/memio"
	"github.com/go-rail/dcc/hal/sim"
	"github.com/go-rail/dcc/hal/smb"
	"github.com/go-rail/dcc/hal/soft"
	"github.com/go-rail/dcc/prog"
	"github.com/go-rail/dcc/signal"
)

// Drivers bundles the hardware a station runs on.
type Drivers struct {
	GPIO   hal.GPIO
	Timers hal.TimerProvider
	ADC    hal.ADC

	close func() error
}

// Close releases the driver resources. Close is idempotent.
func (drv *Drivers) Close() error {
	if drv.close == nil {
		return nil
	}
	fn := drv.close
	drv.close = nil
	return fn()
}

// NewDrivers builds the drivers selected by the configuration. In
// sim mode the timers are pumped from goroutines, standing in for
// the hardware alarms.
func NewDrivers(cfg *config.Config) (*Drivers, error) {
	switch cfg.Driver.Mode {
	case "sim":
		var (
			timers = sim.NewTimers()
			stop   = make(chan struct{})
			ids    = []int{
				cfg.Ops.FullTimer, cfg.Ops.PulseTimer,
				cfg.Prog.FullTimer, cfg.Prog.PulseTimer,
			}
		)
		for _, id := range ids {
			go func(id int) {
				for {
					select {
					case <-stop:
						return
					default:
						if t := timers.Get(id); t != nil {
							t.Fire()
						}
						time.Sleep(50 * time.Microsecond)
					}
				}
			}(id)
		}
		return &Drivers{
			GPIO:   sim.NewGPIO(),
			Timers: timers,
			ADC:    sim.NewADC(),
			close: func() error {
				close(stop)
				return nil
			},
		}, nil

	case "memio":
		gpio, err := memio.Open(cfg.Driver.DevMem, cfg.Driver.GPIOBase, cfg.Driver.GPIOSpan,
			memio.RegLayout{
				Dir: cfg.Driver.DirOff,
				Set: cfg.Driver.SetOff,
				Clr: cfg.Driver.ClrOff,
			})
		if err != nil {
			return nil, fmt.Errorf("station: could not open GPIO: %w", err)
		}
		adc, err := smb.Open(cfg.Driver.I2CBus, cfg.Driver.I2CAddr)
		if err != nil {
			_ = gpio.Close()
			return nil, fmt.Errorf("station: could not open current-sense ADC: %w", err)
		}
		return &Drivers{
			GPIO:   gpio,
			Timers: soft.NewTimers(),
			ADC:    adc,
			close: func() error {
				err := adc.Close()
				if err2 := gpio.Close(); err == nil {
					err = err2
				}
				return err
			},
		}, nil

	default:
		return nil, fmt.Errorf("station: unknown driver mode %q", cfg.Driver.Mode)
	}
}

// Station ties the two generators, the programmer and the ops
// writer together.
type Station struct {
	msg *log.Logger

	mu   sync.Mutex // serialises programming commands
	ops  *signal.Generator
	prg  *signal.Generator
	pgmr *prog.Programmer
	opsw *prog.OpsWriter

	boards *board.Registry
}

// Option configures a Station.
type Option func(*options)

type options struct {
	msg *log.Logger
}

// WithLogger sets the diagnostics logger for the station and its
// components.
func WithLogger(msg *log.Logger) Option {
	return func(o *options) { o.msg = msg }
}

// New builds a station from the configuration on the given drivers.
func New(cfg *config.Config, drv *Drivers, opts ...Option) (*Station, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.msg == nil {
		o.msg = log.New(os.Stdout, "station: ", 0)
	}

	boards := board.NewRegistry()
	for _, brd := range cfg.Boards {
		err := boards.Register(board.Board{
			Name:         brd.Name,
			ADC:          hal.Channel(brd.ADCChannel),
			MaxMilliAmps: brd.MaxMilliAmps,
		})
		if err != nil {
			return nil, fmt.Errorf("station: could not register board: %w", err)
		}
	}
	progBrd, err := boards.ByName(board.Prog)
	if err != nil {
		return nil, fmt.Errorf("station: could not find PROG board: %w", err)
	}

	genLogger := func(name string) *log.Logger {
		return log.New(o.msg.Writer(), fmt.Sprintf("signal: [%s] ", name), 0)
	}

	ops, err := signal.New(board.Ops, hal.Pin(cfg.Ops.Pin), cfg.Ops.MaxPackets,
		signal.WithGPIO(drv.GPIO),
		signal.WithTimers(drv.Timers, cfg.Ops.FullTimer, cfg.Ops.PulseTimer),
		signal.WithLogger(genLogger(board.Ops)),
	)
	if err != nil {
		return nil, fmt.Errorf("station: could not create OPS generator: %w", err)
	}
	prg, err := signal.New(board.Prog, hal.Pin(cfg.Prog.Pin), cfg.Prog.MaxPackets,
		signal.WithGPIO(drv.GPIO),
		signal.WithTimers(drv.Timers, cfg.Prog.FullTimer, cfg.Prog.PulseTimer),
		signal.WithLogger(genLogger(board.Prog)),
	)
	if err != nil {
		return nil, fmt.Errorf("station: could not create PROG generator: %w", err)
	}

	pgmr, err := prog.New(prg, progBrd, drv.ADC, prog.WithLogger(o.msg))
	if err != nil {
		return nil, fmt.Errorf("station: could not create programmer: %w", err)
	}

	return &Station{
		msg:    o.msg,
		ops:    ops,
		prg:    prg,
		pgmr:   pgmr,
		opsw:   prog.NewOpsWriter(ops, prog.WithOpsLogger(o.msg)),
		boards: boards,
	}, nil
}

// Start powers up both tracks.
func (stn *Station) Start() error {
	err := stn.ops.Start()
	if err != nil {
		return fmt.Errorf("station: could not start OPS generator: %w", err)
	}
	err = stn.prg.Start()
	if err != nil {
		_ = stn.ops.Stop()
		return fmt.Errorf("station: could not start PROG generator: %w", err)
	}
	return nil
}

// Stop powers down both tracks.
func (stn *Station) Stop() error {
	err := stn.ops.Stop()
	if err2 := stn.prg.Stop(); err == nil {
		err = err2
	}
	return err
}

// ReadCV reads a CV on the programming track.
func (stn *Station) ReadCV(cv uint16) (uint8, error) {
	stn.mu.Lock()
	defer stn.mu.Unlock()
	return stn.pgmr.ReadCV(cv)
}

// WriteCV writes a CV byte on the programming track.
func (stn *Station) WriteCV(cv uint16, value uint8) error {
	stn.mu.Lock()
	defer stn.mu.Unlock()
	return stn.pgmr.WriteCV(cv, value)
}

// WriteCVBit writes a CV bit on the programming track.
func (stn *Station) WriteCVBit(cv uint16, bit uint8, value bool) error {
	stn.mu.Lock()
	defer stn.mu.Unlock()
	return stn.pgmr.WriteCVBit(cv, bit, value)
}

// WriteOpsCV writes a CV byte on the operations track.
func (stn *Station) WriteOpsCV(loco, cv uint16, value uint8) error {
	stn.mu.Lock()
	defer stn.mu.Unlock()
	return stn.opsw.WriteCV(loco, cv, value)
}

// WriteOpsCVBit writes a CV bit on the operations track.
func (stn *Station) WriteOpsCVBit(loco, cv uint16, bit uint8, value bool) error {
	stn.mu.Lock()
	defer stn.mu.Unlock()
	return stn.opsw.WriteCVBit(loco, cv, bit, value)
}

// Status reports the queue state of both generators.
func (stn *Station) Status() string {
	return fmt.Sprintf("ops: queue-empty=%v, prog: queue-empty=%v",
		stn.ops.QueueEmpty(), stn.prg.QueueEmpty(),
	)
}
