// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dccd runs the DCC base station: the OPS and PROG signal
// generators, the service-mode programmer and a JSON control port.
package main // import "github.com/go-rail/dcc/cmd/dccd"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	osignal "os/signal"
	"syscall"

	"github.com/go-rail/dcc/config"
	"github.com/go-rail/dcc/station"
)

func main() {
	var (
		cfgFile = flag.String("cfg", "/etc/dccd/station.yaml", "station configuration file")
		addr    = flag.String("addr", "", "control [ip]:port (overrides the configuration)")
		simMode = flag.Bool("sim", false, "run on simulated drivers (overrides the configuration)")
	)

	log.SetPrefix("dccd: ")
	log.SetFlags(0)

	flag.Parse()

	err := run(*cfgFile, *addr, *simMode)
	if err != nil {
		log.Fatalf("could not run station: %+v", err)
	}
}

func run(cfgFile, addr string, simMode bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if addr != "" {
		cfg.Ctl.Addr = addr
	}
	if simMode {
		cfg.Driver.Mode = "sim"
	}

	drv, err := station.NewDrivers(cfg)
	if err != nil {
		return fmt.Errorf("could not open drivers: %w", err)
	}
	defer drv.Close()

	stn, err := station.New(cfg, drv)
	if err != nil {
		return fmt.Errorf("could not create station: %w", err)
	}

	ctx, cancel := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return stn.Serve(ctx, cfg.Ctl.Addr)
}
