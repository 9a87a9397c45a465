// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dcc-daq exposes a DCC base station as a TDAQ server, so a
// run-control can sequence track power together with the rest of an
// acquisition setup.
package main // import "github.com/go-rail/dcc/cmd/dcc-daq"

import (
	"bytes"
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-rail/dcc/config"
	"github.com/go-rail/dcc/station"
)

func main() {
	cmd := flags.New()

	dev := dccStation{
		cfgFile: "/etc/dccd/station.yaml",
	}
	if len(cmd.Args) > 0 {
		dev.cfgFile = cmd.Args[0]
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.CmdHandle("/cv-read", dev.OnReadCV)
	srv.CmdHandle("/cv-write", dev.OnWriteCV)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type dccStation struct {
	cfgFile string

	cfg *config.Config
	drv *station.Drivers
	stn *station.Station
}

func (dev *dccStation) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	cfg, err := config.Load(dev.cfgFile)
	if err != nil {
		ctx.Msg.Errorf("could not load configuration: %+v", err)
		return err
	}
	dev.cfg = cfg
	return nil
}

func (dev *dccStation) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	if dev.cfg == nil {
		cfg, err := config.Load(dev.cfgFile)
		if err != nil {
			return err
		}
		dev.cfg = cfg
	}

	drv, err := station.NewDrivers(dev.cfg)
	if err != nil {
		ctx.Msg.Errorf("could not open drivers: %+v", err)
		return err
	}
	stn, err := station.New(dev.cfg, drv)
	if err != nil {
		_ = drv.Close()
		ctx.Msg.Errorf("could not create station: %+v", err)
		return err
	}
	dev.drv = drv
	dev.stn = stn
	return nil
}

func (dev *dccStation) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	if dev.stn != nil {
		_ = dev.stn.Stop()
	}
	if dev.drv != nil {
		_ = dev.drv.Close()
	}
	dev.stn = nil
	dev.drv = nil
	dev.cfg = nil
	return nil
}

func (dev *dccStation) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	err := dev.stn.Start()
	if err != nil {
		ctx.Msg.Errorf("could not start station: %+v", err)
		return err
	}
	ctx.Msg.Infof("track power on")
	return nil
}

func (dev *dccStation) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	err := dev.stn.Stop()
	if err != nil {
		ctx.Msg.Errorf("could not stop station: %+v", err)
		return err
	}
	ctx.Msg.Infof("track power off")
	return nil
}

func (dev *dccStation) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if dev.stn != nil {
		_ = dev.stn.Stop()
	}
	if dev.drv != nil {
		_ = dev.drv.Close()
	}
	return nil
}

func (dev *dccStation) OnReadCV(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	cv := dec.ReadU32()

	ctx.Msg.Infof("reading CV %d...", cv)
	v, err := dev.stn.ReadCV(uint16(cv))
	if err != nil {
		ctx.Msg.Errorf("could not read CV %d: %+v", cv, err)
		return err
	}
	ctx.Msg.Infof("CV %d = %d", cv, v)

	resp.Body = []byte{v}
	return nil
}

func (dev *dccStation) OnWriteCV(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	var (
		cv    = dec.ReadU32()
		value = dec.ReadU32()
	)

	ctx.Msg.Infof("writing CV %d = %d...", cv, value)
	err := dev.stn.WriteCV(uint16(cv), uint8(value))
	if err != nil {
		ctx.Msg.Errorf("could not write CV %d: %+v", cv, err)
		return err
	}
	return nil
}
