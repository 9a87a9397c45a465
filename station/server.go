// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sync/errgroup"
)

// Request is one control command.
type Request struct {
	Cmd   string `json:"cmd"`
	Loco  uint16 `json:"loco,omitempty"`
	CV    uint16 `json:"cv,omitempty"`
	Bit   uint8  `json:"bit,omitempty"`
	Value uint8  `json:"value,omitempty"`
}

// Reply is the answer to a control command.
type Reply struct {
	Msg   string `json:"msg,omitempty"`
	Value int    `json:"value,omitempty"`
	Err   string `json:"err,omitempty"`
}

// Serve starts the station and answers control commands on addr
// until ctx is cancelled.
func (stn *Station) Serve(ctx context.Context, addr string) error {
	err := stn.Start()
	if err != nil {
		return err
	}
	defer func() {
		err := stn.Stop()
		if err != nil {
			stn.msg.Printf("could not stop station: %+v", err)
		}
	}()

	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("station: could not listen on %q: %w", addr, err)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		<-ctx.Done()
		return ctl.Close()
	})
	grp.Go(func() error {
		stn.msg.Printf("serving control commands on %q...", addr)
		for {
			conn, err := ctl.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					return fmt.Errorf("station: could not accept connection: %w", err)
				}
			}
			grp.Go(func() error {
				stn.handle(conn)
				return nil
			})
		}
	})

	err = grp.Wait()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (stn *Station) handle(conn net.Conn) {
	defer conn.Close()
	stn.msg.Printf("serving %v...", conn.RemoteAddr())
	defer stn.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	for {
		var (
			req Request
			err = json.NewDecoder(conn).Decode(&req)
		)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				stn.msg.Printf("could not decode command: %+v", err)
			}
			return
		}

		err = json.NewEncoder(conn).Encode(stn.Dispatch(req))
		if err != nil {
			stn.msg.Printf("could not encode reply: %+v", err)
			return
		}
	}
}

// Dispatch runs one control command.
func (stn *Station) Dispatch(req Request) Reply {
	switch req.Cmd {
	case "status":
		return Reply{Msg: stn.Status()}

	case "readcv":
		v, err := stn.ReadCV(req.CV)
		if err != nil {
			return Reply{Err: err.Error()}
		}
		return Reply{Msg: "ok", Value: int(v)}

	case "writecv":
		err := stn.WriteCV(req.CV, req.Value)
		if err != nil {
			return Reply{Err: err.Error()}
		}
		return Reply{Msg: "ok"}

	case "writebit":
		err := stn.WriteCVBit(req.CV, req.Bit, req.Value != 0)
		if err != nil {
			return Reply{Err: err.Error()}
		}
		return Reply{Msg: "ok"}

	case "opswrite":
		err := stn.WriteOpsCV(req.Loco, req.CV, req.Value)
		if err != nil {
			return Reply{Err: err.Error()}
		}
		return Reply{Msg: "ok"}

	case "opswritebit":
		err := stn.WriteOpsCVBit(req.Loco, req.CV, req.Bit, req.Value != 0)
		if err != nil {
			return Reply{Err: err.Error()}
		}
		return Reply{Msg: "ok"}

	default:
		return Reply{Err: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}
