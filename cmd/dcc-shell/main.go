// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dcc-shell is an interactive console for a running dccd
// station daemon.
package main // import "github.com/go-rail/dcc/cmd/dcc-shell"

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

func main() {
	var (
		addr = flag.String("addr", "localhost:8766", "dccd control [ip]:port to dial")
	)

	log.SetPrefix("dcc-shell: ")
	log.SetFlags(0)

	flag.Parse()

	err := run(*addr)
	if err != nil {
		log.Fatalf("could not run shell: %+v", err)
	}
}

func run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not dial dccd %q: %w", addr, err)
	}
	defer conn.Close()

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	history := filepath.Join(os.TempDir(), ".dcc_shell_history")
	if f, err := os.Open(history); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(history)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	sh := shell{
		dec: json.NewDecoder(conn),
		enc: json.NewEncoder(conn),
	}

	for {
		o, err := term.Prompt("dcc> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		term.AppendHistory(o)

		if o == "quit" || o == "exit" {
			return nil
		}
		err = sh.exec(o)
		if err != nil {
			log.Printf("%+v", err)
		}
	}
}

type shell struct {
	dec *json.Decoder
	enc *json.Encoder
}

// Request mirrors the dccd control command.
type Request struct {
	Cmd   string `json:"cmd"`
	Loco  uint16 `json:"loco,omitempty"`
	CV    uint16 `json:"cv,omitempty"`
	Bit   uint8  `json:"bit,omitempty"`
	Value uint8  `json:"value,omitempty"`
}

// Reply mirrors the dccd control reply.
type Reply struct {
	Msg   string `json:"msg,omitempty"`
	Value int    `json:"value,omitempty"`
	Err   string `json:"err,omitempty"`
}

func (sh *shell) exec(line string) error {
	toks := strings.Fields(line)
	var (
		req Request
		err error
	)
	switch toks[0] {
	case "help":
		fmt.Println(`commands:
  status
  readcv   <cv>
  writecv  <cv> <value>
  writebit <cv> <bit> <0|1>
  ops      <loco> <cv> <value>
  opsbit   <loco> <cv> <bit> <0|1>
  quit`)
		return nil

	case "status":
		req = Request{Cmd: "status"}

	case "readcv":
		req, err = reqOf("readcv", toks[1:], "cv")

	case "writecv":
		req, err = reqOf("writecv", toks[1:], "cv", "value")

	case "writebit":
		req, err = reqOf("writebit", toks[1:], "cv", "bit", "value")

	case "ops":
		req, err = reqOf("opswrite", toks[1:], "loco", "cv", "value")

	case "opsbit":
		req, err = reqOf("opswritebit", toks[1:], "loco", "cv", "bit", "value")

	default:
		return fmt.Errorf("unknown command %q (try \"help\")", toks[0])
	}
	if err != nil {
		return err
	}

	err = sh.enc.Encode(req)
	if err != nil {
		return fmt.Errorf("could not send command: %w", err)
	}

	var rep Reply
	err = sh.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("could not read reply: %w", err)
	}
	if rep.Err != "" {
		return fmt.Errorf("dccd: %s", rep.Err)
	}

	switch req.Cmd {
	case "readcv":
		fmt.Printf("cv %d = %d (0x%02x)\n", req.CV, rep.Value, rep.Value)
	default:
		fmt.Println(rep.Msg)
	}
	return nil
}

// reqOf parses the positional arguments of a command into a Request.
func reqOf(cmd string, args []string, fields ...string) (Request, error) {
	req := Request{Cmd: cmd}
	if len(args) != len(fields) {
		return req, fmt.Errorf("%s: want %d arguments, got %d", cmd, len(fields), len(args))
	}
	for i, name := range fields {
		v, err := strconv.ParseUint(args[i], 10, 16)
		if err != nil {
			return req, fmt.Errorf("%s: invalid %s %q: %w", cmd, name, args[i], err)
		}
		switch name {
		case "loco":
			req.Loco = uint16(v)
		case "cv":
			req.CV = uint16(v)
		case "bit":
			req.Bit = uint8(v)
		case "value":
			req.Value = uint8(v)
		}
	}
	return req, nil
}
