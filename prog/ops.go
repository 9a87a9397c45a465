// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prog

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/go-rail/dcc/signal"
)

const (
	maxShortAddr = 127
	maxLocoAddr  = 10239

	opsRepeats = 4
)

// ErrLoco means the locomotive address is outside 1..10239.
var ErrLoco = errors.New("prog: invalid locomotive address")

// OpsWriter programs decoders on the operations track. The main
// track has no ACK feedback, so writes are fire-and-forget: each
// instruction is simply repeated on the wire.
type OpsWriter struct {
	gen *signal.Generator
	msg *log.Logger
}

// NewOpsWriter creates an operations-mode CV writer driving gen.
func NewOpsWriter(gen *signal.Generator, opts ...OpsOption) *OpsWriter {
	w := &OpsWriter{gen: gen}
	for _, opt := range opts {
		opt(w)
	}
	if w.msg == nil {
		w.msg = log.New(os.Stdout, "ops: ", 0)
	}
	return w
}

// OpsOption configures an OpsWriter.
type OpsOption func(*OpsWriter)

// WithOpsLogger sets the diagnostics logger.
func WithOpsLogger(msg *log.Logger) OpsOption {
	return func(w *OpsWriter) { w.msg = msg }
}

// WriteCV updates a CV byte of a decoder running on the operations
// track.
func (w *OpsWriter) WriteCV(loco, cv uint16, value uint8) error {
	if cv < 1 || cv > maxCV {
		return fmt.Errorf("%w: %d", ErrCV, cv)
	}
	if loco < 1 || loco > maxLocoAddr {
		return fmt.Errorf("%w: %d", ErrLoco, loco)
	}

	w.msg.Printf("updating CV %d to %d for loco %d", cv, value, loco)
	hi, lo := cvAddr(cv)
	return w.gen.Load(opsPayload(loco, 0xEC|hi, lo, value), opsRepeats)
}

// WriteCVBit updates a single CV bit of a decoder running on the
// operations track.
func (w *OpsWriter) WriteCVBit(loco, cv uint16, bit uint8, value bool) error {
	if cv < 1 || cv > maxCV {
		return fmt.Errorf("%w: %d", ErrCV, cv)
	}
	if bit > 7 {
		return fmt.Errorf("%w: %d", ErrBit, bit)
	}
	if loco < 1 || loco > maxLocoAddr {
		return fmt.Errorf("%w: %d", ErrLoco, loco)
	}

	var v uint8
	if value {
		v = 1
	}
	w.msg.Printf("updating CV %d bit %d to %d for loco %d", cv, bit, v, loco)
	hi, lo := cvAddr(cv)
	return w.gen.Load(opsPayload(loco, 0xE8|hi, lo, 0xF0|bit|v<<3), opsRepeats)
}

// opsPayload prepends the locomotive address bytes to an ops-mode
// instruction: a single byte for short addresses, a 0xC0-marked pair
// for long ones.
func opsPayload(loco uint16, inst ...byte) []byte {
	var p []byte
	if loco > maxShortAddr {
		p = append(p, 0xC0|byte(loco>>8), byte(loco))
	} else {
		p = append(p, byte(loco))
	}
	return append(p, inst...)
}
