// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package board holds the registry of motor boards attached to the
// base station. The signal core only consumes a board's ADC channel
// and its maximum current rating; the power-stage driver itself
// (current trip, enable/disable) lives outside this module.
package board // import "github.com/go-rail/dcc/board"

import (
	"fmt"

	"github.com/go-rail/dcc/hal"
)

// Canonical board names.
const (
	Ops  = "OPS"
	Prog = "PROG"
)

// Board describes one motor board.
type Board struct {
	Name         string
	ADC          hal.Channel // current-sense ADC channel
	MaxMilliAmps int         // rated maximum current
}

// Registry maps board names to boards.
type Registry struct {
	boards map[string]*Board
}

// NewRegistry returns an empty board registry.
func NewRegistry() *Registry {
	return &Registry{boards: make(map[string]*Board)}
}

// Register adds a board to the registry.
func (reg *Registry) Register(b Board) error {
	if b.Name == "" {
		return fmt.Errorf("board: missing board name")
	}
	if b.MaxMilliAmps <= 0 {
		return fmt.Errorf("board: invalid current rating %d mA for %q", b.MaxMilliAmps, b.Name)
	}
	if _, dup := reg.boards[b.Name]; dup {
		return fmt.Errorf("board: board %q already registered", b.Name)
	}
	reg.boards[b.Name] = &b
	return nil
}

// ByName looks a board up by name.
func (reg *Registry) ByName(name string) (*Board, error) {
	b, ok := reg.boards[name]
	if !ok {
		return nil, fmt.Errorf("board: no board named %q", name)
	}
	return b, nil
}
