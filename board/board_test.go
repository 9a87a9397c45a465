// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package board

import (
	"testing"

	"github.com/go-rail/dcc/hal"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(Board{Name: Ops, ADC: 0, MaxMilliAmps: 5000})
	if err != nil {
		t.Fatalf("could not register OPS board: %+v", err)
	}
	err = reg.Register(Board{Name: Prog, ADC: 3, MaxMilliAmps: 250})
	if err != nil {
		t.Fatalf("could not register PROG board: %+v", err)
	}

	brd, err := reg.ByName(Prog)
	if err != nil {
		t.Fatalf("could not look up PROG board: %+v", err)
	}
	if got, want := brd.MaxMilliAmps, 250; got != want {
		t.Fatalf("invalid current rating: got=%d, want=%d", got, want)
	}
	if got, want := brd.ADC, hal.Channel(3); got != want {
		t.Fatalf("invalid ADC channel: got=%d, want=%d", got, want)
	}

	_, err = reg.ByName("AUX")
	if err == nil {
		t.Fatalf("expected an error for an unknown board")
	}
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(Board{Name: "", MaxMilliAmps: 100})
	if err == nil {
		t.Fatalf("expected an error for a nameless board")
	}

	err = reg.Register(Board{Name: Ops, MaxMilliAmps: 0})
	if err == nil {
		t.Fatalf("expected an error for a zero current rating")
	}

	err = reg.Register(Board{Name: Ops, MaxMilliAmps: 5000})
	if err != nil {
		t.Fatalf("could not register OPS board: %+v", err)
	}
	err = reg.Register(Board{Name: Ops, MaxMilliAmps: 5000})
	if err == nil {
		t.Fatalf("expected an error for a duplicate board")
	}
}
