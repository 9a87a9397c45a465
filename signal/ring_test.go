// Copyright 2025 The go-rail Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package signal

import (
	"testing"
)

func TestRing(t *testing.T) {
	q := newRing(3)
	if !q.empty() {
		t.Fatalf("new ring not empty")
	}
	if got, want := q.len(), 0; got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}

	for i := uint32(0); i < 3; i++ {
		if !q.push(i) {
			t.Fatalf("could not push %d", i)
		}
	}
	if q.push(99) {
		t.Fatalf("pushed into a full ring")
	}
	if got, want := q.len(), 3; got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}

	for i := uint32(0); i < 3; i++ {
		v, ok := q.pop()
		if !ok {
			t.Fatalf("could not pop element %d", i)
		}
		if v != i {
			t.Fatalf("invalid pop order: got=%d, want=%d", v, i)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatalf("popped from an empty ring")
	}
}

func TestRingWrap(t *testing.T) {
	q := newRing(2)
	for i := uint32(0); i < 100; i++ {
		if !q.push(i) {
			t.Fatalf("could not push %d", i)
		}
		v, ok := q.pop()
		if !ok || v != i {
			t.Fatalf("invalid pop: got=(%d,%v), want=(%d,true)", v, ok, i)
		}
	}
}

func TestRingSPSC(t *testing.T) {
	const n = 10000
	q := newRing(8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for want := uint32(0); want < n; {
			v, ok := q.pop()
			if !ok {
				continue
			}
			if v != want {
				t.Errorf("invalid order: got=%d, want=%d", v, want)
				return
			}
			want++
		}
	}()

	for i := uint32(0); i < n; {
		if q.push(i) {
			i++
		}
	}
	<-done
}
