// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/go-daq/pcictr/ctr"
	"github.com/go-daq/pcictr/ctr/ctrtest"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestMux(t *testing.T) (*Mux, *ctrtest.Board) {
	t.Helper()
	fb := ctrtest.NewBoard(2)
	tab, err := ctr.Attach(
		ctr.WithLogger(testLogger()),
		ctr.WithBoards(ctr.BoardInfo{Model: ctr.CTR10, RW: fb, Addr: "fake"}),
	)
	if err != nil {
		t.Fatalf("could not attach fake board: %+v", err)
	}
	t.Cleanup(func() { _ = tab.Close() })
	return New(tab, WithLogger(testLogger())), fb
}

func testMode() ctr.Mode {
	return ctr.Mode{
		Source: ctr.SourceF1,
		Dir:    ctr.Down,
		Gate:   ctr.GateNone,
		Output: ctr.OutputPulse,
	}
}

func TestMuxCounterOps(t *testing.T) {
	mux, fb := newTestMux(t)
	mode := testMode()

	for _, tc := range []struct {
		op   Op
		args Args
		want uint32
		tick int
	}{
		{op: SetMode, args: Args{Mode: &mode}},
		{op: Load, args: Args{Val: 1000}},
		{op: Start},
		{op: ReadCount, want: 600, tick: 400},
		{op: Stop},
		{op: ReadCount, want: 600},
		{op: Arm},
		{op: Start},
		{op: ReadCount, want: 900, tick: 100},
		{op: Stop},
		{op: ResetCounter},
	} {
		if tc.tick != 0 {
			fb.Tick(0, tc.tick)
		}
		v, err := mux.Ctl("CTR01", tc.op, tc.args)
		if err != nil {
			t.Fatalf("%v: %+v", tc.op, err)
		}
		if v != tc.want {
			t.Fatalf("%v: got=%d, want=%d", tc.op, v, tc.want)
		}
	}

	h, err := mux.Open("CTR01")
	if err != nil {
		t.Fatalf("could not open CTR01: %+v", err)
	}
	c := h.res.(*ctr.Counter)
	if got := c.State(); got != ctr.Unconfigured {
		t.Fatalf("invalid state after reset: %v", got)
	}
}

func TestMuxHandleReadWrite(t *testing.T) {
	mux, fb := newTestMux(t)

	h, err := mux.Open("CTR02")
	if err != nil {
		t.Fatalf("could not open CTR02: %+v", err)
	}
	mode := testMode()
	if _, err := h.Ctl(SetMode, Args{Mode: &mode}); err != nil {
		t.Fatalf("could not set mode: %+v", err)
	}
	// a plain write loads and arms the counter
	if err := h.Write(500); err != nil {
		t.Fatalf("could not write counter: %+v", err)
	}
	if _, err := h.Ctl(Start, Args{}); err != nil {
		t.Fatalf("could not start counter: %+v", err)
	}
	fb.Tick(0, 100)
	v, err := h.Read()
	if err != nil {
		t.Fatalf("could not read counter: %+v", err)
	}
	if v != 400 {
		t.Fatalf("invalid count: got=%d, want=400", v)
	}

	p, err := mux.Open("DIO0B")
	if err != nil {
		t.Fatalf("could not open DIO0B: %+v", err)
	}
	if _, err := p.Ctl(SetDirection, Args{Mask: 0x0000ff}); err != nil {
		t.Fatalf("could not set direction: %+v", err)
	}
	if err := p.Write(0xab); err != nil {
		t.Fatalf("could not write port: %+v", err)
	}
	v, err = p.Read()
	if err != nil {
		t.Fatalf("could not read port: %+v", err)
	}
	if v != 0xab {
		t.Fatalf("invalid port value: got=0x%x, want=0xab", v)
	}
}

func TestMuxCascade(t *testing.T) {
	mux, fb := newTestMux(t)

	if _, err := mux.Ctl("CTR01", CascadeLink, Args{Peer: "CTR02"}); err != nil {
		t.Fatalf("could not cascade: %+v", err)
	}
	mode := testMode()
	if _, err := mux.Ctl("CTR01", SetMode, Args{Mode: &mode}); err != nil {
		t.Fatalf("could not set pair mode: %+v", err)
	}
	if _, err := mux.Ctl("CTR01", Load, Args{Val: 0x0002_0005}); err != nil {
		t.Fatalf("could not load pair: %+v", err)
	}
	v, err := mux.Ctl("CTR01", ReadCount, Args{})
	if err != nil {
		t.Fatalf("could not read pair: %+v", err)
	}
	if v != 0x0002_0005 {
		t.Fatalf("invalid 32-bit count: got=0x%08x", v)
	}

	// the high half is subsumed
	if _, err := mux.Ctl("CTR02", ReadCount, Args{}); !errors.Is(err, ctr.ErrInvalidState) {
		t.Fatalf("read of subsumed counter: got=%+v, want=%+v", err, ctr.ErrInvalidState)
	}

	// cross-board and non-counter peers are rejected up front
	if _, err := mux.Ctl("CTR03", CascadeLink, Args{Peer: "CTR14"}); !errors.Is(err, ctr.ErrInvalidTopology) {
		t.Fatalf("cross-board cascade: got=%+v, want=%+v", err, ctr.ErrInvalidTopology)
	}
	if _, err := mux.Ctl("CTR03", CascadeLink, Args{Peer: "DIO0A"}); !errors.Is(err, ctr.ErrInvalidTopology) {
		t.Fatalf("cascade into DIO: got=%+v, want=%+v", err, ctr.ErrInvalidTopology)
	}

	_ = fb
}

func TestMuxErrors(t *testing.T) {
	mux, _ := newTestMux(t)

	if _, err := mux.Open("CTR11"); !errors.Is(err, ctr.ErrNoSuchChannel) {
		t.Fatalf("open of absent board: got=%+v, want=%+v", err, ctr.ErrNoSuchChannel)
	}
	if _, err := mux.Open("CTR0x"); !errors.Is(err, ctr.ErrNoSuchChannel) {
		t.Fatalf("open of bad name: got=%+v, want=%+v", err, ctr.ErrNoSuchChannel)
	}

	// kind/op mismatches
	if _, err := mux.Ctl("DIO0A", Start, Args{}); !errors.Is(err, ErrInvalidOp) {
		t.Fatalf("counter op on DIO: got=%+v, want=%+v", err, ErrInvalidOp)
	}
	if _, err := mux.Ctl("CTR01", ReadPort, Args{}); !errors.Is(err, ErrInvalidOp) {
		t.Fatalf("DIO op on counter: got=%+v, want=%+v", err, ErrInvalidOp)
	}
	if _, err := mux.Ctl("CTR01", SetMode, Args{}); !errors.Is(err, ErrInvalidOp) {
		t.Fatalf("set-mode without mode: got=%+v, want=%+v", err, ErrInvalidOp)
	}

	// driver errors come back verbatim
	if _, err := mux.Ctl("CTR01", Start, Args{}); !errors.Is(err, ctr.ErrInvalidState) {
		t.Fatalf("start of unconfigured counter: got=%+v, want=%+v", err, ctr.ErrInvalidState)
	}
}
