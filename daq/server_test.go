// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/go-daq/tdaq"
	tdaqlog "github.com/go-daq/tdaq/log"

	"github.com/go-daq/pcictr/confdb"
	"github.com/go-daq/pcictr/ctr"
	"github.com/go-daq/pcictr/ctr/ctrtest"
)

func testCtx() tdaq.Context {
	return tdaq.Context{
		Ctx: context.Background(),
		Msg: tdaqlog.NewMsgStream("daq-test", tdaqlog.LvlError, io.Discard),
	}
}

func testSetup() confdb.Setup {
	return confdb.Setup{
		Name: "test",
		Channels: []confdb.Channel{
			{
				Board: 0, Counter: 1,
				Mode: ctr.Mode{
					Source: ctr.SourceF1,
					Dir:    ctr.Down,
					Gate:   ctr.GateNone,
					Output: ctr.OutputPulse,
					Repeat: true,
				},
				Load: 1000,
			},
			{
				Board: 0, Counter: 2,
				Mode: ctr.Mode{
					Source: ctr.SourcePin2,
					Dir:    ctr.Down,
					Gate:   ctr.GateNone,
					Output: ctr.OutputPulse,
					Repeat: true,
				},
				Load: 500,
			},
		},
	}
}

func TestServer(t *testing.T) {
	var (
		tctx = testCtx()
		fb   = ctrtest.NewBoard(1)
		srv  = New(
			WithBoards(ctr.BoardInfo{Model: ctr.CTR05, RW: fb, Addr: "fake"}),
			WithSetup(testSetup()),
			WithPeriod(10*time.Millisecond),
		)
	)

	err := srv.OnConfig(tctx, nil, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not configure: %+v", err)
	}
	err = srv.OnInit(tctx, nil, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not init: %+v", err)
	}

	c1, err := srv.tab.Counter(0, 1)
	if err != nil {
		t.Fatalf("could not get counter 1: %+v", err)
	}
	if got := c1.State(); got != ctr.Armed {
		t.Fatalf("invalid state after init: %v", got)
	}

	err = srv.OnStart(tctx, nil, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not start: %+v", err)
	}
	if got := c1.State(); got != ctr.Running {
		t.Fatalf("invalid state after start: %v", got)
	}

	fb.Tick(0, 400)
	err = srv.sample(tctx)
	if err != nil {
		t.Fatalf("could not sample: %+v", err)
	}

	var frame tdaq.Frame
	err = srv.Counts(tctx, &frame)
	if err != nil {
		t.Fatalf("could not fetch counts frame: %+v", err)
	}
	var sample Sample
	err = json.Unmarshal(frame.Body, &sample)
	if err != nil {
		t.Fatalf("could not decode sample: %+v", err)
	}
	if got, want := sample.Counts["CTR01"], uint32(600); got != want {
		t.Fatalf("invalid CTR01 count: got=%d, want=%d", got, want)
	}
	if got, want := sample.Counts["CTR02"], uint32(100); got != want {
		t.Fatalf("invalid CTR02 count: got=%d, want=%d", got, want)
	}

	err = srv.OnStop(tctx, nil, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not stop: %+v", err)
	}
	if got := c1.State(); got != ctr.Halted {
		t.Fatalf("invalid state after stop: %v", got)
	}

	// a stopped server samples nothing
	err = srv.sample(tctx)
	if err != nil {
		t.Fatalf("could not sample stopped server: %+v", err)
	}
	select {
	case raw := <-srv.data:
		t.Fatalf("unexpected sample: %s", raw)
	default:
	}

	err = srv.OnQuit(tctx, nil, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not quit: %+v", err)
	}
}

func TestServerNoChannels(t *testing.T) {
	srv := New(
		WithBoards(ctr.BoardInfo{Model: ctr.CTR05, RW: ctrtest.NewBoard(1), Addr: "fake"}),
	)
	err := srv.OnConfig(testCtx(), nil, tdaq.Frame{})
	if err == nil {
		t.Fatal("expected an error")
	}
}
