// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq exposes the counter/timer boards as a TDAQ process: the
// usual /config /init /start /stop command handlers drive the board
// table, and latched counts are published periodically on an output
// stream.
package daq // import "github.com/go-daq/pcictr/daq"

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-daq/tdaq"

	"github.com/go-daq/pcictr/confdb"
	"github.com/go-daq/pcictr/ctr"
	"github.com/go-daq/pcictr/mux"
)

// Option configures a Server.
type Option func(*Server)

// WithBoards bypasses PCI discovery and attaches the given boards.
func WithBoards(boards ...ctr.BoardInfo) Option {
	return func(srv *Server) {
		srv.boards = boards
	}
}

// WithSetup uses a fixed channel setup instead of the conditions DB.
func WithSetup(setup confdb.Setup) Option {
	return func(srv *Server) {
		srv.setup = setup
	}
}

// WithConfigDB fetches the named setup from the conditions database
// during /config.
func WithConfigDB(dbname, setup string) Option {
	return func(srv *Server) {
		srv.dbname = dbname
		srv.preset = setup
	}
}

// WithPeriod sets the sampling period of the counts stream.
func WithPeriod(period time.Duration) Option {
	return func(srv *Server) {
		srv.period = period
	}
}

// Server is the TDAQ front-end of the counter/timer boards.
type Server struct {
	mu      sync.Mutex
	running bool

	boards []ctr.BoardInfo // when nil, discover over PCI
	setup  confdb.Setup
	dbname string
	preset string
	period time.Duration

	tab *ctr.Table
	dev *mux.Mux

	n    int
	data chan []byte
}

// New returns a TDAQ server for the counter/timer boards.
func New(opts ...Option) *Server {
	srv := &Server{
		period: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Sample is one published reading of all configured channels.
type Sample struct {
	Time   time.Time         `json:"time"`
	Counts map[string]uint32 `json:"counts"`
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.tab == nil {
		var opts []ctr.Option
		if srv.boards != nil {
			opts = append(opts, ctr.WithBoards(srv.boards...))
		}
		tab, err := ctr.Attach(opts...)
		if err != nil {
			ctx.Msg.Errorf("could not attach boards: %+v", err)
			return fmt.Errorf("daq: could not attach boards: %w", err)
		}
		srv.tab = tab
		srv.dev = mux.New(tab)
	}
	for i := 0; i < srv.tab.NumBoards(); i++ {
		brd, _ := srv.tab.Board(i)
		ctx.Msg.Infof("board %d: %v (%d counters) at %q",
			i, brd.Model(), brd.NumCounters(), brd.Addr())
	}

	if srv.dbname != "" {
		db, err := confdb.Open(srv.dbname)
		if err != nil {
			ctx.Msg.Errorf("could not open config db: %+v", err)
			return fmt.Errorf("daq: could not open config db: %w", err)
		}
		defer db.Close()
		setup, err := db.Setup(ctx.Ctx, srv.preset)
		if err != nil {
			ctx.Msg.Errorf("could not fetch setup %q: %+v", srv.preset, err)
			return fmt.Errorf("daq: could not fetch setup %q: %w", srv.preset, err)
		}
		srv.setup = setup
	}

	if len(srv.setup.Channels) == 0 {
		return fmt.Errorf("daq: no channels configured")
	}
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return srv.initialize(ctx)
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return srv.initialize(ctx)
}

func (srv *Server) initialize(ctx tdaq.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.tab == nil {
		return fmt.Errorf("daq: boards not configured")
	}
	for i := 0; i < srv.tab.NumBoards(); i++ {
		brd, _ := srv.tab.Board(i)
		err := brd.MasterReset()
		if err != nil {
			ctx.Msg.Errorf("could not reset board %d: %+v", i, err)
			return fmt.Errorf("daq: could not reset board %d: %w", i, err)
		}
	}
	err := srv.setup.Apply(srv.dev)
	if err != nil {
		ctx.Msg.Errorf("could not apply setup %q: %+v", srv.setup.Name, err)
		return fmt.Errorf("daq: could not apply setup %q: %w", srv.setup.Name, err)
	}

	srv.running = false
	srv.n = 0
	srv.data = make(chan []byte, 128)
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	for _, ch := range srv.setup.Channels {
		_, err := srv.dev.Ctl(ch.Name(), mux.Start, mux.Args{})
		if err != nil {
			ctx.Msg.Errorf("could not start %q: %+v", ch.Name(), err)
			return fmt.Errorf("daq: could not start %q: %w", ch.Name(), err)
		}
	}
	srv.running = true
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.running = false
	for _, ch := range srv.setup.Channels {
		_, err := srv.dev.Ctl(ch.Name(), mux.Stop, mux.Args{})
		switch {
		case err == nil:
		case errors.Is(err, ctr.ErrInvalidState):
			// a one-shot channel that hit terminal count already halted
		default:
			ctx.Msg.Errorf("could not stop %q: %+v", ch.Name(), err)
			return fmt.Errorf("daq: could not stop %q: %w", ch.Name(), err)
		}
	}
	ctx.Msg.Debugf("received /stop command... -> n=%d", srv.n)
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.tab == nil {
		return nil
	}
	err := srv.tab.Close()
	srv.tab = nil
	return err
}

// Counts is the output handler publishing sampled counts.
func (srv *Server) Counts(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// Run is the run-loop handler sampling the configured channels.
func (srv *Server) Run(ctx tdaq.Context) error {
	tick := time.NewTicker(srv.period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tick.C:
			err := srv.sample(ctx)
			if err != nil {
				ctx.Msg.Errorf("could not sample counts: %+v", err)
			}
		}
	}
}

// sample latches every configured channel and queues one Sample on the
// output stream. Samples are dropped when the stream backs up.
func (srv *Server) sample(ctx tdaq.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if !srv.running {
		return nil
	}

	counts := make(map[string]uint32, len(srv.setup.Channels))
	for _, ch := range srv.setup.Channels {
		v, err := srv.dev.Ctl(ch.Name(), mux.ReadCount, mux.Args{})
		if err != nil {
			return fmt.Errorf("daq: could not read %q: %w", ch.Name(), err)
		}
		counts[ch.Name()] = v
	}

	raw, err := json.Marshal(Sample{Time: time.Now().UTC(), Counts: counts})
	if err != nil {
		return fmt.Errorf("daq: could not marshal sample: %w", err)
	}
	select {
	case srv.data <- raw:
		srv.n++
	default:
	}
	return nil
}
