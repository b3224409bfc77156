// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"fmt"
	"log"
	"os"
)

// Option configures the attach procedure.
type Option func(*config)

type config struct {
	msg    *log.Logger
	boards []BoardInfo
	sysfs  string
}

func newConfig() config {
	return config{
		msg:   log.New(os.Stdout, "ctr: ", 0),
		sysfs: "/sys/bus/pci/devices",
	}
}

// WithLogger sets the logger used by the resource table and its
// boards.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithBoards bypasses PCI discovery and attaches the given boards
// instead, in order.
func WithBoards(boards ...BoardInfo) Option {
	return func(cfg *config) {
		cfg.boards = boards
	}
}

// WithSysfsRoot overrides the sysfs PCI device directory scanned
// during discovery.
func WithSysfsRoot(dir string) Option {
	return func(cfg *config) {
		cfg.sysfs = dir
	}
}

// Table is the resource table of all attached boards. It is populated
// once by Attach and read-only afterwards: the mapping from
// (board, kind, index) to a resource is fixed for the life of the
// process.
type Table struct {
	msg    *log.Logger
	boards []*Board
}

// Attach discovers the PCI counter/timer boards of the host, builds
// their resource objects and master-resets every chip. Boards are
// indexed in discovery order.
func Attach(opts ...Option) (*Table, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	infos := cfg.boards
	if infos == nil {
		var err error
		infos, err = discover(cfg.sysfs)
		if err != nil {
			return nil, fmt.Errorf("ctr: could not discover boards: %w", err)
		}
	}
	if len(infos) > MaxBoards {
		return nil, fmt.Errorf("ctr: found %d boards, at most %d supported",
			len(infos), MaxBoards)
	}

	tab := &Table{msg: cfg.msg}
	for i, info := range infos {
		brd := newBoard(i, info, cfg.msg)
		err := brd.init()
		if err != nil {
			_ = tab.Close()
			_ = brd.Close()
			return nil, err
		}
		cfg.msg.Printf("board %d: %v (%d counters, %d DIO ports) at %q",
			i, brd.Model(), brd.NumCounters(), brd.NumDIOs(), brd.Addr(),
		)
		tab.boards = append(tab.boards, brd)
	}
	return tab, nil
}

// NumBoards returns the number of attached boards.
func (tab *Table) NumBoards() int { return len(tab.boards) }

// Board returns board idx.
func (tab *Table) Board(idx int) (*Board, error) {
	if idx < 0 || idx >= len(tab.boards) {
		return nil, fmt.Errorf("ctr: no board %d (%d attached): %w",
			idx, len(tab.boards), ErrNoSuchChannel)
	}
	return tab.boards[idx], nil
}

// Counter returns counter idx of board brd.
func (tab *Table) Counter(brd, idx int) (*Counter, error) {
	b, err := tab.Board(brd)
	if err != nil {
		return nil, err
	}
	return b.Counter(idx)
}

// DIO returns DIO port idx of board brd.
func (tab *Table) DIO(brd, idx int) (*DIO, error) {
	b, err := tab.Board(brd)
	if err != nil {
		return nil, err
	}
	return b.DIO(idx)
}

// Lookup resolves the (board, kind, index) triple to its resource.
func (tab *Table) Lookup(brd int, kind Kind, idx int) (Resource, error) {
	switch kind {
	case KindCounter:
		return tab.Counter(brd, idx)
	case KindDIO:
		return tab.DIO(brd, idx)
	}
	return nil, fmt.Errorf("ctr: unknown channel kind %d: %w", kind, ErrNoSuchChannel)
}

// Close releases the register windows of all boards.
func (tab *Table) Close() error {
	var first error
	for _, brd := range tab.boards {
		err := brd.Close()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
