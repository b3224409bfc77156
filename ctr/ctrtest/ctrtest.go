// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctrtest provides a fake counter/timer board for tests. The
// fake speaks the chip register protocol (data pointer, byte pointer,
// command decode) over the PortIO byte transport and carries a crude
// counting model driven by Tick.
package ctrtest // import "github.com/go-daq/pcictr/ctr/ctrtest"

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-daq/pcictr/ctr/internal/regs"
)

// Op is one logged port access of a fake chip. Status reads on the
// command port are not logged, only the protocol-carrying traffic.
type Op struct {
	Port int64
	Val  uint8
	Read bool
}

// Chip emulates one counter/timer chip. Register arrays are 1-based,
// indexed by counter number.
type Chip struct {
	group uint8 // selected data-pointer group
	elem  uint8 // selected element
	bp    int   // byte pointer: 0 = LSB next

	Mode  [regs.NumCounters + 1]uint16
	Load  [regs.NumCounters + 1]uint16
	Hold  [regs.NumCounters + 1]uint16
	Count [regs.NumCounters + 1]uint16
	Armed [regs.NumCounters + 1]bool

	Alarm  [3]uint16
	Master uint16

	Ports [3]uint8 // DIO output latches
	Pins  [3]uint8 // simulated input pin levels
	Dirs  [3]uint8

	Log []Op
}

// Board implements the PortIO byte transport for a board of one or two
// fake chips.
type Board struct {
	mu    sync.Mutex
	Chips []*Chip
	Busy  bool // when set, every status read reports busy
}

// NewBoard returns a fake board of nchips chips.
func NewBoard(nchips int) *Board {
	fb := &Board{}
	for i := 0; i < nchips; i++ {
		fb.Chips = append(fb.Chips, &Chip{})
	}
	return fb
}

func (fb *Board) at(off int64) (*Chip, int64, error) {
	slot := off / regs.ChipSpan
	if slot < 0 || slot >= int64(len(fb.Chips)) {
		return nil, 0, fmt.Errorf("ctrtest: offset 0x%x out of range", off)
	}
	return fb.Chips[slot], off % regs.ChipSpan, nil
}

func (fb *Board) ReadAt(p []byte, off int64) (int, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fc, port, err := fb.at(off)
	if err != nil {
		return 0, err
	}
	if len(p) != 1 {
		return 0, fmt.Errorf("ctrtest: read of %d bytes at 0x%x", len(p), off)
	}

	switch port {
	case regs.PortCmd:
		if fb.Busy {
			p[0] = regs.StatusBusy
			return 1, nil
		}
		var st uint8
		if fc.bp == 0 {
			st |= regs.StatusBP
		}
		p[0] = st
		return 1, nil
	case regs.PortData:
		fc.Log = append(fc.Log, Op{Port: port, Read: true})
		v := fc.selected()
		b := uint8(*v)
		if fc.bp == 1 {
			b = uint8(*v >> 8)
		}
		fc.bp = 1 - fc.bp
		p[0] = b
		return 1, nil
	case regs.PortA, regs.PortB, regs.PortC:
		i := port - regs.PortA
		p[0] = fc.Ports[i]&fc.Dirs[i] | fc.Pins[i]&^fc.Dirs[i]
		return 1, nil
	case regs.PortDirA, regs.PortDirB, regs.PortDirC:
		p[0] = fc.Dirs[port-regs.PortDirA]
		return 1, nil
	}
	return 0, fmt.Errorf("ctrtest: read of invalid port 0x%x", port)
}

func (fb *Board) WriteAt(p []byte, off int64) (int, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fc, port, err := fb.at(off)
	if err != nil {
		return 0, err
	}
	if len(p) != 1 {
		return 0, fmt.Errorf("ctrtest: write of %d bytes at 0x%x", len(p), off)
	}
	v := p[0]

	switch port {
	case regs.PortCmd:
		fc.Log = append(fc.Log, Op{Port: port, Val: v})
		fc.command(v)
		return 1, nil
	case regs.PortData:
		fc.Log = append(fc.Log, Op{Port: port, Val: v})
		reg := fc.selected()
		if fc.bp == 0 {
			*reg = *reg&0xff00 | uint16(v)
		} else {
			*reg = *reg&0x00ff | uint16(v)<<8
		}
		fc.bp = 1 - fc.bp
		return 1, nil
	case regs.PortA, regs.PortB, regs.PortC:
		fc.Ports[port-regs.PortA] = v
		return 1, nil
	case regs.PortDirA, regs.PortDirB, regs.PortDirC:
		fc.Dirs[port-regs.PortDirA] = v
		return 1, nil
	}
	return 0, fmt.Errorf("ctrtest: write of invalid port 0x%x", port)
}

// selected returns the register addressed by the current data pointer.
func (fc *Chip) selected() *uint16 {
	if fc.group >= 1 && fc.group <= regs.NumCounters {
		i := fc.group
		switch fc.elem {
		case 0:
			return &fc.Mode[i]
		case 1:
			return &fc.Load[i]
		default:
			return &fc.Hold[i]
		}
	}
	// control group
	switch fc.elem {
	case 0:
		return &fc.Alarm[1]
	case 1:
		return &fc.Alarm[2]
	default:
		return &fc.Master
	}
}

func (fc *Chip) command(cmd uint8) {
	switch {
	case cmd == regs.CmdReset:
		*fc = Chip{Log: fc.Log}
	case cmd < 0x20: // load data pointer
		fc.group = cmd & 0x7
		fc.elem = cmd >> 3 & 0x3
		fc.bp = 0
	case cmd >= regs.CmdDisarm:
		fc.each(cmd, func(i int) { fc.Armed[i] = false })
	case cmd >= regs.CmdSave:
		fc.each(cmd, func(i int) { fc.Hold[i] = fc.Count[i] })
	case cmd >= regs.CmdDisarmSave:
		fc.each(cmd, func(i int) {
			fc.Hold[i] = fc.Count[i]
			fc.Armed[i] = false
		})
	case cmd >= regs.CmdLoadArm:
		fc.each(cmd, func(i int) {
			fc.Count[i] = fc.Load[i]
			fc.Armed[i] = true
		})
	case cmd >= regs.CmdLoad:
		fc.each(cmd, func(i int) { fc.Count[i] = fc.Load[i] })
	default: // arm
		fc.each(cmd, func(i int) { fc.Armed[i] = true })
	}
}

func (fc *Chip) each(cmd uint8, f func(i int)) {
	for i := 1; i <= regs.NumCounters; i++ {
		if cmd>>(i-1)&1 == 1 {
			f(i)
		}
	}
}

// Tick feeds n source edges to every armed counter of chip slot whose
// source is not the cascade input, propagating terminal counts into
// cascaded neighbours.
func (fb *Board) Tick(slot, n int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fc := fb.Chips[slot]
	for k := 0; k < n; k++ {
		for i := 1; i <= regs.NumCounters; i++ {
			src := fc.Mode[i] >> regs.ShiftSrc & 0xf
			if fc.Armed[i] && src != regs.SrcTC {
				fc.edge(i)
			}
		}
	}
}

// edge applies one count edge to counter i. A one-shot counter parks
// at terminal count; a repeating counter reloads from its load
// register on the edge after terminal count, propagating a carry into
// a cascaded neighbour.
func (fc *Chip) edge(i int) {
	up := fc.Mode[i]&regs.ModeCountUp != 0
	repeat := fc.Mode[i]&regs.ModeRepeat != 0

	if up {
		fc.Count[i]++
		if fc.Count[i] == 0 { // wrapped through terminal count
			if !repeat {
				fc.Armed[i] = false
			}
			fc.carry(i)
		}
		return
	}

	if fc.Count[i] == 0 { // counting through terminal count
		if !repeat {
			fc.Armed[i] = false
			return
		}
		fc.Count[i] = fc.Load[i]
		fc.carry(i)
		return
	}
	fc.Count[i]--
	if fc.Count[i] == 0 && !repeat {
		fc.Armed[i] = false // parked at terminal count
	}
}

// carry feeds the terminal-count rollover of counter i into the
// adjacent counter when that one listens to our TC.
func (fc *Chip) carry(i int) {
	if i >= regs.NumCounters {
		return
	}
	next := i + 1
	src := fc.Mode[next] >> regs.ShiftSrc & 0xf
	if fc.Armed[next] && src == regs.SrcTC {
		fc.edge(next)
	}
}

// CheckSerial verifies that the logged protocol traffic of the chip is
// a valid serialization: a data-pointer load is followed by at most two
// data transfers before the next command, and no data transfer happens
// without a selection.
func (fc *Chip) CheckSerial(tb testing.TB) {
	tb.Helper()
	budget := 0
	for k, op := range fc.Log {
		switch op.Port {
		case regs.PortCmd:
			if op.Val < 0x20 {
				budget = 2
			} else {
				budget = 0
			}
		case regs.PortData:
			budget--
			if budget < 0 {
				tb.Fatalf("interleaved register transaction at op %d: %+v", k, fc.Log[:k+1])
			}
		}
	}
}
