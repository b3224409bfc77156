// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"fmt"
	"io"
	"log"
)

// Model identifies a board of the PCI-CTR family by its PCI device ID.
type Model uint16

const (
	CTR05 Model = 0x0018 // one chip, 5 counters, 1 DIO port
	CTR10 Model = 0x006d // two chips, 10 counters, 2 DIO ports
)

func (m Model) String() string {
	switch m {
	case CTR05:
		return "PCI-CTR05"
	case CTR10:
		return "PCI-CTR10"
	}
	return fmt.Sprintf("unknown (0x%04x)", uint16(m))
}

// NumChips returns the number of counter/timer chips of the model.
func (m Model) NumChips() int {
	switch m {
	case CTR10:
		return 2
	default:
		return 1
	}
}

// BoardInfo describes one physical board to Attach: its model and its
// mapped register window. Addr is informative (the PCI address).
type BoardInfo struct {
	Model Model
	RW    PortIO
	Addr  string
}

// Board owns the chips, counters and DIO ports of one physical board
// for the lifetime of the process. Resources are created at attach
// time and never added or removed afterwards.
type Board struct {
	msg   *log.Logger
	id    int
	model Model
	addr  string

	rw    PortIO
	chips []*Chip
	ctrs  []*Counter // counter N at index N-1
	dios  []*DIO
}

func newBoard(id int, info BoardInfo, msg *log.Logger) *Board {
	brd := &Board{
		msg:   msg,
		id:    id,
		model: info.Model,
		addr:  info.Addr,
		rw:    info.RW,
	}
	for slot := 0; slot < info.Model.NumChips(); slot++ {
		chip := newChip(info.RW, slot, msg)
		brd.chips = append(brd.chips, chip)
		for i := 1; i <= NumCounters; i++ {
			id := slot*NumCounters + i
			brd.ctrs = append(brd.ctrs, newCounter(chip, id, i))
		}
		brd.dios = append(brd.dios, newDIO(chip, slot))
	}
	return brd
}

// init master-resets every chip of the board.
func (brd *Board) init() error {
	for slot := range brd.chips {
		err := brd.ResetChip(slot)
		if err != nil {
			return fmt.Errorf("ctr: could not reset chip %d of board %d: %w",
				slot, brd.id, err)
		}
	}
	return nil
}

// ID returns the board enumeration index assigned at attach time.
func (brd *Board) ID() int { return brd.id }

// Model returns the board model.
func (brd *Board) Model() Model { return brd.model }

// Addr returns the bus address of the board, when known.
func (brd *Board) Addr() string { return brd.addr }

// NumCounters returns the number of counters of the board.
func (brd *Board) NumCounters() int { return len(brd.ctrs) }

// NumDIOs returns the number of DIO ports of the board.
func (brd *Board) NumDIOs() int { return len(brd.dios) }

// Counter returns counter idx (1-based, counters of chip 0 first).
func (brd *Board) Counter(idx int) (*Counter, error) {
	if idx < 1 || idx > len(brd.ctrs) {
		return nil, fmt.Errorf("ctr: board %d has no counter %d: %w",
			brd.id, idx, ErrNoSuchChannel)
	}
	return brd.ctrs[idx-1], nil
}

// DIO returns DIO port idx (0-based, port A of chip 0 first).
func (brd *Board) DIO(idx int) (*DIO, error) {
	if idx < 0 || idx >= len(brd.dios) {
		return nil, fmt.Errorf("ctr: board %d has no DIO port %d: %w",
			brd.id, idx, ErrNoSuchChannel)
	}
	return brd.dios[idx], nil
}

// ResetChip master-resets chip slot and the driver state of its
// counters and DIO port. Sibling chips are not touched.
func (brd *Board) ResetChip(slot int) error {
	if slot < 0 || slot >= len(brd.chips) {
		return fmt.Errorf("ctr: board %d has no chip %d: %w",
			brd.id, slot, ErrNoSuchChannel)
	}
	chip := brd.chips[slot]

	chip.mu.Lock()
	defer chip.mu.Unlock()

	err := chip.resetLocked()
	if err != nil {
		return err
	}
	for _, c := range brd.ctrs {
		if c.chip == chip {
			c.clearLocked()
		}
	}
	for _, p := range brd.dios {
		if p.chip == chip {
			p.dir = 0
			p.out = 0
		}
	}
	return nil
}

// MasterReset returns the whole board to power-on defaults.
func (brd *Board) MasterReset() error {
	return brd.init()
}

// Close releases the register window of the board.
func (brd *Board) Close() error {
	if c, ok := brd.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
