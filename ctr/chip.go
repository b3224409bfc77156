// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/go-daq/pcictr/ctr/internal/regs"
)

// PortIO gives byte-level access to a board register window, usually a
// memory-mapped PCI BAR.
type PortIO interface {
	io.ReaderAt
	io.WriterAt
}

// RegKind selects one of the per-counter registers of a chip.
type RegKind uint8

const (
	RegMode RegKind = iota
	RegLoad
	RegHold
	RegAlarm
)

func (k RegKind) String() string {
	switch k {
	case RegMode:
		return "mode"
	case RegLoad:
		return "load"
	case RegHold:
		return "hold"
	case RegAlarm:
		return "alarm"
	}
	return "invalid"
}

const (
	ackAttempts = 100
	ackDelay    = 1 * time.Microsecond
)

// Chip drives one counter/timer chip. All register traffic to the chip
// funnels through its mutex: a register access is a multi-step protocol
// (select, then transfer) on ports shared by all five counters and the
// DIO port, and an interleaved access would corrupt the selection.
type Chip struct {
	mu   sync.Mutex
	rw   PortIO
	base int64 // offset of the chip window inside the board window
	slot int   // chip index on its board
	msg  *log.Logger
}

func newChip(rw PortIO, slot int, msg *log.Logger) *Chip {
	return &Chip{
		rw:   rw,
		base: int64(slot * regs.ChipSpan),
		slot: slot,
		msg:  msg,
	}
}

// Slot returns the index of the chip on its board.
func (chip *Chip) Slot() int { return chip.slot }

func (chip *Chip) inp(port int64) (uint8, error) {
	var buf [1]byte
	_, err := chip.rw.ReadAt(buf[:], chip.base+port)
	if err != nil {
		return 0, fmt.Errorf("ctr: could not read port 0x%x of chip %d: %w", port, chip.slot, err)
	}
	return buf[0], nil
}

func (chip *Chip) outp(port int64, v uint8) error {
	_, err := chip.rw.WriteAt([]byte{v}, chip.base+port)
	if err != nil {
		return fmt.Errorf("ctr: could not write port 0x%x of chip %d: %w", port, chip.slot, err)
	}
	return nil
}

// wait polls the status port until the chip acknowledges the last
// transfer. Chips of this family have no interrupt-driven handshake
// for register access, so a bounded spin-wait models the acknowledge.
func (chip *Chip) wait() error {
	for i := 0; i < ackAttempts; i++ {
		st, err := chip.inp(regs.PortCmd)
		if err != nil {
			return err
		}
		if st&regs.StatusBusy == 0 {
			return nil
		}
		time.Sleep(ackDelay)
	}
	return fmt.Errorf("ctr: chip %d did not acknowledge: %w", chip.slot, ErrHardwareBusy)
}

// command issues one opcode on the command port.
// Callers hold chip.mu.
func (chip *Chip) command(cmd uint8) error {
	err := chip.outp(regs.PortCmd, cmd)
	if err != nil {
		return err
	}
	return chip.wait()
}

// point loads the chip data pointer with the register selection for
// counter idx. Every transaction re-points explicitly, so a failed one
// never leaves a selection behind that a later transaction would
// silently reuse. Callers hold chip.mu.
func (chip *Chip) point(idx int, kind RegKind) error {
	var sel uint8
	switch kind {
	case RegMode:
		sel = regs.ElemMode | uint8(idx)
	case RegLoad:
		sel = regs.ElemLoad | uint8(idx)
	case RegHold:
		sel = regs.ElemHold | uint8(idx)
	case RegAlarm:
		sel = regs.ElemAlarm1 | regs.GrpCtrl
		if idx == 2 {
			sel = regs.ElemAlarm2 | regs.GrpCtrl
		}
	default:
		return fmt.Errorf("ctr: invalid register kind %d", kind)
	}
	return chip.command(regs.CmdLoadPtr | sel)
}

// writeReg writes the 16-bit register (idx, kind), LSB first through
// the 8-bit data port. Callers hold chip.mu.
func (chip *Chip) writeReg(idx int, kind RegKind, v uint16) error {
	err := chip.point(idx, kind)
	if err != nil {
		return err
	}
	for _, b := range []uint8{uint8(v), uint8(v >> 8)} {
		err = chip.outp(regs.PortData, b)
		if err != nil {
			return err
		}
		err = chip.wait()
		if err != nil {
			return err
		}
	}
	return nil
}

// readReg reads the 16-bit register (idx, kind). Callers hold chip.mu.
func (chip *Chip) readReg(idx int, kind RegKind) (uint16, error) {
	err := chip.point(idx, kind)
	if err != nil {
		return 0, err
	}
	lo, err := chip.inp(regs.PortData)
	if err != nil {
		return 0, err
	}
	hi, err := chip.inp(regs.PortData)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// latch freezes the live count of the counters in mask (counter 1 in
// bit 0) into their hold registers without disturbing counting.
// Callers hold chip.mu.
func (chip *Chip) latch(mask uint8) error {
	return chip.command(regs.CmdSave | mask)
}

func cmdLoad(mask uint8) uint8   { return regs.CmdLoad | mask }
func cmdArm(mask uint8) uint8    { return regs.CmdArm | mask }
func cmdDisarm(mask uint8) uint8 { return regs.CmdDisarm | mask }

// status returns the chip status register. Callers hold chip.mu.
func (chip *Chip) status() (uint8, error) {
	return chip.inp(regs.PortCmd)
}

// resetLocked puts the chip and its DIO port back to power-on
// defaults. Callers hold chip.mu.
func (chip *Chip) resetLocked() error {
	err := chip.command(regs.CmdReset)
	if err != nil {
		return err
	}
	// master mode: FOUT off, 8-bit bus
	err = chip.command(regs.CmdLoadPtr | regs.ElemMaster | regs.GrpCtrl)
	if err != nil {
		return err
	}
	master := uint16(regs.MasterDefault)
	for _, b := range []uint8{uint8(master), uint8(master >> 8)} {
		err = chip.outp(regs.PortData, b)
		if err != nil {
			return err
		}
		err = chip.wait()
		if err != nil {
			return err
		}
	}
	for _, alarm := range []int{1, 2} {
		err = chip.writeReg(alarm, RegAlarm, 0)
		if err != nil {
			return err
		}
	}
	// all DIO lines back to inputs, latches cleared
	for _, port := range []int64{
		regs.PortDirA, regs.PortDirB, regs.PortDirC,
		regs.PortA, regs.PortB, regs.PortC,
	} {
		err = chip.outp(port, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteRegister selects the register (idx, kind) and writes v to it.
func (chip *Chip) WriteRegister(idx int, kind RegKind, v uint16) error {
	if kind != RegAlarm && (idx < 1 || idx > NumCounters) {
		return fmt.Errorf("ctr: invalid counter index %d on chip %d", idx, chip.slot)
	}
	chip.mu.Lock()
	defer chip.mu.Unlock()
	return chip.writeReg(idx, kind, v)
}

// ReadRegister selects the register (idx, kind) and reads it back.
// Reading a hold register does not latch; use ReadCount for a
// consistent snapshot of a running counter.
func (chip *Chip) ReadRegister(idx int, kind RegKind) (uint16, error) {
	if kind != RegAlarm && (idx < 1 || idx > NumCounters) {
		return 0, fmt.Errorf("ctr: invalid counter index %d on chip %d", idx, chip.slot)
	}
	chip.mu.Lock()
	defer chip.mu.Unlock()
	return chip.readReg(idx, kind)
}

// ReadCount latches the live count of counter idx and returns it.
// The latch command and the hold-register read form one critical
// section, so two concurrent latches on the same chip can not mix.
func (chip *Chip) ReadCount(idx int) (uint16, error) {
	if idx < 1 || idx > NumCounters {
		return 0, fmt.Errorf("ctr: invalid counter index %d on chip %d", idx, chip.slot)
	}
	chip.mu.Lock()
	defer chip.mu.Unlock()
	err := chip.latch(1 << (idx - 1))
	if err != nil {
		return 0, err
	}
	return chip.readReg(idx, RegHold)
}

// MasterReset resets all counters and the DIO port of this chip to
// power-on defaults. Sibling chips are not touched.
func (chip *Chip) MasterReset() error {
	chip.mu.Lock()
	defer chip.mu.Unlock()
	return chip.resetLocked()
}
