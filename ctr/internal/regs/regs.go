// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register-level protocol constants of the
// Am9513A-style system timing controller used by the PCI-CTR board
// family.
package regs // import "github.com/go-daq/pcictr/ctr/internal/regs"

// Per-chip port window inside the board register space.
// Each chip occupies an 8-byte slot.
const (
	// NumCounters is the number of counters per chip.
	NumCounters = 5

	ChipSpan = 8

	PortData = 0x0 // 8-bit data port, 16-bit registers go LSB first
	PortCmd  = 0x1 // command port; reads return the status register
	PortA    = 0x2 // DIO bits 0-7 latch
	PortB    = 0x3 // DIO bits 8-15 latch
	PortC    = 0x4 // DIO bits 16-23 latch
	PortDirA = 0x5 // DIO direction latches, 1 = output
	PortDirB = 0x6
	PortDirC = 0x7
)

// Command opcodes. Counter masks are 5-bit, counter 1 in bit 0.
const (
	CmdLoadPtr    = 0x00 // | element | group
	CmdArm        = 0x20 // | mask
	CmdLoad       = 0x40 // | mask, transfer load register into counter
	CmdLoadArm    = 0x60 // | mask
	CmdDisarmSave = 0x80 // | mask
	CmdSave       = 0xa0 // | mask, latch counter into hold register
	CmdDisarm     = 0xc0 // | mask
	CmdClearOut   = 0xe0 // | counter index
	CmdSetOut     = 0xe8 // | counter index
	CmdReset      = 0xff // master reset
)

// Data-pointer groups. Groups 1-5 address the counters, the control
// group holds the master mode and alarm registers.
const (
	GrpCtrl = 0x07
)

// Data-pointer elements for counter groups.
const (
	ElemMode = 0x0 << 3
	ElemLoad = 0x1 << 3
	ElemHold = 0x2 << 3
)

// Data-pointer elements for the control group.
const (
	ElemAlarm1 = 0x0 << 3
	ElemAlarm2 = 0x1 << 3
	ElemMaster = 0x2 << 3
	ElemStatus = 0x3 << 3
)

// Status register bits.
const (
	StatusBP   = 1 << 0 // byte pointer, set when the LSB is next
	StatusBusy = 1 << 7 // command not yet acknowledged

	StatusOut = 1 << 1 // OUT bit of counter 1; counter N at 1<<N
)

// Counter mode register layout.
const (
	// output control, bits 0-2
	OutInactive = 0x0
	OutTCPulse  = 0x1 // active-high pulse on terminal count
	OutTCToggle = 0x2 // toggle on terminal count
	OutTCLow    = 0x5 // active-low pulse on terminal count

	ModeCountUp = 1 << 3
	ModeRepeat  = 1 << 5

	// count source select, bits 8-11
	ShiftSrc = 8
	SrcTC    = 0x0 // terminal count of counter N-1, cascade input
	SrcPin1  = 0x1 // SRC1..SRC5 at 0x1..0x5
	SrcGate1 = 0x6 // GATE1..GATE5 at 0x6..0xa
	SrcF1    = 0xb // F1..F5 at 0xb..0xf

	ModeSrcEdgeFall = 1 << 12

	// gating control, bits 13-15
	ShiftGate    = 13
	GateOff      = 0x0
	GateHigh     = 0x4 // level, active high GATE N
	GateLow      = 0x5 // level, active low GATE N
	GateRiseEdge = 0x6
	GateFallEdge = 0x7
)

// Master mode register defaults: FOUT off, 8-bit data bus,
// time-of-day disabled.
const (
	MasterDefault = 0x2000
)

// Internal frequency taps. F1 is the 1 MHz oscillator, each
// subsequent tap divides by 16.
const (
	F1Hz = 1_000_000
	FDiv = 16
)
