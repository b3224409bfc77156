// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"fmt"

	"github.com/go-daq/pcictr/ctr/internal/regs"
)

// Source selects the count source of a counter. The values mirror the
// source field of the chip mode register.
type Source uint8

const (
	// SourceTC is the terminal count of the numerically previous
	// counter. It is set through Cascade, not through SetMode.
	SourceTC Source = 0x0

	SourcePin1 Source = 0x1 // external SRC pins
	SourcePin2 Source = 0x2
	SourcePin3 Source = 0x3
	SourcePin4 Source = 0x4
	SourcePin5 Source = 0x5

	SourceGate1 Source = 0x6 // GATE pins used as count source
	SourceGate2 Source = 0x7
	SourceGate3 Source = 0x8
	SourceGate4 Source = 0x9
	SourceGate5 Source = 0xa

	SourceF1 Source = 0xb // internal frequency taps
	SourceF2 Source = 0xc
	SourceF3 Source = 0xd
	SourceF4 Source = 0xe
	SourceF5 Source = 0xf
)

func (src Source) String() string {
	switch {
	case src == SourceTC:
		return "tc"
	case src >= SourcePin1 && src <= SourcePin5:
		return fmt.Sprintf("src%d", src-SourcePin1+1)
	case src >= SourceGate1 && src <= SourceGate5:
		return fmt.Sprintf("gate%d", src-SourceGate1+1)
	case src >= SourceF1 && src <= SourceF5:
		return fmt.Sprintf("f%d", src-SourceF1+1)
	}
	return "invalid"
}

// Direction is the count direction.
type Direction uint8

const (
	Down Direction = iota
	Up
)

func (dir Direction) String() string {
	switch dir {
	case Down:
		return "down"
	case Up:
		return "up"
	}
	return "invalid"
}

// Gate selects the gating condition that must hold for the counter to
// count. Level and edge gates use the GATE pin of the counter.
type Gate uint8

const (
	GateNone Gate = iota
	GateHighLevel
	GateLowLevel
	GateRisingEdge
	GateFallingEdge
)

func (g Gate) String() string {
	switch g {
	case GateNone:
		return "none"
	case GateHighLevel:
		return "high-level"
	case GateLowLevel:
		return "low-level"
	case GateRisingEdge:
		return "rising-edge"
	case GateFallingEdge:
		return "falling-edge"
	}
	return "invalid"
}

func (g Gate) field() (uint16, bool) {
	switch g {
	case GateNone:
		return regs.GateOff, true
	case GateHighLevel:
		return regs.GateHigh, true
	case GateLowLevel:
		return regs.GateLow, true
	case GateRisingEdge:
		return regs.GateRiseEdge, true
	case GateFallingEdge:
		return regs.GateFallEdge, true
	}
	return 0, false
}

func gateOf(field uint16) Gate {
	switch field {
	case regs.GateHigh:
		return GateHighLevel
	case regs.GateLow:
		return GateLowLevel
	case regs.GateRiseEdge:
		return GateRisingEdge
	case regs.GateFallEdge:
		return GateFallingEdge
	}
	return GateNone
}

// Output selects the behaviour of the counter OUT pin.
type Output uint8

const (
	OutputPulse   Output = regs.OutTCPulse  // active-high pulse on terminal count
	OutputToggle  Output = regs.OutTCToggle // toggle on terminal count
	OutputPulseLo Output = regs.OutTCLow    // active-low pulse on terminal count
)

func (out Output) String() string {
	switch out {
	case OutputPulse:
		return "tc-pulse"
	case OutputToggle:
		return "tc-toggle"
	case OutputPulseLo:
		return "tc-pulse-low"
	}
	return "invalid"
}

// Mode is the full configuration of one counter. A counter must have a
// fully defined mode (source, direction, gate and output) before it
// may be armed.
type Mode struct {
	Source Source    `json:"source"`
	Dir    Direction `json:"dir"`
	Gate   Gate      `json:"gate"`
	Output Output    `json:"output"`
	Repeat bool      `json:"repeat"` // reload from the load register on terminal count
}

func (m Mode) validate() error {
	if m.Source == SourceTC || m.Source > SourceF5 {
		return fmt.Errorf("ctr: source %v not settable: %w", m.Source, ErrInvalidMode)
	}
	if _, ok := m.Gate.field(); !ok {
		return fmt.Errorf("ctr: unknown gate %d: %w", uint8(m.Gate), ErrInvalidMode)
	}
	switch m.Output {
	case OutputPulse, OutputToggle, OutputPulseLo:
	default:
		return fmt.Errorf("ctr: unknown output %d: %w", uint8(m.Output), ErrInvalidMode)
	}
	if m.Gate != GateNone && m.Source >= SourceGate1 && m.Source <= SourceGate5 {
		return fmt.Errorf("ctr: gate pin can not both gate and clock a counter: %w", ErrInvalidMode)
	}
	if m.Dir != Up && m.Dir != Down {
		return fmt.Errorf("ctr: unknown direction %d: %w", uint8(m.Dir), ErrInvalidMode)
	}
	return nil
}

// encode packs the mode into the chip mode-register layout.
func (m Mode) encode() uint16 {
	v := uint16(m.Output)
	if m.Dir == Up {
		v |= regs.ModeCountUp
	}
	if m.Repeat {
		v |= regs.ModeRepeat
	}
	v |= uint16(m.Source) << regs.ShiftSrc
	gf, _ := m.Gate.field()
	v |= gf << regs.ShiftGate
	return v
}

// modeOf unpacks a chip mode-register value.
func modeOf(v uint16) Mode {
	m := Mode{
		Source: Source(v >> regs.ShiftSrc & 0xf),
		Output: Output(v & 0x7),
		Gate:   gateOf(v >> regs.ShiftGate & 0x7),
	}
	if v&regs.ModeCountUp != 0 {
		m.Dir = Up
	}
	if v&regs.ModeRepeat != 0 {
		m.Repeat = true
	}
	return m
}
