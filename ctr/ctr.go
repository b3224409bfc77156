// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctr holds the resource model of MCC PCI counter/timer boards.
//
// A board hosts one or two Am9513A-style counter/timer chips. Each chip
// carries five 16-bit counters, five selectable internal frequency taps
// and one 24-bit digital I/O port. Register access to one chip goes
// through a shared command/data port pair and is serialized by a
// per-chip critical section; chips are independent of each other.
package ctr // import "github.com/go-daq/pcictr/ctr"

import (
	"github.com/go-daq/pcictr/ctr/internal/regs"
)

const (
	// NumCounters is the number of hardware counters per chip.
	NumCounters = regs.NumCounters

	// NumFreqs is the number of internal frequency taps per chip.
	NumFreqs = 5

	// MaxBoards is the maximum number of boards handled at attach time.
	MaxBoards = 4
)

// FreqHz returns the frequency, in Hz, of the internal tap i (1..5).
// F1 is the 1 MHz oscillator, each following tap divides by 16.
func FreqHz(i int) float64 {
	f := float64(regs.F1Hz)
	for ; i > 1; i-- {
		f /= regs.FDiv
	}
	return f
}

// Kind is the kind of a board channel.
type Kind uint8

const (
	KindCounter Kind = iota
	KindDIO
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindDIO:
		return "dio"
	}
	return "invalid"
}

// Resource is a channel of a board: a counter or a DIO port.
type Resource interface {
	Kind() Kind
}

var (
	_ Resource = (*Counter)(nil)
	_ Resource = (*DIO)(nil)
)
