// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"fmt"

	"github.com/go-daq/pcictr/ctr/internal/regs"
)

// DIO is the 24-bit parallel port attached to a chip. Direction is
// per-bit; output bits drive the latch, input bits read the pins.
// The port shares the chip critical section with the counters.
type DIO struct {
	chip *Chip
	id   int // board-wide port index, 0 = "A"

	// guarded by chip.mu
	dir uint32 // 1 = output
	out uint32 // output latch shadow
}

func newDIO(chip *Chip, id int) *DIO {
	return &DIO{chip: chip, id: id}
}

// Kind implements the Resource interface.
func (p *DIO) Kind() Kind { return KindDIO }

// ID returns the board-wide port index (0 for port A).
func (p *DIO) ID() int { return p.id }

// Name returns the single-letter port name.
func (p *DIO) Name() string { return string(rune('A' + p.id)) }

var dioPorts = [3]int64{regs.PortA, regs.PortB, regs.PortC}
var dioDirs = [3]int64{regs.PortDirA, regs.PortDirB, regs.PortDirC}

// SetDirection programs the per-bit direction mask (1 = output).
func (p *DIO) SetDirection(mask uint32) error {
	if mask > 0xffffff {
		return fmt.Errorf("ctr: direction mask 0x%x overflows 24-bit port %s: %w",
			mask, p.Name(), ErrInvalidMode)
	}
	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()

	for i, port := range dioDirs {
		err := p.chip.outp(port, uint8(mask>>(8*i)))
		if err != nil {
			return err
		}
	}
	p.dir = mask
	return nil
}

// Direction returns the current direction mask.
func (p *DIO) Direction() uint32 {
	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()
	return p.dir
}

// Read returns the current 24-bit port value.
func (p *DIO) Read() (uint32, error) {
	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()

	var v uint32
	for i, port := range dioPorts {
		b, err := p.chip.inp(port)
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// Write latches v on the output bits of the port. Input bits are
// unaffected.
func (p *DIO) Write(v uint32) error {
	if v > 0xffffff {
		return fmt.Errorf("ctr: value 0x%x overflows 24-bit port %s: %w",
			v, p.Name(), ErrInvalidMode)
	}
	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()

	v &= p.dir
	for i, port := range dioPorts {
		err := p.chip.outp(port, uint8(v>>(8*i)))
		if err != nil {
			return err
		}
	}
	p.out = v
	return nil
}
