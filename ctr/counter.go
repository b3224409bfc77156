// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"fmt"
)

// State is the life-cycle state of a counter.
type State uint8

const (
	Unconfigured State = iota
	Configured
	Armed
	Running
	Halted
)

func (st State) String() string {
	switch st {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case Halted:
		return "halted"
	}
	return "invalid"
}

// Counter is one hardware counting channel of a chip.
//
// A counter walks through Unconfigured, Configured, Armed, Running and
// Halted. State checks happen strictly before any register transaction:
// an operation that is illegal in the current state fails with
// ErrInvalidState and touches no hardware. All state fields are owned
// by the critical section of the counter's chip.
type Counter struct {
	chip *Chip
	id   int // board-wide counter number, 1-based
	idx  int // index within the chip, 1..5

	// guarded by chip.mu
	state State
	mode  Mode
	loadv uint32   // staged load value, 32-bit when cascaded
	next  *Counter // high half of a cascade pair
	prim  *Counter // low half, when this counter is subsumed
}

func newCounter(chip *Chip, id, idx int) *Counter {
	return &Counter{chip: chip, id: id, idx: idx}
}

// Kind implements the Resource interface.
func (c *Counter) Kind() Kind { return KindCounter }

// ID returns the board-wide counter number (1-based, chip 0 first).
func (c *Counter) ID() int { return c.id }

// Chip returns the chip hosting this counter.
func (c *Counter) Chip() *Chip { return c.chip }

// State returns the current state of the counter.
func (c *Counter) State() State {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()
	return c.state
}

// Mode returns the currently configured mode.
func (c *Counter) Mode() Mode {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()
	return c.mode
}

// Cascaded reports whether this counter is the low half of a cascade
// pair.
func (c *Counter) Cascaded() bool {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()
	return c.next != nil
}

// maskLocked returns the command mask addressing this counter, or the
// whole pair when cascaded. Callers hold chip.mu.
func (c *Counter) maskLocked() uint8 {
	mask := uint8(1) << (c.idx - 1)
	if c.next != nil {
		mask |= 1 << (c.next.idx - 1)
	}
	return mask
}

func (c *Counter) subsumedLocked() error {
	if c.prim == nil {
		return nil
	}
	return fmt.Errorf("ctr: counter %d is cascaded into counter %d: %w",
		c.id, c.prim.id, ErrInvalidState)
}

// highMode derives the mode register value of the high half of a
// cascade pair: clocked by the low half's terminal count, ungated.
func highMode(m Mode) Mode {
	return Mode{
		Source: SourceTC,
		Dir:    m.Dir,
		Gate:   GateNone,
		Output: m.Output,
		Repeat: m.Repeat,
	}
}

// SetMode validates and writes the counter mode. Valid in
// Unconfigured, Configured and Halted. For a cascaded pair the mode of
// both halves is rewritten as a unit.
func (c *Counter) SetMode(m Mode) error {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return err
	}
	switch c.state {
	case Unconfigured, Configured, Halted:
	default:
		return fmt.Errorf("ctr: can not set mode of counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}
	if err := m.validate(); err != nil {
		return err
	}

	low := m
	if c.next != nil {
		// the low half must roll over continuously, the high half
		// carries the one-shot/repeat semantics of the pair
		low.Repeat = true
	}
	err := c.chip.writeReg(c.idx, RegMode, low.encode())
	if err != nil {
		return err
	}
	if c.next != nil {
		err = c.chip.writeReg(c.next.idx, RegMode, highMode(m).encode())
		if err != nil {
			return err
		}
	}

	c.mode = m
	c.state = Configured
	return nil
}

// SetGate changes only the gating condition of an already configured
// counter. Valid in Configured and Halted.
func (c *Counter) SetGate(g Gate) error {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return err
	}
	switch c.state {
	case Configured, Halted:
	default:
		return fmt.Errorf("ctr: can not set gate of counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}
	m := c.mode
	m.Gate = g
	if err := m.validate(); err != nil {
		return err
	}

	err := c.chip.writeReg(c.idx, RegMode, m.encode())
	if err != nil {
		return err
	}
	c.mode = m
	return nil
}

// Load writes v to the load register and arms the counter without
// starting it. Valid in Configured, Armed and Halted. A cascaded pair
// takes a 32-bit value, a single counter a 16-bit one.
func (c *Counter) Load(v uint32) error {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return err
	}
	switch c.state {
	case Configured, Armed, Halted:
	default:
		return fmt.Errorf("ctr: can not load counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}
	if c.next == nil && v > 0xffff {
		return fmt.Errorf("ctr: load value 0x%x overflows 16-bit counter %d: %w",
			v, c.id, ErrInvalidMode)
	}

	c.loadv = v
	return c.armLocked()
}

// armLocked writes the staged load value, transfers it into the
// counter(s) and leaves the counter armed. The low half of a cascaded
// pair is left free-running afterwards so carries ripple through the
// full 16-bit range. Callers hold chip.mu.
func (c *Counter) armLocked() error {
	err := c.chip.writeReg(c.idx, RegLoad, uint16(c.loadv))
	if err != nil {
		return err
	}
	if c.next != nil {
		err = c.chip.writeReg(c.next.idx, RegLoad, uint16(c.loadv>>16))
		if err != nil {
			return err
		}
	}
	err = c.chip.command(cmdLoad(c.maskLocked()))
	if err != nil {
		return err
	}
	if c.next != nil {
		err = c.chip.writeReg(c.idx, RegLoad, 0xffff)
		if err != nil {
			return err
		}
	}
	c.state = Armed
	return nil
}

// Arm re-arms the counter from the last loaded value. Valid in
// Configured and Halted.
func (c *Counter) Arm() error {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return err
	}
	switch c.state {
	case Configured, Halted:
	default:
		return fmt.Errorf("ctr: can not arm counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}
	return c.armLocked()
}

// Start issues the go command. Valid in Armed. For a gated counter the
// counting onset is deferred to the external gate condition; Start
// returns once the command is issued.
func (c *Counter) Start() error {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return err
	}
	if c.state != Armed {
		return fmt.Errorf("ctr: can not start counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}
	err := c.chip.command(cmdArm(c.maskLocked()))
	if err != nil {
		return err
	}
	c.state = Running
	return nil
}

// Stop halts a running counter. Valid in Running.
func (c *Counter) Stop() error {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return err
	}
	if c.state != Running {
		return fmt.Errorf("ctr: can not stop counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}
	err := c.chip.command(cmdDisarm(c.maskLocked()))
	if err != nil {
		return err
	}
	c.state = Halted
	return nil
}

// Read latches the live count and returns it, without disturbing
// counting. Valid in Armed, Running and Halted. A cascaded pair is
// latched with a single command so the 32-bit value is consistent.
func (c *Counter) Read() (uint32, error) {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return 0, err
	}
	switch c.state {
	case Armed, Running, Halted:
	default:
		return 0, fmt.Errorf("ctr: can not read counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}

	err := c.chip.latch(c.maskLocked())
	if err != nil {
		return 0, err
	}
	lo, err := c.chip.readReg(c.idx, RegHold)
	if err != nil {
		return 0, err
	}
	v := uint32(lo)
	if c.next != nil {
		hi, err := c.chip.readReg(c.next.idx, RegHold)
		if err != nil {
			return 0, err
		}
		v |= uint32(hi) << 16
	}

	// a one-shot counter parks at terminal count
	if c.state == Running && !c.mode.Repeat && v == 0 {
		c.state = Halted
	}
	return v, nil
}

// Cascade links the terminal count of this counter to the source of
// next, forming one logical 32-bit counter addressed through the low
// half. Only the numerically adjacent counter of the same chip may be
// linked; next becomes subsumed until the pair is reset.
func (c *Counter) Cascade(next *Counter) error {
	if next == nil || next.chip != c.chip {
		return fmt.Errorf("ctr: counter %d can only cascade within its chip: %w",
			c.id, ErrInvalidTopology)
	}

	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if next.idx != c.idx+1 {
		return fmt.Errorf("ctr: counter %d can not feed counter %d: %w",
			c.id, next.id, ErrInvalidTopology)
	}
	if c.next != nil || c.prim != nil || next.next != nil || next.prim != nil {
		return fmt.Errorf("ctr: counter %d or %d already cascaded: %w",
			c.id, next.id, ErrInvalidTopology)
	}
	switch c.state {
	case Unconfigured, Configured, Halted:
	default:
		return fmt.Errorf("ctr: can not cascade counter %d while %v: %w",
			c.id, c.state, ErrInvalidState)
	}
	switch next.state {
	case Unconfigured, Configured, Halted:
	default:
		return fmt.Errorf("ctr: can not cascade into counter %d while %v: %w",
			next.id, next.state, ErrInvalidState)
	}

	if c.state != Unconfigured {
		low := c.mode
		low.Repeat = true
		err := c.chip.writeReg(c.idx, RegMode, low.encode())
		if err != nil {
			return err
		}
		err = c.chip.writeReg(next.idx, RegMode, highMode(c.mode).encode())
		if err != nil {
			return err
		}
		c.state = Configured // the pair needs a fresh 32-bit load
	}

	c.next = next
	next.prim = c
	next.state = Unconfigured
	next.mode = Mode{}
	return nil
}

// Reset returns the counter, or the whole pair when cascaded, to
// power-on defaults. Sibling counters are not touched.
func (c *Counter) Reset() error {
	c.chip.mu.Lock()
	defer c.chip.mu.Unlock()

	if err := c.subsumedLocked(); err != nil {
		return err
	}
	if c.state == Armed || c.state == Running {
		err := c.chip.command(cmdDisarm(c.maskLocked()))
		if err != nil {
			return err
		}
	}
	for _, half := range []*Counter{c, c.next} {
		if half == nil {
			continue
		}
		err := c.chip.writeReg(half.idx, RegMode, 0)
		if err != nil {
			return err
		}
		err = c.chip.writeReg(half.idx, RegLoad, 0)
		if err != nil {
			return err
		}
	}
	c.clearLocked()
	return nil
}

// clearLocked forgets all driver-side state of the counter and
// dissolves its cascade link. Callers hold chip.mu.
func (c *Counter) clearLocked() {
	if c.next != nil {
		c.next.prim = nil
		c.next = nil
	}
	c.prim = nil
	c.state = Unconfigured
	c.mode = Mode{}
	c.loadv = 0
}
