// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mux multiplexes the channels of the attached counter/timer
// boards behind logical device names (CTR01..CTR0a, DIO0A..) and a
// fixed control op set, the surface the control server exposes on the
// wire.
package mux // import "github.com/go-daq/pcictr/mux"

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/go-daq/pcictr/ctr"
)

// ErrInvalidOp marks an unknown operation, or an operation applied to
// a device of the wrong kind.
var ErrInvalidOp = errors.New("mux: invalid operation")

// Args carries the operand of a control operation. Ops use the fields
// they need and ignore the rest.
type Args struct {
	Mode *ctr.Mode `json:"mode,omitempty"` // SET_MODE
	Gate ctr.Gate  `json:"gate,omitempty"` // SET_GATE
	Val  uint32    `json:"val,omitempty"`  // LOAD, WRITE_PORT
	Mask uint32    `json:"mask,omitempty"` // SET_DIRECTION
	Peer string    `json:"peer,omitempty"` // CASCADE_LINK: name of the high half
}

// Ctler applies one control operation to a named device. It is
// implemented by Mux (in-process) and by Client (over the control
// socket).
type Ctler interface {
	Ctl(name string, op Op, args Args) (uint32, error)
}

// Mux routes device names to the resources of an attached board table.
type Mux struct {
	msg *log.Logger
	tab *ctr.Table
}

// Option configures a Mux.
type Option func(*Mux)

// WithLogger sets the logger of the multiplexer.
func WithLogger(msg *log.Logger) Option {
	return func(mux *Mux) {
		mux.msg = msg
	}
}

// New returns a multiplexer over the given board table.
func New(tab *ctr.Table, opts ...Option) *Mux {
	mux := &Mux{
		msg: log.New(os.Stdout, "mux: ", 0),
		tab: tab,
	}
	for _, opt := range opts {
		opt(mux)
	}
	return mux
}

// Table returns the board table behind the multiplexer.
func (mux *Mux) Table() *ctr.Table { return mux.tab }

// Open resolves a device name to a handle on its resource.
func (mux *Mux) Open(name string) (*Handle, error) {
	id, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	res, err := mux.tab.Lookup(id.Board, id.Kind, id.Index)
	if err != nil {
		return nil, err
	}
	return &Handle{mux: mux, id: id, res: res}, nil
}

// Ctl opens the named device and applies one control operation.
func (mux *Mux) Ctl(name string, op Op, args Args) (uint32, error) {
	h, err := mux.Open(name)
	if err != nil {
		return 0, err
	}
	return h.Ctl(op, args)
}

var _ Ctler = (*Mux)(nil)

// Handle is an open device.
type Handle struct {
	mux *Mux
	id  DeviceID
	res ctr.Resource
}

// ID returns the device identifier of the handle.
func (h *Handle) ID() DeviceID { return h.id }

// Name returns the device name of the handle.
func (h *Handle) Name() string { return h.id.Name() }

// Read returns the latched count of a counter device or the pin state
// of a DIO device.
func (h *Handle) Read() (uint32, error) {
	switch res := h.res.(type) {
	case *ctr.Counter:
		return res.Read()
	case *ctr.DIO:
		return res.Read()
	}
	return 0, fmt.Errorf("mux: can not read %q: %w", h.Name(), ErrInvalidOp)
}

// Write loads the load register of a counter device or the output
// latch of a DIO device.
func (h *Handle) Write(v uint32) error {
	switch res := h.res.(type) {
	case *ctr.Counter:
		return res.Load(v)
	case *ctr.DIO:
		return res.Write(v)
	}
	return fmt.Errorf("mux: can not write %q: %w", h.Name(), ErrInvalidOp)
}

// Ctl applies one control operation to the device.
func (h *Handle) Ctl(op Op, args Args) (uint32, error) {
	switch res := h.res.(type) {
	case *ctr.Counter:
		return h.ctlCounter(res, op, args)
	case *ctr.DIO:
		return h.ctlDIO(res, op, args)
	}
	return 0, fmt.Errorf("mux: unknown resource kind of %q: %w", h.Name(), ErrInvalidOp)
}

func (h *Handle) ctlCounter(c *ctr.Counter, op Op, args Args) (uint32, error) {
	switch op {
	case SetMode:
		if args.Mode == nil {
			return 0, fmt.Errorf("mux: %v of %q without a mode: %w",
				op, h.Name(), ErrInvalidOp)
		}
		return 0, c.SetMode(*args.Mode)
	case Load:
		return 0, c.Load(args.Val)
	case Arm:
		return 0, c.Arm()
	case Start:
		return 0, c.Start()
	case Stop:
		return 0, c.Stop()
	case ReadCount:
		return c.Read()
	case SetGate:
		return 0, c.SetGate(args.Gate)
	case CascadeLink:
		return 0, h.cascade(c, args.Peer)
	case ResetCounter:
		return 0, c.Reset()
	}
	return 0, fmt.Errorf("mux: %v does not apply to counter %q: %w",
		op, h.Name(), ErrInvalidOp)
}

func (h *Handle) ctlDIO(p *ctr.DIO, op Op, args Args) (uint32, error) {
	switch op {
	case SetDirection:
		return 0, p.SetDirection(args.Mask)
	case ReadPort:
		return p.Read()
	case WritePort:
		return 0, p.Write(args.Val)
	}
	return 0, fmt.Errorf("mux: %v does not apply to DIO port %q: %w",
		op, h.Name(), ErrInvalidOp)
}

// cascade resolves the peer device name and links c as the low half of
// the pair.
func (h *Handle) cascade(c *ctr.Counter, peer string) error {
	id, err := ParseName(peer)
	if err != nil {
		return err
	}
	if id.Kind != ctr.KindCounter || id.Board != h.id.Board {
		return fmt.Errorf("mux: %q can not cascade into %q: %w",
			h.Name(), peer, ctr.ErrInvalidTopology)
	}
	next, err := h.mux.tab.Counter(id.Board, id.Index)
	if err != nil {
		return err
	}
	return c.Cascade(next)
}
