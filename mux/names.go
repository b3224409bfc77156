// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"fmt"

	"github.com/go-daq/pcictr/ctr"
)

// maxChips is the largest number of chips a board of the family
// carries. The minor codec leans on it: it addresses devices without
// knowing the model of the board behind them.
const maxChips = 2

const (
	minorBoardStride = 256 // minors reserved per board
	minorChipStride  = 8   // slots reserved per chip
)

// DeviceID identifies one logical device: a counter (Index 1-based,
// counters of chip 0 first) or a DIO port (Index 0-based) of a board.
type DeviceID struct {
	Board int
	Kind  ctr.Kind
	Index int
}

// Name returns the device name: CTR<board><counter> with the counter
// number in hex (1..a on a two-chip board), or DIO<board><port> with
// the port as a letter (A, B).
func (id DeviceID) Name() string {
	switch id.Kind {
	case ctr.KindCounter:
		return fmt.Sprintf("CTR%d%x", id.Board, id.Index)
	default:
		return fmt.Sprintf("DIO%d%c", id.Board, 'A'+id.Index)
	}
}

// Minor returns the device minor number: boards are 256 minors apart,
// chips 8 slots apart, the DIO port at slot 0 and the counters at
// slots 1-5.
func (id DeviceID) Minor() int {
	switch id.Kind {
	case ctr.KindCounter:
		chip := (id.Index - 1) / ctr.NumCounters
		slot := (id.Index-1)%ctr.NumCounters + 1
		return id.Board*minorBoardStride + chip*minorChipStride + slot
	default:
		return id.Board*minorBoardStride + id.Index*minorChipStride
	}
}

func (id DeviceID) validate() error {
	if id.Board < 0 || id.Board >= ctr.MaxBoards {
		return fmt.Errorf("mux: invalid board %d: %w", id.Board, ctr.ErrNoSuchChannel)
	}
	switch id.Kind {
	case ctr.KindCounter:
		if id.Index < 1 || id.Index > maxChips*ctr.NumCounters {
			return fmt.Errorf("mux: invalid counter %d: %w", id.Index, ctr.ErrNoSuchChannel)
		}
	case ctr.KindDIO:
		if id.Index < 0 || id.Index >= maxChips {
			return fmt.Errorf("mux: invalid DIO port %d: %w", id.Index, ctr.ErrNoSuchChannel)
		}
	default:
		return fmt.Errorf("mux: invalid device kind %d: %w", id.Kind, ctr.ErrNoSuchChannel)
	}
	return nil
}

// FromMinor decodes a minor number back into a device identifier.
func FromMinor(minor int) (DeviceID, error) {
	if minor < 0 {
		return DeviceID{}, fmt.Errorf("mux: invalid minor %d: %w", minor, ctr.ErrNoSuchChannel)
	}
	var (
		id   = DeviceID{Board: minor / minorBoardStride}
		chip = minor % minorBoardStride / minorChipStride
		slot = minor % minorChipStride
	)
	if chip >= maxChips || slot > ctr.NumCounters {
		return DeviceID{}, fmt.Errorf("mux: invalid minor %d: %w", minor, ctr.ErrNoSuchChannel)
	}
	switch slot {
	case 0:
		id.Kind = ctr.KindDIO
		id.Index = chip
	default:
		id.Kind = ctr.KindCounter
		id.Index = chip*ctr.NumCounters + slot
	}
	if err := id.validate(); err != nil {
		return DeviceID{}, err
	}
	return id, nil
}

// ParseName decodes a device name produced by Name.
func ParseName(name string) (DeviceID, error) {
	bad := func() (DeviceID, error) {
		return DeviceID{}, fmt.Errorf("mux: invalid device name %q: %w",
			name, ctr.ErrNoSuchChannel)
	}
	if len(name) != 5 {
		return bad()
	}
	brd := int(name[3] - '0')
	if brd < 0 || brd > 9 {
		return bad()
	}

	var id DeviceID
	switch name[:3] {
	case "CTR":
		idx := hexDigit(name[4])
		if idx < 0 {
			return bad()
		}
		id = DeviceID{Board: brd, Kind: ctr.KindCounter, Index: idx}
	case "DIO":
		port := int(name[4] - 'A')
		if port < 0 {
			return bad()
		}
		id = DeviceID{Board: brd, Kind: ctr.KindDIO, Index: port}
	default:
		return bad()
	}
	if err := id.validate(); err != nil {
		return DeviceID{}, err
	}
	return id, nil
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return -1
}
