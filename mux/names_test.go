// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"errors"
	"testing"

	"github.com/go-daq/pcictr/ctr"
)

func TestDeviceNames(t *testing.T) {
	for _, tc := range []struct {
		id    DeviceID
		name  string
		minor int
	}{
		{DeviceID{Board: 0, Kind: ctr.KindCounter, Index: 1}, "CTR01", 1},
		{DeviceID{Board: 0, Kind: ctr.KindCounter, Index: 5}, "CTR05", 5},
		{DeviceID{Board: 0, Kind: ctr.KindCounter, Index: 6}, "CTR06", 9},
		{DeviceID{Board: 0, Kind: ctr.KindCounter, Index: 10}, "CTR0a", 13},
		{DeviceID{Board: 1, Kind: ctr.KindCounter, Index: 1}, "CTR11", 257},
		{DeviceID{Board: 3, Kind: ctr.KindCounter, Index: 7}, "CTR37", 778},
		{DeviceID{Board: 0, Kind: ctr.KindDIO, Index: 0}, "DIO0A", 0},
		{DeviceID{Board: 0, Kind: ctr.KindDIO, Index: 1}, "DIO0B", 8},
		{DeviceID{Board: 2, Kind: ctr.KindDIO, Index: 0}, "DIO2A", 512},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.id.Name(); got != tc.name {
				t.Fatalf("invalid name: got=%q, want=%q", got, tc.name)
			}
			if got := tc.id.Minor(); got != tc.minor {
				t.Fatalf("invalid minor: got=%d, want=%d", got, tc.minor)
			}
			id, err := ParseName(tc.name)
			if err != nil {
				t.Fatalf("could not parse name: %+v", err)
			}
			if id != tc.id {
				t.Fatalf("name round-trip failed: got=%+v, want=%+v", id, tc.id)
			}
			id, err = FromMinor(tc.minor)
			if err != nil {
				t.Fatalf("could not decode minor: %+v", err)
			}
			if id != tc.id {
				t.Fatalf("minor round-trip failed: got=%+v, want=%+v", id, tc.id)
			}
		})
	}
}

func TestParseNameInvalid(t *testing.T) {
	for _, name := range []string{
		"",
		"CTR",
		"CTR1",
		"CTR00",  // counters are 1-based
		"CTR0b",  // past the last counter of a two-chip board
		"CTR41",  // board out of range
		"CTRx1",  // bad board digit
		"DIO0C",  // no third DIO port
		"XXX01",  // unknown prefix
		"ctr01",  // names are upper-case
		"CTR011", // too long
	} {
		_, err := ParseName(name)
		if !errors.Is(err, ctr.ErrNoSuchChannel) {
			t.Fatalf("%q: got=%+v, want=%+v", name, err, ctr.ErrNoSuchChannel)
		}
	}
}

func TestFromMinorInvalid(t *testing.T) {
	for _, minor := range []int{
		-1,
		6,        // slots 6 and 7 are unassigned
		7,
		16,       // chip 2 of a board
		4 * 256,  // board out of range
		1024 + 1, // board out of range, counter slot
	} {
		_, err := FromMinor(minor)
		if !errors.Is(err, ctr.ErrNoSuchChannel) {
			t.Fatalf("minor %d: got=%+v, want=%+v", minor, err, ctr.ErrNoSuchChannel)
		}
	}
}

func TestOpJSON(t *testing.T) {
	for op, name := range opNames {
		raw, err := op.MarshalJSON()
		if err != nil {
			t.Fatalf("could not marshal %v: %+v", op, err)
		}
		if got, want := string(raw), `"`+name+`"`; got != want {
			t.Fatalf("invalid JSON for %v: got=%s, want=%s", op, got, want)
		}
		var back Op
		err = back.UnmarshalJSON(raw)
		if err != nil {
			t.Fatalf("could not unmarshal %s: %+v", raw, err)
		}
		if back != op {
			t.Fatalf("op round-trip failed: got=%v, want=%v", back, op)
		}
	}

	var op Op
	err := op.UnmarshalJSON([]byte(`"NO_SUCH_OP"`))
	if !errors.Is(err, ErrInvalidOp) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalidOp)
	}
	_, err = Op(0).MarshalJSON()
	if !errors.Is(err, ErrInvalidOp) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalidOp)
	}
}
