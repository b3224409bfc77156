// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-daq/pcictr/ctr/ctrtest"
)

// fakeBoard pairs a fake chip transport with the BoardInfo describing
// it to Attach.
type fakeBoard struct {
	fb *ctrtest.Board
}

func newFakeBoard(nchips int) fakeBoard {
	return fakeBoard{fb: ctrtest.NewBoard(nchips)}
}

func (b fakeBoard) info(model Model) BoardInfo {
	return fakeInfo(b.fb, model)
}

func TestAttach(t *testing.T) {
	fb05 := newFakeBoard(1)
	fb10 := newFakeBoard(2)

	tab, err := Attach(
		WithLogger(testLogger()),
		WithBoards(fb05.info(CTR05), fb10.info(CTR10)),
	)
	if err != nil {
		t.Fatalf("could not attach boards: %+v", err)
	}
	defer tab.Close()

	if got, want := tab.NumBoards(), 2; got != want {
		t.Fatalf("invalid number of boards: got=%d, want=%d", got, want)
	}

	brd, err := tab.Board(1)
	if err != nil {
		t.Fatalf("could not get board 1: %+v", err)
	}
	if got, want := brd.Model(), CTR10; got != want {
		t.Fatalf("invalid model: got=%v, want=%v", got, want)
	}
	if got, want := brd.NumCounters(), 10; got != want {
		t.Fatalf("invalid number of counters: got=%d, want=%d", got, want)
	}
	if got, want := brd.NumDIOs(), 2; got != want {
		t.Fatalf("invalid number of DIO ports: got=%d, want=%d", got, want)
	}

	c, err := tab.Counter(1, 7)
	if err != nil {
		t.Fatalf("could not get counter 7 of board 1: %+v", err)
	}
	if got, want := c.ID(), 7; got != want {
		t.Fatalf("invalid counter id: got=%d, want=%d", got, want)
	}

	for _, tc := range []struct {
		name string
		err  error
	}{
		{"board", func() error { _, err := tab.Board(2); return err }()},
		{"counter", func() error { _, err := tab.Counter(0, 6); return err }()},
		{"dio", func() error { _, err := tab.DIO(0, 1); return err }()},
		{"kind", func() error { _, err := tab.Lookup(0, Kind(42), 1); return err }()},
	} {
		if !errors.Is(tc.err, ErrNoSuchChannel) {
			t.Fatalf("%s: invalid error: got=%+v, want=%+v", tc.name, tc.err, ErrNoSuchChannel)
		}
	}

	res, err := tab.Lookup(1, KindDIO, 1)
	if err != nil {
		t.Fatalf("could not lookup DIO port: %+v", err)
	}
	if got, want := res.Kind(), KindDIO; got != want {
		t.Fatalf("invalid resource kind: got=%v, want=%v", got, want)
	}
}

func TestAttachTooManyBoards(t *testing.T) {
	var infos []BoardInfo
	for i := 0; i < MaxBoards+1; i++ {
		infos = append(infos, newFakeBoard(1).info(CTR05))
	}
	_, err := Attach(WithLogger(testLogger()), WithBoards(infos...))
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()

	mkdev := func(addr, vendor, device string, span int) {
		t.Helper()
		dir := filepath.Join(root, addr)
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			t.Fatalf("could not create %q: %+v", dir, err)
		}
		for name, v := range map[string]string{
			"vendor": vendor,
			"device": device,
		} {
			err = os.WriteFile(filepath.Join(dir, name), []byte(v+"\n"), 0644)
			if err != nil {
				t.Fatalf("could not create %s file: %+v", name, err)
			}
		}
		if span > 0 {
			err = os.WriteFile(filepath.Join(dir, "resource2"), make([]byte, span), 0644)
			if err != nil {
				t.Fatalf("could not create resource file: %+v", err)
			}
		}
	}

	mkdev("0000:03:0a.0", "0x1307", "0x006d", 16) // CTR10
	mkdev("0000:01:05.0", "0x1307", "0x0018", 8)  // CTR05
	mkdev("0000:00:1f.3", "0x8086", "0xa348", 0)  // unrelated device
	mkdev("0000:02:00.0", "0x1307", "0x00ff", 0)  // MCC but not a CTR board

	boards, err := discover(root)
	if err != nil {
		t.Fatalf("could not discover boards: %+v", err)
	}
	defer func() {
		for _, b := range boards {
			if c, ok := b.RW.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}()

	if got, want := len(boards), 2; got != want {
		t.Fatalf("invalid number of boards: got=%d, want=%d", got, want)
	}
	if got, want := boards[0].Model, CTR05; got != want {
		t.Fatalf("invalid model of board 0: got=%v, want=%v", got, want)
	}
	if got, want := boards[0].Addr, "0000:01:05.0"; got != want {
		t.Fatalf("invalid address of board 0: got=%q, want=%q", got, want)
	}
	if got, want := boards[1].Model, CTR10; got != want {
		t.Fatalf("invalid model of board 1: got=%v, want=%v", got, want)
	}

	// the register window spans all chips of the board
	var p [1]byte
	_, err = boards[1].RW.ReadAt(p[:], 15)
	if err != nil {
		t.Fatalf("could not read last port of CTR10 window: %+v", err)
	}
}

func TestDiscoverNoRoot(t *testing.T) {
	_, err := discover(filepath.Join(t.TempDir(), "not-there"))
	if err == nil {
		t.Fatal("expected an error")
	}
}
