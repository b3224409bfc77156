// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iomem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestHandleFrom(t *testing.T) {
	h := HandleFrom([]byte{0, 1, 2, 3})

	if got, want := h.Len(), 4; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	var p [1]byte
	_, err := h.ReadAt(p[:], 1)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := p[0], byte(1); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	_, err = h.WriteAt(nil, -1)
	if got, want := err.Error(), "iomem: invalid WriteAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = h.ReadAt(nil, -1)
	if got, want := err.Error(), "iomem: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestOpen(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "resource2")
	err := os.WriteFile(fname, make([]byte, 16), 0644)
	if err != nil {
		t.Fatalf("could not create resource file: %+v", err)
	}

	h, err := Open(fname, 16)
	if err != nil {
		t.Fatalf("could not open window: %+v", err)
	}
	defer h.Close()

	if got, want := h.Len(), 16; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	_, err = h.WriteAt([]byte{0xab}, 5)
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	var p [1]byte
	_, err = h.ReadAt(p[:], 5)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := p[0], byte(0xab); got != want {
		t.Fatalf("invalid value: got=0x%02x, want=0x%02x", got, want)
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not close window: %+v", err)
	}
	_, err = h.ReadAt(p[:], 0)
	if !errors.Is(err, errClosed) {
		t.Fatalf("invalid read-at error after close: %+v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "not-there"), 8)
	if err == nil {
		t.Fatal("expected an error")
	}
}
