// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-daq/pcictr/ctr/internal/regs"
	"github.com/go-daq/pcictr/internal/iomem"
)

// vendorMCC is the PCI vendor ID of Measurement Computing.
const vendorMCC = 0x1307

// bar is the PCI base address register holding the chip window.
const bar = 2

// discover scans the sysfs PCI device directory for boards of the
// CTR family and maps their register windows. Boards come back sorted
// by bus address so the enumeration order is stable across attaches.
func discover(root string) ([]BoardInfo, error) {
	ents, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("ctr: could not read %q: %w", root, err)
	}

	names := make([]string, 0, len(ents))
	for _, ent := range ents {
		names = append(names, ent.Name())
	}
	sort.Strings(names)

	var boards []BoardInfo
	for _, name := range names {
		dir := filepath.Join(root, name)
		vendor, err := pciID(filepath.Join(dir, "vendor"))
		if err != nil {
			continue
		}
		if vendor != vendorMCC {
			continue
		}
		device, err := pciID(filepath.Join(dir, "device"))
		if err != nil {
			return nil, err
		}

		var model Model
		switch Model(device) {
		case CTR05:
			model = CTR05
		case CTR10:
			model = CTR10
		default:
			continue
		}

		span := model.NumChips() * regs.ChipSpan
		rw, err := iomem.Open(filepath.Join(dir, fmt.Sprintf("resource%d", bar)), span)
		if err != nil {
			return nil, fmt.Errorf("ctr: could not map %v at %q: %w", model, name, err)
		}
		boards = append(boards, BoardInfo{
			Model: model,
			RW:    rw,
			Addr:  name,
		})
	}
	return boards, nil
}

func pciID(path string) (uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("ctr: could not read %q: %w", path, err)
	}
	txt := strings.TrimSpace(string(raw))
	txt = strings.TrimPrefix(txt, "0x")
	id, err := strconv.ParseUint(txt, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("ctr: could not parse PCI id %q: %w", path, err)
	}
	return uint32(id), nil
}
