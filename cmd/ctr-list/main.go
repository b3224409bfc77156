// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ctr-list enumerates the counter/timer boards of the host and
// their logical devices.
package main // import "github.com/go-daq/pcictr/cmd/ctr-list"

import (
	"flag"
	"fmt"
	"log"

	"github.com/go-daq/pcictr/ctr"
	"github.com/go-daq/pcictr/mux"
)

func main() {
	log.SetPrefix("ctr-list: ")
	log.SetFlags(0)

	sysfs := flag.String("sysfs", "/sys/bus/pci/devices", "sysfs PCI device directory to scan")

	flag.Parse()

	err := run(*sysfs)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(sysfs string) error {
	tab, err := ctr.Attach(ctr.WithSysfsRoot(sysfs))
	if err != nil {
		return fmt.Errorf("could not attach boards: %w", err)
	}
	defer tab.Close()

	for i := 0; i < tab.NumBoards(); i++ {
		brd, err := tab.Board(i)
		if err != nil {
			return err
		}
		fmt.Printf("board %d: %v at %q\n", i, brd.Model(), brd.Addr())
		for j := 1; j <= brd.NumCounters(); j++ {
			id := mux.DeviceID{Board: i, Kind: ctr.KindCounter, Index: j}
			fmt.Printf("  %s (minor %3d) counter %2d\n", id.Name(), id.Minor(), j)
		}
		for j := 0; j < brd.NumDIOs(); j++ {
			id := mux.DeviceID{Board: i, Kind: ctr.KindDIO, Index: j}
			fmt.Printf("  %s (minor %3d) 24-bit DIO port\n", id.Name(), id.Minor())
		}
	}
	return nil
}
