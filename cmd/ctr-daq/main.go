// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ctr-daq starts a TDAQ server driving the counter/timer boards
// of the host.
//
// Usage:
//
//	$> ctr-daq -i :44000 -o :44001 [options] <dbname> <setup>
package main // import "github.com/go-daq/pcictr/cmd/ctr-daq"

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-daq/pcictr/daq"
)

func main() {
	cmd := flags.New()
	if len(cmd.Args) != 2 {
		log.Fatalf("missing arguments: ctr-daq [options] <dbname> <setup>")
	}

	dev := daq.New(
		daq.WithConfigDB(cmd.Args[0], cmd.Args[1]),
		daq.WithPeriod(1*time.Second),
	)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/counts", dev.Counts)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
