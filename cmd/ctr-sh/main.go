// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ctr-sh is an interactive shell speaking the control protocol
// with a ctr-srv instance.
package main // import "github.com/go-daq/pcictr/cmd/ctr-sh"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-daq/pcictr/ctr"
	"github.com/go-daq/pcictr/mux"
)

func main() {
	log.SetPrefix("ctr-sh: ")
	log.SetFlags(0)

	addr := flag.String("addr", "localhost:8867", "address of the control server")

	flag.Parse()

	err := run(*addr)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr string) error {
	cli, err := mux.Dial(addr)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", addr, err)
	}
	defer cli.Close()

	rl := liner.NewLiner()
	defer rl.Close()
	rl.SetCtrlCAborts(true)

	history := filepath.Join(os.TempDir(), ".ctr_sh_history")
	if f, err := os.Open(history); err == nil {
		_, _ = rl.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(history)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = rl.WriteHistory(f)
	}()

	for {
		line, err := rl.Prompt("ctr> ")
		if err != nil {
			return nil // EOF or ctrl-c
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rl.AppendHistory(line)

		words := strings.Fields(line)
		switch words[0] {
		case "quit", "exit":
			return nil
		case "help":
			usage()
		default:
			err := dispatch(cli, words)
			if err != nil {
				log.Printf("%+v", err)
			}
		}
	}
}

func usage() {
	fmt.Print(`commands:
  mode <dev> <source> <dir> <gate> <output> [repeat]
        source: f1..f5, src1..src5, gate1..gate5
        dir:    up, down
        gate:   none, high, low, rise, fall
        output: pulse, toggle, pulse-low
  gate <dev> <gate>
  load <dev> <value>
  arm <dev> | start <dev> | stop <dev> | read <dev> | reset <dev>
  cascade <low> <high>
  dir <dev> <mask> | wport <dev> <value> | rport <dev>
  help | quit
`)
}

func dispatch(cli *mux.Client, words []string) error {
	if len(words) < 2 {
		return fmt.Errorf("missing device name (try \"help\")")
	}
	var (
		cmd  = words[0]
		name = words[1]
		args = words[2:]
	)
	switch cmd {
	case "mode":
		mode, err := parseMode(args)
		if err != nil {
			return err
		}
		_, err = cli.Ctl(name, mux.SetMode, mux.Args{Mode: mode})
		return err
	case "gate":
		if len(args) != 1 {
			return fmt.Errorf("usage: gate <dev> <gate>")
		}
		gate, err := parseGate(args[0])
		if err != nil {
			return err
		}
		_, err = cli.Ctl(name, mux.SetGate, mux.Args{Gate: gate})
		return err
	case "load", "wport", "dir":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <dev> <value>", cmd)
		}
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[0], err)
		}
		switch cmd {
		case "load":
			_, err = cli.Ctl(name, mux.Load, mux.Args{Val: uint32(v)})
		case "wport":
			_, err = cli.Ctl(name, mux.WritePort, mux.Args{Val: uint32(v)})
		case "dir":
			_, err = cli.Ctl(name, mux.SetDirection, mux.Args{Mask: uint32(v)})
		}
		return err
	case "arm":
		_, err := cli.Ctl(name, mux.Arm, mux.Args{})
		return err
	case "start":
		_, err := cli.Ctl(name, mux.Start, mux.Args{})
		return err
	case "stop":
		_, err := cli.Ctl(name, mux.Stop, mux.Args{})
		return err
	case "reset":
		_, err := cli.Ctl(name, mux.ResetCounter, mux.Args{})
		return err
	case "read":
		v, err := cli.Ctl(name, mux.ReadCount, mux.Args{})
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d (0x%x)\n", name, v, v)
		return nil
	case "rport":
		v, err := cli.Ctl(name, mux.ReadPort, mux.Args{})
		if err != nil {
			return err
		}
		fmt.Printf("%s: 0x%06x\n", name, v)
		return nil
	case "cascade":
		if len(args) != 1 {
			return fmt.Errorf("usage: cascade <low> <high>")
		}
		_, err := cli.Ctl(name, mux.CascadeLink, mux.Args{Peer: args[0]})
		return err
	}
	return fmt.Errorf("unknown command %q (try \"help\")", cmd)
}

func parseMode(args []string) (*ctr.Mode, error) {
	if len(args) < 4 || len(args) > 5 {
		return nil, fmt.Errorf("usage: mode <dev> <source> <dir> <gate> <output> [repeat]")
	}
	var (
		mode ctr.Mode
		err  error
	)
	mode.Source, err = parseSource(args[0])
	if err != nil {
		return nil, err
	}
	switch args[1] {
	case "up":
		mode.Dir = ctr.Up
	case "down":
		mode.Dir = ctr.Down
	default:
		return nil, fmt.Errorf("invalid direction %q", args[1])
	}
	mode.Gate, err = parseGate(args[2])
	if err != nil {
		return nil, err
	}
	switch args[3] {
	case "pulse":
		mode.Output = ctr.OutputPulse
	case "toggle":
		mode.Output = ctr.OutputToggle
	case "pulse-low":
		mode.Output = ctr.OutputPulseLo
	default:
		return nil, fmt.Errorf("invalid output %q", args[3])
	}
	if len(args) == 5 {
		if args[4] != "repeat" {
			return nil, fmt.Errorf("invalid mode flag %q", args[4])
		}
		mode.Repeat = true
	}
	return &mode, nil
}

func parseSource(name string) (ctr.Source, error) {
	var (
		base ctr.Source
		idx  int
	)
	switch {
	case strings.HasPrefix(name, "f"):
		base, idx = ctr.SourceF1, 1
		_, err := fmt.Sscanf(name, "f%d", &idx)
		if err != nil {
			return 0, fmt.Errorf("invalid source %q", name)
		}
	case strings.HasPrefix(name, "src"):
		base, idx = ctr.SourcePin1, 1
		_, err := fmt.Sscanf(name, "src%d", &idx)
		if err != nil {
			return 0, fmt.Errorf("invalid source %q", name)
		}
	case strings.HasPrefix(name, "gate"):
		base, idx = ctr.SourceGate1, 1
		_, err := fmt.Sscanf(name, "gate%d", &idx)
		if err != nil {
			return 0, fmt.Errorf("invalid source %q", name)
		}
	default:
		return 0, fmt.Errorf("invalid source %q", name)
	}
	if idx < 1 || idx > ctr.NumFreqs {
		return 0, fmt.Errorf("invalid source %q", name)
	}
	return base + ctr.Source(idx-1), nil
}

func parseGate(name string) (ctr.Gate, error) {
	switch name {
	case "none":
		return ctr.GateNone, nil
	case "high":
		return ctr.GateHighLevel, nil
	case "low":
		return ctr.GateLowLevel, nil
	case "rise":
		return ctr.GateRisingEdge, nil
	case "fall":
		return ctr.GateFallingEdge, nil
	}
	return 0, fmt.Errorf("invalid gate %q", name)
}
