// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ctr-cfg inspects the channel setups of the conditions
// database, and optionally applies one to a running ctr-srv instance.
//
// Usage:
//
//	$> ctr-cfg                    ## list the known setups
//	$> ctr-cfg -setup cosmics     ## display the "cosmics" setup
//	$> ctr-cfg -setup cosmics -apply -addr localhost:8867
package main // import "github.com/go-daq/pcictr/cmd/ctr-cfg"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-daq/pcictr/confdb"
	"github.com/go-daq/pcictr/mux"
)

const dbname = "ctrsrv"

func main() {
	log.SetPrefix("ctr-cfg: ")
	log.SetFlags(0)

	var (
		setup = flag.String("setup", "", "setup to inspect")
		apply = flag.Bool("apply", false, "apply the setup to a running server")
		addr  = flag.String("addr", "localhost:8867", "address of the control server")
	)

	flag.Parse()

	db, err := confdb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open conditions db: %+v", err)
	}
	defer db.Close()

	err = doQuery(db, *setup, *apply, *addr)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *confdb.DB, name string, apply bool, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if name == "" {
		setups, err := db.Setups(ctx)
		if err != nil {
			return fmt.Errorf("could not list setups: %w", err)
		}
		log.Printf("setups: %d", len(setups))
		for _, v := range setups {
			log.Printf(">>> %q", v)
		}
		return nil
	}

	setup, err := db.Setup(ctx, name)
	if err != nil {
		return fmt.Errorf("could not get setup %q: %w", name, err)
	}
	log.Printf("setup %q: %d channels", setup.Name, len(setup.Channels))
	for _, ch := range setup.Channels {
		log.Printf(">>> %s: src=%v dir=%v gate=%v out=%v repeat=%v load=%d",
			ch.Name(),
			ch.Mode.Source, ch.Mode.Dir, ch.Mode.Gate, ch.Mode.Output,
			ch.Mode.Repeat, ch.Load,
		)
	}

	if !apply {
		return nil
	}

	cli, err := mux.Dial(addr)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", addr, err)
	}
	defer cli.Close()

	err = setup.Apply(cli)
	if err != nil {
		return fmt.Errorf("could not apply setup %q: %w", name, err)
	}
	log.Printf("setup %q applied to %q", name, addr)
	return nil
}
