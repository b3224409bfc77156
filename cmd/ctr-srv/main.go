// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ctr-srv attaches the counter/timer boards of the host and
// serves the control protocol on a TCP socket, plus a read-only HTTP
// status API.
package main // import "github.com/go-daq/pcictr/cmd/ctr-srv"

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/go-daq/pcictr/ctr"
	"github.com/go-daq/pcictr/mux"
)

func main() {
	log.SetPrefix("ctr-srv: ")
	log.SetFlags(0)

	var (
		addr  = flag.String("addr", ":8867", "[ip]:port of the control socket")
		web   = flag.String("web", ":8080", "[ip]:port of the HTTP status API")
		sysfs = flag.String("sysfs", "/sys/bus/pci/devices", "sysfs PCI device directory to scan")
	)

	flag.Parse()

	err := run(*addr, *web, *sysfs)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr, web, sysfs string) error {
	tab, err := ctr.Attach(ctr.WithSysfsRoot(sysfs))
	if err != nil {
		return fmt.Errorf("could not attach boards: %w", err)
	}
	defer tab.Close()

	srv, err := mux.NewServer(addr, mux.New(tab))
	if err != nil {
		return fmt.Errorf("could not create control server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	hsrv := &http.Server{Addr: web, Handler: mux.NewHandler(tab)}

	var grp errgroup.Group
	grp.Go(func() error {
		log.Printf("serving control protocol on %q...", srv.Addr())
		return srv.Serve()
	})
	grp.Go(func() error {
		log.Printf("serving HTTP status on %q...", web)
		err := hsrv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	go func() {
		<-stop
		_ = srv.Close()
		_ = hsrv.Close()
	}()

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not serve: %w", err)
	}
	return nil
}
