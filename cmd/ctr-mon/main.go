// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ctr-mon watches a set of counter channels through a ctr-srv
// instance and raises an alert when a channel stops counting.
package main // import "github.com/go-daq/pcictr/cmd/ctr-mon"

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"

	"github.com/go-daq/pcictr/mux"
)

func main() {
	var (
		addr = flag.String("addr", "localhost:8867", "address of the control server")
		freq = flag.Duration("freq", 30*time.Second, "probing interval")
	)

	flag.Parse()

	log.SetPrefix("ctr-mon: ")
	log.SetFlags(0)

	if flag.NArg() == 0 {
		log.Fatalf("missing channel names (e.g. ctr-mon CTR01 CTR02)")
	}

	err := run(*addr, *freq, flag.Args())
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr string, freq time.Duration, names []string) error {
	cli, err := mux.Dial(addr)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", addr, err)
	}
	defer cli.Close()

	mon := &monitor{
		cli:    cli,
		freq:   freq,
		table:  make(map[string]uint32),
		alerts: make(map[string]int),
	}

	log.Printf("watching %v every %v...", names, freq)
	tick := time.NewTicker(freq)
	defer tick.Stop()

	for range tick.C {
		mon.probe(names)
	}
	return nil
}

type monitor struct {
	cli  *mux.Client
	freq time.Duration

	table  map[string]uint32
	alerts map[string]int // number of alerts sent per channel
}

func (mon *monitor) probe(names []string) {
	for _, name := range names {
		cur, err := mon.cli.Ctl(name, mux.ReadCount, mux.Args{})
		if err != nil {
			log.Printf("could not read %q: %+v", name, err)
			delete(mon.table, name)
			continue
		}
		ref, ok := mon.table[name]
		mon.table[name] = cur
		if !ok {
			// first reading. nothing to compare against.
			continue
		}
		if ref == cur {
			// channel didn't count!
			mon.alert(name, cur)
			continue
		}
		mon.alerts[name] = 0
	}
}

func (mon *monitor) alert(name string, count uint32) {
	log.Printf("channel %q didn't count in the last %v (count=%d)",
		name, mon.freq, count,
	)
	mon.alerts[name]++

	const maxAlerts = 5
	if mon.alerts[name] < maxAlerts {
		mon.alertMail(name, count)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (mon *monitor) alertMail(name string, count uint32) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[ctr-mon] channel alert: %q", name))
	msg.SetBody("text/plain", fmt.Sprintf("channel: %q\ncount: %d\nfreq: %v",
		name, count, mon.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
