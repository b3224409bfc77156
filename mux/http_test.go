// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func httpGet(t *testing.T, url string, code int, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("could not GET %q: %+v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != code {
		t.Fatalf("GET %q: got=%d, want=%d", url, resp.StatusCode, code)
	}
	if v != nil {
		err = json.NewDecoder(resp.Body).Decode(v)
		if err != nil {
			t.Fatalf("could not decode %q reply: %+v", url, err)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	mux, _ := newTestMux(t)
	web := httptest.NewServer(NewHandler(mux.Table()))
	defer web.Close()

	var boards []boardJSON
	httpGet(t, web.URL+"/boards", http.StatusOK, &boards)
	if len(boards) != 1 {
		t.Fatalf("invalid number of boards: got=%d, want=1", len(boards))
	}
	if got, want := boards[0].Model, "PCI-CTR10"; got != want {
		t.Fatalf("invalid model: got=%q, want=%q", got, want)
	}
	if got, want := boards[0].Counters, 10; got != want {
		t.Fatalf("invalid number of counters: got=%d, want=%d", got, want)
	}

	var brd boardJSON
	httpGet(t, web.URL+"/boards/0", http.StatusOK, &brd)
	if brd != boards[0] {
		t.Fatalf("board mismatch:\ngot = %+v\nwant= %+v", brd, boards[0])
	}

	// an unconfigured counter reports no mode and no count
	var c counterJSON
	httpGet(t, web.URL+"/boards/0/counters/3", http.StatusOK, &c)
	if got, want := c.Name, "CTR03"; got != want {
		t.Fatalf("invalid counter name: got=%q, want=%q", got, want)
	}
	if got, want := c.State, "unconfigured"; got != want {
		t.Fatalf("invalid counter state: got=%q, want=%q", got, want)
	}
	if c.Mode != nil || c.Count != nil {
		t.Fatalf("unconfigured counter leaked data: %+v", c)
	}

	mode := testMode()
	if _, err := mux.Ctl("CTR03", SetMode, Args{Mode: &mode}); err != nil {
		t.Fatalf("could not set mode: %+v", err)
	}
	if _, err := mux.Ctl("CTR03", Load, Args{Val: 1234}); err != nil {
		t.Fatalf("could not load counter: %+v", err)
	}
	httpGet(t, web.URL+"/boards/0/counters/3", http.StatusOK, &c)
	if got, want := c.State, "armed"; got != want {
		t.Fatalf("invalid counter state: got=%q, want=%q", got, want)
	}
	if c.Mode == nil || *c.Mode != mode {
		t.Fatalf("invalid counter mode: %+v", c.Mode)
	}
	if c.Count == nil || *c.Count != 1234 {
		t.Fatalf("invalid counter count: %+v", c.Count)
	}

	if _, err := mux.Ctl("DIO0A", SetDirection, Args{Mask: 0xff}); err != nil {
		t.Fatalf("could not set direction: %+v", err)
	}
	if _, err := mux.Ctl("DIO0A", WritePort, Args{Val: 0x42}); err != nil {
		t.Fatalf("could not write port: %+v", err)
	}
	var p dioJSON
	httpGet(t, web.URL+"/boards/0/dio/0", http.StatusOK, &p)
	if got, want := p.Name, "DIO0A"; got != want {
		t.Fatalf("invalid port name: got=%q, want=%q", got, want)
	}
	if p.Direction != 0xff || p.Value != 0x42 {
		t.Fatalf("invalid port status: %+v", p)
	}

	httpGet(t, web.URL+"/boards/7", http.StatusNotFound, nil)
	httpGet(t, web.URL+"/boards/0/counters/11", http.StatusNotFound, nil)
	httpGet(t, web.URL+"/boards/0/dio/2", http.StatusNotFound, nil)
}
