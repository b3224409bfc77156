// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	gmux "github.com/gorilla/mux"

	"github.com/go-daq/pcictr/ctr"
)

// NewHandler returns a read-only HTTP view of the board table. All
// mutation goes through the control socket; the HTTP surface only
// reports.
func NewHandler(tab *ctr.Table) http.Handler {
	h := &httpHandler{tab: tab}
	r := gmux.NewRouter()
	r.HandleFunc("/boards", h.boards).Methods(http.MethodGet)
	r.HandleFunc("/boards/{board}", h.board).Methods(http.MethodGet)
	r.HandleFunc("/boards/{board}/counters/{ctr}", h.counter).Methods(http.MethodGet)
	r.HandleFunc("/boards/{board}/dio/{port}", h.dio).Methods(http.MethodGet)
	return r
}

type httpHandler struct {
	tab *ctr.Table
}

type boardJSON struct {
	ID       int    `json:"id"`
	Model    string `json:"model"`
	Addr     string `json:"addr"`
	Counters int    `json:"counters"`
	DIOs     int    `json:"dios"`
}

type counterJSON struct {
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Cascaded bool      `json:"cascaded"`
	Mode     *ctr.Mode `json:"mode,omitempty"`
	Count    *uint32   `json:"count,omitempty"`
}

type dioJSON struct {
	Name      string `json:"name"`
	Direction uint32 `json:"direction"`
	Value     uint32 `json:"value"`
}

func boardOf(brd *ctr.Board) boardJSON {
	return boardJSON{
		ID:       brd.ID(),
		Model:    brd.Model().String(),
		Addr:     brd.Addr(),
		Counters: brd.NumCounters(),
		DIOs:     brd.NumDIOs(),
	}
}

func (h *httpHandler) boards(w http.ResponseWriter, r *http.Request) {
	boards := make([]boardJSON, 0, h.tab.NumBoards())
	for i := 0; i < h.tab.NumBoards(); i++ {
		brd, err := h.tab.Board(i)
		if err != nil {
			writeErr(w, err)
			return
		}
		boards = append(boards, boardOf(brd))
	}
	writeJSON(w, boards)
}

func (h *httpHandler) board(w http.ResponseWriter, r *http.Request) {
	brd, err := h.tab.Board(intVar(r, "board"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, boardOf(brd))
}

func (h *httpHandler) counter(w http.ResponseWriter, r *http.Request) {
	bid := intVar(r, "board")
	c, err := h.tab.Counter(bid, intVar(r, "ctr"))
	if err != nil {
		writeErr(w, err)
		return
	}

	out := counterJSON{
		Name:     DeviceID{Board: bid, Kind: ctr.KindCounter, Index: c.ID()}.Name(),
		State:    c.State().String(),
		Cascaded: c.Cascaded(),
	}
	if c.State() != ctr.Unconfigured {
		mode := c.Mode()
		out.Mode = &mode
	}
	if v, err := c.Read(); err == nil {
		out.Count = &v
	}
	writeJSON(w, out)
}

func (h *httpHandler) dio(w http.ResponseWriter, r *http.Request) {
	bid := intVar(r, "board")
	port := intVar(r, "port")
	p, err := h.tab.DIO(bid, port)
	if err != nil {
		writeErr(w, err)
		return
	}
	v, err := p.Read()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, dioJSON{
		Name:      DeviceID{Board: bid, Kind: ctr.KindDIO, Index: port}.Name(),
		Direction: p.Direction(),
		Value:     v,
	})
}

func intVar(r *http.Request, name string) int {
	v, err := strconv.Atoi(gmux.Vars(r)[name])
	if err != nil {
		return -1
	}
	return v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, ctr.ErrNoSuchChannel) {
		code = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
