// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
)

// request is one control-protocol message: a named device, an op and
// its operand.
type request struct {
	Name string `json:"name"`
	Op   Op     `json:"op"`
	Args Args   `json:"args"`
}

// reply mirrors a request: ok with an optional value, or an error
// string.
type reply struct {
	OK    bool   `json:"ok"`
	Value uint32 `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server exposes the multiplexer control surface on a TCP socket,
// one JSON request/reply pair at a time per connection.
type Server struct {
	lis net.Listener
	msg *log.Logger
	mux *Mux
}

// NewServer listens on addr and serves control requests against mux.
func NewServer(addr string, mux *Mux) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mux: could not listen on %q: %w", addr, err)
	}
	return &Server{
		lis: lis,
		msg: log.New(os.Stdout, "ctr-srv: ", 0),
		mux: mux,
	}, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() string { return srv.lis.Addr().String() }

// Serve accepts and serves control connections until the listener is
// closed. Connections are independent; serialization against the
// hardware happens per chip, below the multiplexer.
func (srv *Server) Serve() error {
	for {
		conn, err := srv.lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("mux: could not accept connection: %w", err)
		}
		go srv.handle(conn)
	}
}

// Close stops accepting connections.
func (srv *Server) Close() error {
	return srv.lis.Close()
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req request
		err := dec.Decode(&req)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				srv.msg.Printf("could not decode request from %v: %+v",
					conn.RemoteAddr(), err)
				_ = enc.Encode(reply{Error: err.Error()})
			}
			return
		}

		rep := reply{OK: true}
		rep.Value, err = srv.mux.Ctl(req.Name, req.Op, req.Args)
		if err != nil {
			srv.msg.Printf("%v %q: %+v", req.Op, req.Name, err)
			rep = reply{Error: err.Error()}
		}
		err = enc.Encode(rep)
		if err != nil {
			srv.msg.Printf("could not send reply to %v: %+v",
				conn.RemoteAddr(), err)
			return
		}
	}
}
