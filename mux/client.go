// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/avast/retry-go"
)

// Client speaks the control protocol with a Server. It is not safe for
// concurrent use; requests and replies alternate on one connection.
type Client struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
}

// Dial connects to the control server at addr, retrying for a while so
// clients may come up before (or while) the server does.
func Dial(addr string) (*Client, error) {
	var conn net.Conn
	err := retry.Do(
		func() error {
			var err error
			conn, err = net.Dial("tcp", addr)
			return err
		},
		retry.Attempts(10),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("mux: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
	}, nil
}

// Ctl applies one control operation to the named device of the remote
// board table.
func (cli *Client) Ctl(name string, op Op, args Args) (uint32, error) {
	err := cli.enc.Encode(request{Name: name, Op: op, Args: args})
	if err != nil {
		return 0, fmt.Errorf("mux: could not send %v request: %w", op, err)
	}
	var rep reply
	err = cli.dec.Decode(&rep)
	if err != nil {
		return 0, fmt.Errorf("mux: could not decode %v reply: %w", op, err)
	}
	if !rep.OK {
		return 0, errors.New(rep.Error)
	}
	return rep.Value, nil
}

// Close closes the connection to the control server.
func (cli *Client) Close() error {
	return cli.conn.Close()
}

var _ Ctler = (*Client)(nil)
