// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux

import (
	"encoding/json"
	"fmt"
)

// Op is a control operation on an open device. Counter and DIO devices
// accept disjoint subsets of the op set.
type Op uint8

const (
	SetMode Op = iota + 1
	Load
	Arm
	Start
	Stop
	ReadCount
	SetGate
	CascadeLink
	ResetCounter
	SetDirection
	ReadPort
	WritePort
)

var opNames = map[Op]string{
	SetMode:      "SET_MODE",
	Load:         "LOAD",
	Arm:          "ARM",
	Start:        "START",
	Stop:         "STOP",
	ReadCount:    "READ_COUNT",
	SetGate:      "SET_GATE",
	CascadeLink:  "CASCADE_LINK",
	ResetCounter: "RESET_COUNTER",
	SetDirection: "SET_DIRECTION",
	ReadPort:     "READ_PORT",
	WritePort:    "WRITE_PORT",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// ParseOp decodes the symbolic name of an operation.
func ParseOp(name string) (Op, error) {
	for op, n := range opNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("mux: unknown operation %q: %w", name, ErrInvalidOp)
}

// MarshalJSON encodes the op under its symbolic name, the form the
// control protocol carries.
func (op Op) MarshalJSON() ([]byte, error) {
	name, ok := opNames[op]
	if !ok {
		return nil, fmt.Errorf("mux: unknown operation %d: %w", uint8(op), ErrInvalidOp)
	}
	return json.Marshal(name)
}

func (op *Op) UnmarshalJSON(p []byte) error {
	var name string
	err := json.Unmarshal(p, &name)
	if err != nil {
		return fmt.Errorf("mux: could not decode operation: %w", err)
	}
	v, err := ParseOp(name)
	if err != nil {
		return err
	}
	*op = v
	return nil
}
