// Copyright 2022 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctr

import "errors"

var (
	// ErrHardwareBusy is returned when a chip did not acknowledge a
	// register transaction within its retry budget. The transaction
	// left no partial state behind and may be retried.
	ErrHardwareBusy = errors.New("ctr: hardware busy")

	// ErrInvalidState is returned when an operation is not legal in the
	// current state of the resource. No hardware access took place.
	ErrInvalidState = errors.New("ctr: invalid state")

	// ErrInvalidMode is returned by SetMode for a mode combination the
	// hardware can not realize.
	ErrInvalidMode = errors.New("ctr: invalid mode")

	// ErrInvalidTopology is returned for an illegal cascade request.
	ErrInvalidTopology = errors.New("ctr: invalid cascade topology")

	// ErrNoSuchChannel is returned when a channel identifier does not
	// resolve to a discovered resource.
	ErrNoSuchChannel = errors.New("ctr: no such channel")
)
