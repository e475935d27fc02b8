// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import "github.com/go-sigrok/lwla/wire"

// model is the per-family protocol personality of a device: register
// layout, capture setup sequence and sample data decoding. The state
// machine itself is shared between models.
type model interface {
	// setup prepares the device for a new capture session. It runs
	// synchronously before the capture is armed.
	setup(dev *Device) error

	// prepareRequest fills in the outbound command for the state
	// just entered, either directly in the transfer buffer or as a
	// queued register access sequence.
	prepareRequest(dev *Device) error

	// handleStatus decodes a status poll reply into the session.
	handleStatus(dev *Device) error

	// handleLength decodes a capture length reply and sets up the
	// memory read window.
	handleLength(dev *Device) error

	// handleRead decodes sample data from the inbound buffer into
	// the session packet until the packet is full, a limit is hit
	// or the transfer is exhausted.
	handleRead(dev *Device) error

	// pending returns the repetitions of the current run-length
	// code not yet expanded into the packet.
	pending() uint64

	// recvLen sizes the inbound transfer buffer.
	recvLen() int
}

func newModel(dev *Device, prof *wire.Profile) model {
	switch prof.Name {
	case wire.LWLA1016.Name:
		return newModel1016(prof)
	default:
		return newModel1034(prof)
	}
}
