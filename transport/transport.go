// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport defines the asynchronous bulk transfer contract
// between the acquisition core and the physical device link.
//
// A Transport accepts at most one outstanding transfer per direction.
// Submission never blocks: the outcome is delivered later through the
// transfer's completion callback. Callers are expected to serialize
// the handling of completions themselves, typically by funneling them
// into a single event loop.
package transport

import "time"

// Status is the completion status of a transfer.
type Status uint8

const (
	StatusCompleted Status = iota // transfer finished normally
	StatusTimedOut                // transfer exceeded its timeout
	StatusError                   // transport reported an error
	StatusGone                    // device disconnected or closed
)

func (st Status) String() string {
	switch st {
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed out"
	case StatusError:
		return "error"
	case StatusGone:
		return "device gone"
	}
	return "unknown"
}

// Transfer is one bulk transfer in either direction. The same two
// transfer objects are reused for the whole lifetime of a capture
// session; the interpretation of Buf changes with the protocol phase.
type Transfer struct {
	Buf     []byte        // payload buffer
	Len     int           // outbound: number of bytes to send
	Actual  int           // inbound: number of bytes received
	Status  Status        // filled in on completion
	Err     error         // transport error detail, if any
	Timeout time.Duration // per-transfer timeout, 0 for none

	// Done is invoked exactly once per submission, after Status,
	// Err and Actual have been filled in.
	Done func(*Transfer)
}

// Transport submits bulk transfers to a device link.
type Transport interface {
	// SubmitOut queues xfer.Buf[:xfer.Len] for sending. An error
	// is returned only for submission failures; the transfer
	// outcome arrives through xfer.Done.
	SubmitOut(xfer *Transfer) error

	// SubmitIn queues a read into xfer.Buf. A device with nothing
	// to say completes the transfer with Actual == 0.
	SubmitIn(xfer *Transfer) error

	Close() error
}
