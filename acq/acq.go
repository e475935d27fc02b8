// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acq drives an acquisition session on an LWLA logic
// analyzer: arming the capture, polling the capture status, reading
// back the capture memory and decoding it into sample packets.
//
// All session state is owned by a single event-loop goroutine.
// Transfer completions and poll ticks are delivered to that loop and
// handled strictly one after the other, so the protocol never has
// more than one outbound and one inbound transfer in flight.
package acq

// Sink receives the decoded output of a capture session.
//
// Header is called once when the session starts, LogicSamples zero or
// more times with packed sample units, Trigger when the device first
// reports a trigger event, and End exactly once when the session
// finishes, whether it succeeded or not.
type Sink interface {
	Header(samplerate uint64) error
	LogicSamples(data []byte, unitSize int) error
	Trigger() error
	End() error
}

// protoState tracks the protocol phase of a capture session.
type protoState uint8

const (
	stIdle protoState = iota

	stStartCapture

	stStatusWait
	stStatusRequest
	stStatusResponse

	stStopCapture

	stLengthRequest
	stLengthResponse

	stReadPrepare
	stReadRequest
	stReadResponse
	stReadEnd
)

func (st protoState) String() string {
	switch st {
	case stIdle:
		return "idle"
	case stStartCapture:
		return "start-capture"
	case stStatusWait:
		return "status-wait"
	case stStatusRequest:
		return "status-request"
	case stStatusResponse:
		return "status-response"
	case stStopCapture:
		return "stop-capture"
	case stLengthRequest:
		return "length-request"
	case stLengthResponse:
		return "length-response"
	case stReadPrepare:
		return "read-prepare"
	case stReadRequest:
		return "read-request"
	case stReadResponse:
		return "read-response"
	case stReadEnd:
		return "read-end"
	}
	return "unknown"
}

// expectsResponse reports whether the state's outbound command is a
// request the device answers on the reply pipe.
func (st protoState) expectsResponse() bool {
	switch st {
	case stStatusRequest, stLengthRequest, stReadRequest:
		return true
	}
	return false
}

// response returns the state entered once the request command has
// been sent and the reply is awaited.
func (st protoState) response() protoState { return st + 1 }

// request returns the request state matching a response state.
func (st protoState) request() protoState { return st - 1 }

func (st protoState) isResponse() bool {
	switch st {
	case stStatusResponse, stLengthResponse, stReadResponse:
		return true
	}
	return false
}
