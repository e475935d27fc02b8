// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"

	"github.com/go-sigrok/lwla/transport"
	"github.com/go-sigrok/lwla/wire"
)

// packetUnits is the number of sample units buffered before a packet
// is flushed to the sink.
const packetUnits = 10 * 1000

// maxSendLen sizes the outbound transfer buffer. The largest command
// sent during a session is the bulk long register write used to arm
// the capture.
const maxSendLen = 128

// regval is one entry of a register access sequence. For write
// sequences val holds the value to write; for read sequences it
// receives the value read back.
type regval struct {
	reg uint16
	val uint32
}

// session is the per-capture state: limits, capture memory read
// progress, the two reused transfer objects and the outgoing packet
// buffer. A new session is created on every Start.
type session struct {
	samplesMax  uint64 // maximum number of samples to decode
	samplesDone uint64 // samples emitted to the sink

	durationMax uint64 // capture time limit, ms
	durationNow uint64 // device-reported elapsed capture time, ms

	status uint32 // last decoded status flags
	fill   uint32 // device-reported capture memory fill level

	memDone uint32 // capture memory words fully decoded
	memNext uint32 // next capture memory address to request
	memStop uint32 // end of the capture memory region to read

	inIndex  int // device words consumed from the inbound buffer
	outIndex int // sample units buffered in packet

	boost bool // clock boost active for this session

	regSeq []regval
	regPos int

	retries int // consecutive empty inbound completions

	out *transport.Transfer
	in  *transport.Transfer

	packet []byte
}

func (dev *Device) newSession() (*session, error) {
	cfg := &dev.cfg

	acq := &session{
		samplesMax:  wire.MaxLimitSamples,
		durationMax: wire.MaxLimitMsec,
		regSeq:      make([]regval, 0, 32),
		packet:      make([]byte, packetUnits*dev.prof.UnitSize),
	}

	if cfg.hasMsec {
		if cfg.limitMsec == 0 || cfg.limitMsec > wire.MaxLimitMsec {
			return nil, fmt.Errorf("acq: invalid capture time limit %d ms", cfg.limitMsec)
		}
		acq.durationMax = cfg.limitMsec
		dev.msg.Printf("acquisition time limit %d ms", cfg.limitMsec)
	}
	if cfg.hasSamples {
		if cfg.limitSamples == 0 || cfg.limitSamples > wire.MaxLimitSamples {
			return nil, fmt.Errorf("acq: invalid sample count limit %d", cfg.limitSamples)
		}
		acq.samplesMax = cfg.limitSamples
		dev.msg.Printf("acquisition sample count limit %d", cfg.limitSamples)
	}

	switch cfg.clockSource {
	case ClockInternal:
		_, boost, err := dev.prof.Divider(cfg.samplerate)
		if err != nil {
			return nil, fmt.Errorf("acq: could not configure samplerate: %w", err)
		}
		acq.boost = boost
		dev.msg.Printf("internal clock, samplerate %d", cfg.samplerate)

		// If only one of the limits is set, derive the other one.
		switch {
		case !cfg.hasMsec && cfg.hasSamples:
			acq.durationMax = cfg.limitSamples*1000/cfg.samplerate + 1
		case !cfg.hasSamples && cfg.hasMsec:
			acq.samplesMax = cfg.limitMsec * cfg.samplerate / 1000
		}
	case ClockExternal:
		// The logic clock follows the external input, so the
		// divider is bypassed as if boosted.
		acq.boost = true
		switch cfg.clockEdge {
		case EdgeRising:
			dev.msg.Printf("external clock, rising edge")
		case EdgeFalling:
			dev.msg.Printf("external clock, falling edge")
		}
	}

	acq.out = &transport.Transfer{
		Buf:     make([]byte, maxSendLen),
		Timeout: cfg.timeout,
		Done:    dev.completed,
	}
	acq.in = &transport.Transfer{
		Buf:     make([]byte, dev.mdl.recvLen()),
		Timeout: cfg.timeout,
		Done:    dev.completed,
	}

	return acq, nil
}
