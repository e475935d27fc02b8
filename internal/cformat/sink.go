// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cformat

import (
	"fmt"
	"io"

	"github.com/go-sigrok/lwla/internal/crc16"
)

// Sink streams an acquisition session into the capture container
// format as the session produces data, without buffering the whole
// capture in memory. It implements the session output interface of
// package acq.
type Sink struct {
	w   io.Writer
	buf []byte
	err error
	crc crc16.Hash16

	channels uint8
	unit     uint8
	nunits   uint64
	open     bool
}

// NewSink returns a sink writing captures from a device with the
// given channel count and sample unit size to w.
func NewSink(w io.Writer, channels, unitSize int) *Sink {
	return &Sink{
		w:        w,
		buf:      make([]byte, 8),
		crc:      crc16.New(nil),
		channels: uint8(channels),
		unit:     uint8(unitSize),
	}
}

// Header starts a new capture on the stream.
func (snk *Sink) Header(samplerate uint64) error {
	if snk.open {
		return fmt.Errorf("cformat: capture already open")
	}
	snk.err = nil
	snk.crc.Reset()
	snk.nunits = 0
	snk.open = true

	snk.writeU8(capHeader)
	snk.writeU8(Version)
	snk.writeU64(samplerate)
	snk.writeU8(snk.channels)
	snk.writeU8(snk.unit)
	if snk.err != nil {
		return fmt.Errorf("cformat: could not write capture header: %w", snk.err)
	}
	return nil
}

// LogicSamples appends one block of packed sample units.
func (snk *Sink) LogicSamples(data []byte, unitSize int) error {
	if !snk.open {
		return fmt.Errorf("cformat: capture not open")
	}
	if unitSize != int(snk.unit) {
		return fmt.Errorf("cformat: invalid unit size (got=%d, want=%d)", unitSize, snk.unit)
	}
	if len(data) == 0 {
		return nil
	}

	snk.writeU8(capLogic)
	snk.writeU32(uint32(len(data)))
	snk.write(data)
	if snk.err != nil {
		return fmt.Errorf("cformat: could not write logic block: %w", snk.err)
	}
	snk.nunits += uint64(len(data) / unitSize)
	return nil
}

// Trigger marks the current stream position as the trigger point.
func (snk *Sink) Trigger() error {
	if !snk.open {
		return fmt.Errorf("cformat: capture not open")
	}
	snk.writeU8(capTrigger)
	snk.writeU64(snk.nunits)
	if snk.err != nil {
		return fmt.Errorf("cformat: could not write trigger marker: %w", snk.err)
	}
	return nil
}

// End closes the capture, appending the trailer and CRC-16 checksum.
func (snk *Sink) End() error {
	if !snk.open {
		return fmt.Errorf("cformat: capture not open")
	}
	snk.open = false

	snk.writeU8(capTrailer)
	crc := snk.crc.Sum16()
	snk.writeU16(crc)
	if snk.err != nil {
		return fmt.Errorf("cformat: could not write capture trailer: %w", snk.err)
	}
	return nil
}

func (snk *Sink) crcw(p []byte) {
	_, _ = snk.crc.Write(p) // can not fail.
}

func (snk *Sink) write(p []byte) {
	if snk.err != nil {
		return
	}
	_, snk.err = snk.w.Write(p)
	snk.crcw(p)
}

func (snk *Sink) writeU8(v uint8) {
	const n = 1
	snk.buf[0] = v
	snk.write(snk.buf[:n])
}

func (snk *Sink) writeU16(v uint16) {
	const n = 2
	snk.buf[0] = byte(v >> 8)
	snk.buf[1] = byte(v)
	snk.write(snk.buf[:n])
}

func (snk *Sink) writeU32(v uint32) {
	const n = 4
	snk.buf[0] = byte(v >> 24)
	snk.buf[1] = byte(v >> 16)
	snk.buf[2] = byte(v >> 8)
	snk.buf[3] = byte(v)
	snk.write(snk.buf[:n])
}

func (snk *Sink) writeU64(v uint64) {
	const n = 8
	for i := 0; i < n; i++ {
		snk.buf[i] = byte(v >> (56 - 8*i))
	}
	snk.write(snk.buf[:n])
}
