// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cformat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-sigrok/lwla/internal/crc16"
)

// Encoder writes capture data to an output stream.
// Encoder computes the CRC-16 checksum on the fly and appends it
// at the end of the stream.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
	crc crc16.Hash16
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

func (enc *Encoder) crcw(p []byte) {
	_, _ = enc.crc.Write(p) // can not fail.
}

func (enc *Encoder) reset() {
	enc.crc.Reset()
}

// Encode writes the capture to the stream, computes the corresponding
// CRC-16 checksum on the fly and appends it to the stream.
func (enc *Encoder) Encode(cap *Capture) error {
	if cap == nil {
		return nil
	}

	enc.reset()

	enc.header(&cap.Header)
	if enc.err != nil {
		return fmt.Errorf("cformat: could not write capture header: %w", enc.err)
	}

	enc.logic(cap.Samples)
	for _, idx := range cap.Triggers {
		enc.trigger(idx)
	}
	enc.trailer()

	return enc.err
}

func (enc *Encoder) header(hdr *Header) {
	enc.writeU8(capHeader)
	enc.writeU8(Version)
	enc.writeU64(hdr.Samplerate)
	enc.writeU8(hdr.Channels)
	enc.writeU8(hdr.UnitSize)
}

func (enc *Encoder) logic(data []byte) {
	if len(data) == 0 {
		return
	}
	enc.writeU8(capLogic)
	enc.writeU32(uint32(len(data)))
	enc.write(data)
}

func (enc *Encoder) trigger(idx uint64) {
	enc.writeU8(capTrigger)
	enc.writeU64(idx)
}

func (enc *Encoder) trailer() {
	enc.writeU8(capTrailer)

	crc := enc.crc.Sum16()
	enc.writeU16(crc)
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
	enc.crcw(p)
}

func (enc *Encoder) writeU8(v uint8) {
	const n = 1
	enc.buf[0] = v
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU16(v uint16) {
	const n = 2
	binary.BigEndian.PutUint16(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU32(v uint32) {
	const n = 4
	binary.BigEndian.PutUint32(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}

func (enc *Encoder) writeU64(v uint64) {
	const n = 8
	binary.BigEndian.PutUint64(enc.buf[:n], v)
	enc.write(enc.buf[:n])
}
