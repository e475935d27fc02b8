// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cformat

import (
	"encoding/binary"
	"io"

	"github.com/go-sigrok/lwla/internal/crc16"
	"golang.org/x/xerrors"
)

// Decoder reads (and validates) capture data from an underlying data
// source. Decoder computes CRC-16 checksums on the fly, during the
// acquisition of capture blocks.
type Decoder struct {
	r io.Reader

	buf []byte
	err error
	crc crc16.Hash16
}

// NewDecoder creates a decoder that reads and validates data from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

func (dec *Decoder) crcw(p []byte) {
	_, _ = dec.crc.Write(p) // can not fail.
}

func (dec *Decoder) reset() {
	dec.crc.Reset()
}

// Decode reads one complete capture from the stream and verifies its
// CRC-16 checksum.
func (dec *Decoder) Decode(cap *Capture) error {
	dec.reset()

	v := dec.readU8()
	if dec.err != nil {
		return xerrors.Errorf("cformat: could not read capture header marker: %w", dec.err)
	}
	if v != capHeader {
		return xerrors.Errorf("cformat: could not read capture header marker (got=0x%x)", v)
	}
	dec.crcU8(v)

	vers := dec.readU8()
	dec.crcU8(vers)
	if dec.err != nil {
		return xerrors.Errorf("cformat: could not read capture header: %w", dec.err)
	}
	if vers != Version {
		return xerrors.Errorf("cformat: invalid capture version (got=%d, want=%d)", vers, Version)
	}

	hdr := make([]byte, 10)
	dec.read(hdr)
	if dec.err != nil {
		return xerrors.Errorf("cformat: could not read capture header: %w", dec.err)
	}
	dec.crcw(hdr)

	cap.Header.Samplerate = binary.BigEndian.Uint64(hdr[0:8])
	cap.Header.Channels = hdr[8]
	cap.Header.UnitSize = hdr[9]
	cap.Samples = cap.Samples[:0]
	cap.Triggers = cap.Triggers[:0]

loop:
	for {
		v := dec.readU8()
		if dec.err != nil {
			if xerrors.Is(dec.err, io.EOF) {
				dec.err = io.ErrUnexpectedEOF
			}
			return xerrors.Errorf("cformat: could not read block marker/trailer: %w", dec.err)
		}

		switch v {
		default:
			return xerrors.Errorf("cformat: invalid block marker (got=0x%x)", v)

		case capLogic:
			dec.crcU8(v)
			n := dec.readU32()
			if dec.err != nil {
				return xerrors.Errorf("cformat: could not read logic block size: %w", dec.err)
			}
			dec.crcw(dec.buf[:4])

			beg := len(cap.Samples)
			cap.Samples = append(cap.Samples, make([]byte, n)...)
			dec.read(cap.Samples[beg:])
			if dec.err != nil {
				return xerrors.Errorf("cformat: could not read logic block: %w", dec.err)
			}
			dec.crcw(cap.Samples[beg:])

		case capTrigger:
			dec.crcU8(v)
			idx := dec.readU64()
			if dec.err != nil {
				return xerrors.Errorf("cformat: could not read trigger marker: %w", dec.err)
			}
			dec.crcw(dec.buf[:8])
			cap.Triggers = append(cap.Triggers, idx)

		case capTrailer:
			dec.crcU8(v)
			var (
				compCRC = dec.crc.Sum16()
				recvCRC = dec.readU16()
			)
			if dec.err != nil {
				return xerrors.Errorf("cformat: could not receive CRC-16: %w", dec.err)
			}
			if compCRC != recvCRC {
				return xerrors.Errorf(
					"cformat: inconsistent CRC: recv=0x%04x comp=0x%04x",
					recvCRC, compCRC,
				)
			}
			break loop
		}
	}

	return dec.err
}

func (dec *Decoder) read(p []byte) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, p)
}

func (dec *Decoder) readU8() uint8 {
	dec.load(1)
	return dec.buf[0]
}

func (dec *Decoder) readU16() uint16 {
	const n = 2
	dec.load(n)
	return binary.BigEndian.Uint16(dec.buf[:n])
}

func (dec *Decoder) readU32() uint32 {
	const n = 4
	dec.load(n)
	return binary.BigEndian.Uint32(dec.buf[:n])
}

func (dec *Decoder) readU64() uint64 {
	const n = 8
	dec.load(n)
	return binary.BigEndian.Uint64(dec.buf[:n])
}

func (dec *Decoder) load(n int) {
	if dec.err != nil {
		return
	}
	dec.buf = dec.buf[:n]
	_, dec.err = io.ReadFull(dec.r, dec.buf[:n])
}

func (dec *Decoder) crcU8(v uint8) {
	dec.buf[0] = v
	dec.crcw(dec.buf[:1])
}
