// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc16 implements the 16-bit cyclic redundancy check used
// to protect capture file blocks (CCITT polynomial, MSB first,
// initial value 0xFFFF).
package crc16

import "hash"

// Size of a CRC-16 checksum in bytes.
const Size = 2

// The CCITT polynomial.
const ccitt = 0x1021

// Table is a 256-entry lookup table for efficient processing.
type Table [256]uint16

// MakeTable returns a lookup table for the given polynomial.
func MakeTable(poly uint16) *Table {
	var tab Table
	for i := range tab {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		tab[i] = crc
	}
	return &tab
}

var ccittTable = MakeTable(ccitt)

// Hash16 is the common interface implemented by 16-bit hashes.
type Hash16 interface {
	hash.Hash
	Sum16() uint16
}

type digest struct {
	crc uint16
	tab *Table
}

// New creates a new Hash16 computing the CRC-16 checksum with the
// given table. A nil table selects the CCITT polynomial.
func New(tab *Table) Hash16 {
	if tab == nil {
		tab = ccittTable
	}
	h := &digest{tab: tab}
	h.Reset()
	return h
}

func (h *digest) Size() int      { return Size }
func (h *digest) BlockSize() int { return 1 }

func (h *digest) Reset() { h.crc = 0xFFFF }

func (h *digest) Write(p []byte) (int, error) {
	crc := h.crc
	for _, v := range p {
		crc = crc<<8 ^ h.tab[byte(crc>>8)^v]
	}
	h.crc = crc
	return len(p), nil
}

func (h *digest) Sum16() uint16 { return h.crc }

func (h *digest) Sum(in []byte) []byte {
	s := h.Sum16()
	return append(in, byte(s>>8), byte(s))
}
