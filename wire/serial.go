// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

// SerialWord encodes a register write for the serial-bridged family
// of devices into a single 16-bit command word. The layout was
// reverse engineered from bus captures: the value's low six bits and
// top two bits are split around the register address, and bits 5 and
// 7 of the value are additionally carried inverted. The formula is
// reproduced bit for bit; values wider than the 8-bit value field or
// the 4-bit address field are truncated.
func SerialWord(reg, val uint8) uint16 {
	var (
		a = uint16(reg)
		v = uint16(val)
	)
	return (v & 0x3f) | ((v & 0xc0) << 6) | ((a & 0xf) << 8) |
		((^v & 0x20) << 1) | ((^v & 0x80) << 7)
}

// AppendSerial appends the 16-bit serial command word for a register
// write to p, in little-endian transmission order.
func AppendSerial(p []byte, reg, val uint8) []byte {
	return appendU16(p, SerialWord(reg, val))
}
