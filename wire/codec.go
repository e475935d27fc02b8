// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the LWLA command codec: outgoing commands
// are sequences of 16-bit little-endian words, replies come back as
// 32-bit little-endian words, and capture memory reads additionally
// pack eight 36-bit device words into nine 32-bit words.
package wire

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Command opcodes. Every command starts with one of these as its
// first 16-bit word.
const (
	CmdReadReg    uint16 = 0x01 // read a single 32-bit register
	CmdWriteReg   uint16 = 0x02 // write a single 32-bit register
	CmdReadMem32  uint16 = 0x03 // read a block of 32-bit capture memory
	CmdReadMem36  uint16 = 0x06 // read a block of 36-bit capture memory
	CmdWriteLRegs uint16 = 0x07 // bulk write of 64-bit long registers
	CmdReadLRegs  uint16 = 0x08 // bulk read of 64-bit long registers
)

func appendU16(p []byte, v uint16) []byte {
	return append(p, byte(v), byte(v>>8))
}

func appendU32(p []byte, v uint32) []byte {
	// 32-bit quantities go out as two 16-bit words, low word first.
	p = appendU16(p, uint16(v))
	return appendU16(p, uint16(v>>16))
}

// AppendRegRead appends a register read command for reg to p.
func AppendRegRead(p []byte, reg uint16) []byte {
	p = appendU16(p, CmdReadReg)
	return appendU16(p, reg)
}

// AppendRegWrite appends a register write command to p.
func AppendRegWrite(p []byte, reg uint16, val uint32) []byte {
	p = appendU16(p, CmdWriteReg)
	p = appendU16(p, reg)
	return appendU32(p, val)
}

// AppendReadMem appends a capture memory read command to p.
// The opcode selects between 32-bit and 36-bit memory layouts,
// addr and count are in device memory words.
func AppendReadMem(p []byte, cmd uint16, addr, count uint32) []byte {
	p = appendU16(p, cmd)
	p = appendU32(p, addr)
	return appendU32(p, count)
}

// AppendReadLRegs appends a bulk long register read command to p.
// Unlike memory reads, the address and count fit in one 16-bit word each.
func AppendReadLRegs(p []byte, addr, count uint16) []byte {
	p = appendU16(p, CmdReadLRegs)
	p = appendU16(p, addr)
	return appendU16(p, count)
}

// AppendWriteLRegs appends a bulk long register write command to p.
// The regs slice holds the register values starting at address 0.
func AppendWriteLRegs(p []byte, regs []uint64) []byte {
	p = appendU16(p, CmdWriteLRegs)
	p = appendU16(p, 0)
	p = appendU16(p, uint16(len(regs)))
	for _, v := range regs {
		p = appendU32(p, uint32(v))
		p = appendU32(p, uint32(v>>32))
	}
	return p
}

// RegValue decodes the reply to a single register read.
func RegValue(p []byte) (uint32, error) {
	if len(p) != 4 {
		return 0, xerrors.Errorf("wire: register reply size %d does not match expected size 4", len(p))
	}
	return binary.LittleEndian.Uint32(p), nil
}

// LongReg decodes the i-th 64-bit long register of a bulk read reply.
// Long registers are transferred as two 32-bit words, low word first.
func LongReg(p []byte, i int) (uint64, error) {
	if len(p) < 8*i+8 {
		return 0, xerrors.Errorf("wire: long register reply too short (got=%d, want>=%d)", len(p), 8*i+8)
	}
	lo := binary.LittleEndian.Uint32(p[8*i:])
	hi := binary.LittleEndian.Uint32(p[8*i+4:])
	return uint64(hi)<<32 | uint64(lo), nil
}

// PackedLen36 returns the size in bytes of a memory read reply holding
// n 36-bit device words. The device rounds reads up to whole slices of
// 8 words, mapped to 9 32-bit words each.
func PackedLen36(n int) int {
	return (n + 7) / 8 * 9 * 4
}

// Word36 extracts the i-th 36-bit device word from a packed memory
// read reply. Each slice of 8 consecutive device words occupies nine
// 32-bit little-endian words: the low 32 bits of each device word
// followed by one word collecting the eight high nibbles. The buffer
// must hold the whole slice containing word i.
func Word36(p []byte, i int) uint64 {
	var (
		slice = i / 8 * 9 * 4 // byte offset of the slice
		si    = i % 8         // device word index within the slice
	)
	nibbles := uint64(binary.LittleEndian.Uint32(p[slice+8*4:]))
	word := uint64(binary.LittleEndian.Uint32(p[slice+4*si:]))
	word |= (nibbles << (4*si + 4)) & (0xF << 32)
	return word
}
