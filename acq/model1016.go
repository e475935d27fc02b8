// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"encoding/binary"
	"fmt"

	"github.com/go-sigrok/lwla/wire"
)

// LWLA1016 register addresses.
const (
	reg16ChanMask uint16 = 0x1000 // bit mask of enabled channels

	reg16Duration uint16 = 0x1010 // capture duration in ms

	reg16MemWrPtr uint16 = 0x1070
	reg16MemRdPtr uint16 = 0x1074
	reg16MemData  uint16 = 0x1078
	reg16MemCtrl  uint16 = 0x107C

	reg16CapCount uint16 = 0x10B0

	reg16TrgSel   uint16 = 0x10B4 // write; reads back the test ID
	reg16CapCtrl  uint16 = 0x10B8
	reg16DivCount uint16 = 0x10BC // write; reads back the capture total
)

// Flag bits for reg16MemCtrl.
const (
	mem16CtrlReset uint32 = 1 << 0
	mem16CtrlWrite uint32 = 1 << 1
)

// Flag bits for reg16CapCtrl.
const (
	cap16Fifo32Full  uint32 = 1 << 0
	cap16Fifo64Full  uint32 = 1 << 1
	cap16TrgEn       uint32 = 1 << 2
	cap16ClrTimebase uint32 = 1 << 3
	cap16FifoEmpty   uint32 = 1 << 4
	cap16SampleEn    uint32 = 1 << 5
	cap16CntrNotEndr uint32 = 1 << 6
)

// model1016 implements the protocol personality of the 16-channel
// models with 32-bit capture memory. Each memory word carries two
// samples, or a sample and a repeat count in timing-state mode.
type model1016 struct {
	prof *wire.Profile

	// timing-state decode state
	sample uint16
	runLen uint64
	rle    bool
}

func newModel1016(prof *wire.Profile) *model1016 {
	return &model1016{prof: prof}
}

func (m *model1016) recvLen() int {
	return (int(m.prof.ReadChunkLen)*4 + 511) / 512 * 512
}

func (m *model1016) pending() uint64 {
	if !m.rle {
		return 0
	}
	return m.runLen
}

func (m *model1016) setup(dev *Device) error {
	cfg := &dev.cfg
	m.rle = cfg.rle
	m.sample = 0
	m.runLen = 0

	var divider uint32
	if cfg.clockSource == ClockInternal && cfg.samplerate < m.prof.BaseClock {
		divider = uint32(m.prof.BaseClock/cfg.samplerate - 1)
	}

	seq := []regval{
		{reg16ChanMask, uint32(cfg.channelMask)},
		{reg16DivCount, divider},
		{reg16CapCtrl, 0},
		{reg16Duration, 0},
		{reg16MemCtrl, mem16CtrlReset},
		{reg16MemCtrl, 0},
		{reg16MemCtrl, mem16CtrlWrite},
		{reg16CapCtrl, cap16Fifo32Full | cap16Fifo64Full},
		{reg16CapCtrl, cap16FifoEmpty},
		{reg16CapCtrl, 0},
		{reg16CapCount, m.prof.MemoryDepth - 5},
		{reg16TrgSel, uint32(cfg.triggerEdgeMask&0xFFFF)<<16 | uint32(cfg.triggerValues&0xFFFF)},
	}
	for _, rv := range seq {
		err := dev.writeRegSync(rv.reg, rv.val)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *model1016) prepareRequest(dev *Device) error {
	acq := dev.acq

	switch dev.state {
	case stStartCapture:
		dev.queueReg(reg16CapCtrl, cap16TrgEn|uint32(dev.cfg.triggerMask&0xFFFF)<<16)
	case stStopCapture:
		dev.queueReg(reg16CapCtrl, 0)
		dev.queueReg(reg16DivCount, 0)
	case stReadPrepare:
		dev.queueReg(reg16MemCtrl, 0)
	case stReadEnd:
		dev.queueReg(reg16MemCtrl, mem16CtrlReset)
		dev.queueReg(reg16MemCtrl, 0)
	case stStatusRequest:
		dev.queueReg(reg16CapCtrl, 0)
		dev.queueReg(reg16MemWrPtr, 0)
		dev.queueReg(reg16Duration, 0)
	case stLengthRequest:
		dev.queueReg(reg16CapCount, 0)
	case stReadRequest:
		count := m.prof.ReadChunkLen
		if remaining := acq.memStop - acq.memNext; remaining < count {
			count = remaining
		}
		acq.out.Len = len(wire.AppendReadMem(acq.out.Buf[:0], wire.CmdReadMem32, acq.memNext, count))
		acq.memNext += count
	default:
		return fmt.Errorf("acq: unhandled request state %v", dev.state)
	}
	return nil
}

func (m *model1016) handleStatus(dev *Device) error {
	acq := dev.acq

	acq.status = acq.regSeq[0].val & 0x7F
	acq.fill = acq.regSeq[1].val
	acq.durationNow = uint64(acq.regSeq[2].val)
	return nil
}

func (m *model1016) handleLength(dev *Device) error {
	acq := dev.acq

	m.sample = 0
	m.runLen = 0
	acq.memNext = m.prof.ReadStartAddr
	acq.memStop = acq.regSeq[0].val + m.prof.ReadStartAddr - 1
	return nil
}

func (m *model1016) handleRead(dev *Device) error {
	acq := dev.acq

	expect := (int(acq.memNext-acq.memDone) + acq.inIndex) * 4
	if acq.in.Actual != expect {
		return fmt.Errorf("acq: received size %d does not match expected size %d",
			acq.in.Actual, expect)
	}

	if m.rle {
		m.readRLE(dev)
	} else {
		m.readPlain(dev)
	}
	return nil
}

// readPlain copies samples straight out of the transfer buffer. Each
// 32-bit memory word holds two samples with their 16-bit halves
// swapped on the wire.
func (m *model1016) readPlain(dev *Device) {
	acq := dev.acq

	endAddr := acq.memNext
	if acq.memStop < endAddr {
		endAddr = acq.memStop
	}
	wordsLeft := uint64(endAddr - acq.memDone)

	maxSamples := acq.samplesMax - acq.samplesDone
	if room := uint64(packetUnits - acq.outIndex); room < maxSamples {
		maxSamples = room
	}
	runSamples := 2 * wordsLeft
	if maxSamples < runSamples {
		runSamples = maxSamples
	}

	for i := uint64(0); i < runSamples; i++ {
		word := binary.LittleEndian.Uint32(acq.in.Buf[4*(acq.inIndex+int(i/2)):])
		sample := uint16(word)
		if i%2 == 0 {
			sample = uint16(word >> 16)
		}
		binary.LittleEndian.PutUint16(acq.packet[2*(acq.outIndex+int(i)):], sample)
	}

	// Round up in case the samples limit is an odd number.
	numWords := int(runSamples+1) / 2
	acq.inIndex += numWords
	acq.memDone += uint32(numWords)
	acq.outIndex += int(runSamples)
	acq.samplesDone += runSamples
}

// readRLE expands timing-state compressed memory words: the high half
// carries the sample, the low half a repeat count minus one.
func (m *model1016) readRLE(dev *Device) {
	acq := dev.acq

	endAddr := acq.memNext
	if acq.memStop < endAddr {
		endAddr = acq.memStop
	}
	wordsLeft := uint32(0)
	if endAddr > acq.memDone {
		wordsLeft = endAddr - acq.memDone
	}

	var wi uint32
	for wi = 0; ; wi++ {
		maxSamples := acq.samplesMax - acq.samplesDone
		if room := uint64(packetUnits - acq.outIndex); room < maxSamples {
			maxSamples = room
		}
		runSamples := m.runLen
		if maxSamples < runSamples {
			runSamples = maxSamples
		}

		for ri := uint64(0); ri < runSamples; ri++ {
			binary.LittleEndian.PutUint16(acq.packet[2*(acq.outIndex+int(ri)):], m.sample)
		}
		m.runLen -= runSamples
		acq.outIndex += int(runSamples)
		acq.samplesDone += runSamples

		if runSamples == maxSamples {
			break // packet full or sample limit reached
		}
		if wi >= wordsLeft {
			break // done with current transfer
		}

		word := binary.LittleEndian.Uint32(acq.in.Buf[4*(acq.inIndex+int(wi)):])
		m.sample = uint16(word >> 16)
		m.runLen = uint64(word&0xFFFF) + 1
	}
	acq.inIndex += int(wi)
	acq.memDone += wi
}
