// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"

	"github.com/go-sigrok/lwla/wire"
)

// LWLA1034 register addresses.
const (
	regMemCtrl  uint16 = 0x1074 // capture buffer control
	regMemFill  uint16 = 0x1078 // capture buffer fill level
	regMemStart uint16 = 0x107C // capture buffer start address

	regClkBoost uint16 = 0x1094 // logic clock boost flag

	regLongStrobe uint16 = 0x10B0 // long register read/write strobe
	regLongAddr   uint16 = 0x10B4 // long register address
	regLongLow    uint16 = 0x10B8 // long register low word
	regLongHigh   uint16 = 0x10BC // long register high word
)

// Flag bits for regMemCtrl.
const (
	memCtrlWrite  uint32 = 1 << 0
	memCtrlClrIdx uint32 = 1 << 1
)

// LWLA1034 long register addresses.
const (
	lregChanMask = 0 // channel enable mask
	lregDivCount = 1 // clock divider max count
	lregTrgValue = 2 // trigger level/slope bits
	lregTrgType  = 3 // trigger type bits (level or edge)
	lregTrgEn    = 4 // trigger enable mask
	lregMemFill  = 5 // capture memory fill level or limit

	lregDuration  = 7 // elapsed time in ms (0.8 ms at 125 MS/s)
	lregChanState = 8 // current logic levels at the inputs
	lregStatus    = 9 // capture status flags

	lregCapCtrl = 10 // capture control bits
)

// Flag bits for lregCapCtrl.
const (
	capCtrlTrgEn       uint64 = 1 << 0
	capCtrlClrTimebase uint64 = 1 << 2
	capCtrlFlushFifo   uint64 = 1 << 4
	capCtrlClrFifoFull uint64 = 1 << 5
	capCtrlClrCounter  uint64 = 1 << 6
)

// Start index and count for the bulk long register status poll. The
// first five long registers do not return useful values when read, so
// skip over them to reduce the transfer size.
const (
	readLRegsStart = lregMemFill
	readLRegsCount = lregStatus + 1 - readLRegsStart
)

// Bits selecting the external TRG input edge in the trigger enable
// mask.
const (
	extTrgRising  uint64 = 1 << 35
	extTrgFalling uint64 = 1 << 34
)

// model1034 implements the protocol personality of the 36-bit memory
// models.
type model1034 struct {
	prof *wire.Profile
	dec  *wire.Decoder
}

func newModel1034(prof *wire.Profile) *model1034 {
	return &model1034{
		prof: prof,
		dec:  wire.NewDecoder(prof.Channels),
	}
}

func (m *model1034) recvLen() int {
	// Round up to the endpoint buffer size to avoid transfer
	// overflows on hiccups.
	return (wire.PackedLen36(int(m.prof.ReadChunkLen)) + 511) / 512 * 512
}

func (m *model1034) pending() uint64 {
	_, n := m.dec.Run()
	return n
}

// queueLongReg appends the short register access sequence performing
// one long register write.
func (m *model1034) queueLongReg(dev *Device, addr uint32, val uint64) {
	dev.queueReg(regLongAddr, addr)
	dev.queueReg(regLongLow, uint32(val))
	dev.queueReg(regLongHigh, uint32(val>>32))
	dev.queueReg(regLongStrobe, 0)
}

// setup arms the capture hardware: clears the capture memory index,
// applies the clock boost and writes the whole long register file in
// one bulk command.
func (m *model1034) setup(dev *Device) error {
	acq := dev.acq
	cfg := &dev.cfg

	m.dec.Reset()

	captureInit := []regval{
		{regMemCtrl, memCtrlClrIdx},
		{regMemCtrl, memCtrlWrite},
		{regLongAddr, lregCapCtrl},
		{regLongLow, uint32(capCtrlClrTimebase | capCtrlFlushFifo | capCtrlClrFifoFull | capCtrlClrCounter)},
		{regLongHigh, 0},
		{regLongStrobe, 0},
	}
	for _, rv := range captureInit {
		err := dev.writeRegSync(rv.reg, rv.val)
		if err != nil {
			return err
		}
	}

	var boost uint32
	if acq.boost {
		boost = 1
	}
	err := dev.writeRegSync(regClkBoost, boost)
	if err != nil {
		return err
	}

	var divider uint64
	if cfg.clockSource == ClockInternal && !acq.boost {
		divider = m.prof.BaseClock/cfg.samplerate - 1
	}

	trgMask := cfg.triggerMask
	if cfg.triggerSource == TriggerExtTRG {
		switch cfg.triggerSlope {
		case EdgeRising:
			trgMask |= extTrgRising
		case EdgeFalling:
			trgMask |= extTrgFalling
		}
	}

	lregs := make([]uint64, lregStatus+1)
	lregs[lregChanMask] = cfg.channelMask
	lregs[lregDivCount] = divider
	lregs[lregTrgValue] = cfg.triggerValues
	lregs[lregTrgType] = cfg.triggerEdgeMask
	lregs[lregTrgEn] = trgMask
	// The full threshold sits slightly below the physical end of
	// capture memory, compensating for pipeline latency.
	lregs[lregMemFill] = uint64(m.prof.MemoryDepth) - 16

	acq.out.Len = len(wire.AppendWriteLRegs(acq.out.Buf[:0], lregs))
	return dev.sendSync()
}

func (m *model1034) prepareRequest(dev *Device) error {
	acq := dev.acq

	switch dev.state {
	case stStartCapture:
		m.queueLongReg(dev, lregCapCtrl, capCtrlTrgEn)
	case stStopCapture:
		m.queueLongReg(dev, lregCapCtrl, 0)
		dev.queueReg(regClkBoost, 0)
	case stReadPrepare:
		// Ramp up the clock for the readout regardless of the
		// configured samplerate.
		dev.queueReg(regClkBoost, 1)
		dev.queueReg(regMemCtrl, memCtrlClrIdx)
		dev.queueReg(regMemStart, m.prof.ReadStartAddr)
	case stReadEnd:
		dev.queueReg(regClkBoost, 0)
	case stStatusRequest:
		acq.out.Len = len(wire.AppendReadLRegs(acq.out.Buf[:0], readLRegsStart, readLRegsCount))
	case stLengthRequest:
		dev.queueReg(regMemFill, 0)
	case stReadRequest:
		// Always read a multiple of 8 device words to keep the
		// reply aligned to whole slices.
		remaining := (acq.memStop - acq.memNext + 7) / 8 * 8
		count := m.prof.ReadChunkLen
		if remaining < count {
			count = remaining
		}
		acq.out.Len = len(wire.AppendReadMem(acq.out.Buf[:0], wire.CmdReadMem36, acq.memNext, count))
		acq.memNext += count
	default:
		return fmt.Errorf("acq: unhandled request state %v", dev.state)
	}
	return nil
}

func (m *model1034) handleStatus(dev *Device) error {
	acq := dev.acq

	st, err := wire.DecodeStatus(acq.in.Buf[:acq.in.Actual])
	if err != nil {
		return fmt.Errorf("acq: could not decode status reply: %w", err)
	}
	acq.fill = st.Fill
	acq.durationNow = st.Duration
	acq.status = st.Flags
	// The 125 MS/s mode runs the FPGA logic at a 25% higher clock
	// rate, which also speeds up the millisecond counter.
	if acq.boost {
		acq.durationNow = acq.durationNow * 4 / 5
	}
	return nil
}

func (m *model1034) handleLength(dev *Device) error {
	acq := dev.acq

	m.dec.Reset()
	acq.memNext = m.prof.ReadStartAddr
	acq.memStop = acq.regSeq[0].val
	return nil
}

// handleRead expands one stretch of packed, run-length coded capture
// words into the session packet.
func (m *model1034) handleRead(dev *Device) error {
	acq := dev.acq

	// Expect a multiple of 8 36-bit words packed into 9 32-bit words.
	expect := wire.PackedLen36(int(acq.memNext-acq.memDone) + acq.inIndex)
	if acq.in.Actual != expect {
		return fmt.Errorf("acq: received size %d does not match expected size %d",
			acq.in.Actual, expect)
	}

	endAddr := acq.memNext
	if acq.memStop < endAddr {
		endAddr = acq.memStop
	}
	wordsLeft := endAddr - acq.memDone

	var wi uint32
	for wi = 0; ; wi++ {
		// Number of samples with room in the packet.
		maxSamples := acq.samplesMax - acq.samplesDone
		if room := uint64(packetUnits - acq.outIndex); room < maxSamples {
			maxSamples = room
		}
		sample, runSamples := m.dec.Run()
		if maxSamples < runSamples {
			runSamples = maxSamples
		}

		// Expand run-length samples into the packet.
		out := acq.packet[acq.outIndex*m.prof.UnitSize:]
		for ri := uint64(0); ri < runSamples; ri++ {
			out[0] = byte(sample)
			out[1] = byte(sample >> 8)
			out[2] = byte(sample >> 16)
			out[3] = byte(sample >> 24)
			out[4] = byte(sample >> 32)
			out = out[m.prof.UnitSize:]
		}
		m.dec.Consume(runSamples)
		acq.outIndex += int(runSamples)
		acq.samplesDone += runSamples

		if runSamples == maxSamples {
			break // packet full or sample limit reached
		}
		if wi >= wordsLeft {
			break // done with current transfer
		}

		m.dec.Feed(wire.Word36(acq.in.Buf, acq.inIndex+int(wi)))
	}
	acq.inIndex += int(wi)
	acq.memDone += wi
	return nil
}
