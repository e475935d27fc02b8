// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/go-sigrok/lwla/transport"
	"github.com/go-sigrok/lwla/wire"
)

// fakeStatus scripts one reply to a capture status poll.
type fakeStatus struct {
	fill uint32 // capture memory fill level
	dur  uint64 // elapsed capture time in ms
	raw  uint32 // raw status register bits
}

// fakeXport emulates the command protocol of a device well enough to
// drive complete capture sessions. Transfers complete synchronously
// from within Submit. Status polls consume the statuses script (the
// last entry repeats), capture length reads return memFill and
// capture memory reads are served from mem.
type fakeXport struct {
	mu sync.Mutex

	mem16 bool // 16-channel personality

	regs  map[uint16]uint32 // last written register values
	lregs map[uint16]uint64 // committed long registers

	laddr uint32 // long register access shadow
	llo   uint32
	lhi   uint32

	statuses []fakeStatus
	cur      fakeStatus // status served by the 16-channel read sequence
	memFill  uint32     // capture length reply
	mem      []uint64   // capture memory, indexed by device address

	emptyIn int  // forced empty inbound completions
	gone    bool // complete all transfers as disconnected

	reply  []byte
	errOut error // injected submission failure

	closed bool
}

func newFakeXport(mem16 bool) *fakeXport {
	return &fakeXport{
		mem16: mem16,
		regs:  make(map[uint16]uint32),
		lregs: make(map[uint16]uint64),
	}
}

func (f *fakeXport) SubmitOut(x *transport.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.errOut != nil {
		return f.errOut
	}
	if f.gone {
		f.complete(x, transport.StatusGone)
		return nil
	}

	buf := x.Buf[:x.Len]
	switch cmd := u16(buf, 0); cmd {
	case wire.CmdWriteReg:
		f.writeReg(u16(buf, 1), uint32(u16(buf, 2))|uint32(u16(buf, 3))<<16)

	case wire.CmdReadReg:
		f.reply = binary.LittleEndian.AppendUint32(nil, f.readReg(u16(buf, 1)))

	case wire.CmdReadLRegs:
		f.reply = f.readLRegs(u16(buf, 1), u16(buf, 2))

	case wire.CmdWriteLRegs:
		n := int(u16(buf, 2))
		for i := 0; i < n; i++ {
			lo := uint64(u16(buf, 3+4*i)) | uint64(u16(buf, 4+4*i))<<16
			hi := uint64(u16(buf, 5+4*i)) | uint64(u16(buf, 6+4*i))<<16
			f.lregs[uint16(i)] = hi<<32 | lo
		}

	case wire.CmdReadMem36:
		addr := uint32(u16(buf, 1)) | uint32(u16(buf, 2))<<16
		cnt := uint32(u16(buf, 3)) | uint32(u16(buf, 4))<<16
		f.reply = pack36(f.memWords(addr, cnt))

	case wire.CmdReadMem32:
		addr := uint32(u16(buf, 1)) | uint32(u16(buf, 2))<<16
		cnt := uint32(u16(buf, 3)) | uint32(u16(buf, 4))<<16
		var p []byte
		for _, w := range f.memWords(addr, cnt) {
			p = binary.LittleEndian.AppendUint32(p, uint32(w))
		}
		f.reply = p
	}

	f.complete(x, transport.StatusCompleted)
	return nil
}

func (f *fakeXport) SubmitIn(x *transport.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gone {
		x.Actual = 0
		f.complete(x, transport.StatusGone)
		return nil
	}
	if f.emptyIn > 0 {
		f.emptyIn--
		x.Actual = 0
		f.complete(x, transport.StatusCompleted)
		return nil
	}

	x.Actual = copy(x.Buf, f.reply)
	f.reply = nil
	f.complete(x, transport.StatusCompleted)
	return nil
}

func (f *fakeXport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeXport) complete(x *transport.Transfer, st transport.Status) {
	x.Status = st
	x.Err = nil
	if st == transport.StatusGone {
		x.Err = io.ErrClosedPipe
	}
	x.Done(x)
}

func (f *fakeXport) disconnect() {
	f.mu.Lock()
	f.gone = true
	f.mu.Unlock()
}

func (f *fakeXport) writeReg(reg uint16, val uint32) {
	f.regs[reg] = val
	if f.mem16 {
		return
	}
	switch reg {
	case regLongAddr:
		f.laddr = val
	case regLongLow:
		f.llo = val
	case regLongHigh:
		f.lhi = val
	case regLongStrobe:
		f.lregs[uint16(f.laddr)] = uint64(f.lhi)<<32 | uint64(f.llo)
	}
}

func (f *fakeXport) readReg(reg uint16) uint32 {
	if f.mem16 {
		switch reg {
		case reg16CapCount:
			return f.memFill
		case reg16CapCtrl:
			f.cur = f.nextStatus()
			return f.cur.raw
		case reg16MemWrPtr:
			return f.cur.fill
		case reg16Duration:
			return uint32(f.cur.dur)
		}
		return f.regs[reg]
	}
	if reg == regMemFill {
		return f.memFill
	}
	return f.regs[reg]
}

func (f *fakeXport) readLRegs(addr, count uint16) []byte {
	vals := make([]uint64, count)
	if addr == readLRegsStart && count == readLRegsCount {
		st := f.nextStatus()
		vals[lregMemFill-readLRegsStart] = uint64(st.fill)
		vals[lregDuration-readLRegsStart] = st.dur
		vals[lregStatus-readLRegsStart] = uint64(st.raw)
	} else {
		for i := range vals {
			vals[i] = f.lregs[addr+uint16(i)]
		}
	}
	var p []byte
	for _, v := range vals {
		p = binary.LittleEndian.AppendUint64(p, v)
	}
	return p
}

func (f *fakeXport) nextStatus() fakeStatus {
	if len(f.statuses) == 0 {
		return fakeStatus{}
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st
}

func (f *fakeXport) memWords(addr, count uint32) []uint64 {
	words := make([]uint64, count)
	for i := range words {
		if j := int(addr) + i; j < len(f.mem) {
			words[i] = f.mem[j]
		}
	}
	return words
}

func u16(p []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(p[2*i:])
}

// pack36 packs 36-bit device words the way the device serves memory
// reads: slices of 8 words as nine 32-bit words, the ninth collecting
// the eight high nibbles.
func pack36(words []uint64) []byte {
	n := (len(words) + 7) / 8 * 8
	ws := make([]uint64, n)
	copy(ws, words)

	p := make([]byte, 0, wire.PackedLen36(len(words)))
	for s := 0; s < n; s += 8 {
		var nib uint32
		for si := 0; si < 8; si++ {
			w := ws[s+si]
			p = binary.LittleEndian.AppendUint32(p, uint32(w))
			nib |= uint32(w>>32&0xF) << (28 - 4*si)
		}
		p = binary.LittleEndian.AppendUint32(p, nib)
	}
	return p
}

// fakeSink records the session output for inspection.
type fakeSink struct {
	mu       sync.Mutex
	rate     uint64
	headers  int
	data     []byte
	units    []int  // unit size of each packet
	triggers []int  // data length at each trigger mark
	ends     int

	errHeader  error
	errSamples error
	errEnd     error
}

func (snk *fakeSink) Header(samplerate uint64) error {
	snk.mu.Lock()
	defer snk.mu.Unlock()
	snk.rate = samplerate
	snk.headers++
	return snk.errHeader
}

func (snk *fakeSink) LogicSamples(data []byte, unitSize int) error {
	snk.mu.Lock()
	defer snk.mu.Unlock()
	snk.data = append(snk.data, data...)
	snk.units = append(snk.units, unitSize)
	return snk.errSamples
}

func (snk *fakeSink) Trigger() error {
	snk.mu.Lock()
	defer snk.mu.Unlock()
	snk.triggers = append(snk.triggers, len(snk.data))
	return nil
}

func (snk *fakeSink) End() error {
	snk.mu.Lock()
	defer snk.mu.Unlock()
	snk.ends++
	return snk.errEnd
}
