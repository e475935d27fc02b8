// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

type rleState uint8

const (
	rleData rleState = iota // next word carries a sample
	rleLen                  // next word extends the current run length
)

// Decoder expands the run-length code used for captured samples on
// the 36-bit memory models. Each data word holds a sample in the low
// channel bits, one bit selecting a run of one or two, and a flag bit
// announcing that the following word extends the run length. Decoder
// state survives across transfer chunks, so a run or its length
// extension may straddle a chunk boundary.
type Decoder struct {
	sample uint64
	runLen uint64

	mask  uint64 // sample bits
	flag  uint64 // length-extension flag bit
	nchan uint

	state rleState
}

// NewDecoder returns a run-length decoder for words carrying nchan
// sample bits.
func NewDecoder(nchan int) *Decoder {
	return &Decoder{
		mask:  1<<uint(nchan) - 1,
		flag:  1 << uint(nchan+1),
		nchan: uint(nchan),
	}
}

// Reset discards all decoder state, ready for a new capture.
func (dec *Decoder) Reset() {
	dec.sample = 0
	dec.runLen = 0
	dec.state = rleData
}

// Feed consumes one capture memory word.
func (dec *Decoder) Feed(word uint64) {
	switch dec.state {
	case rleData:
		dec.sample = word & dec.mask
		dec.runLen = (word>>dec.nchan)&1 + 1
		if word&dec.flag != 0 {
			dec.state = rleLen
		}
	case rleLen:
		dec.runLen += word << 1
		dec.state = rleData
	}
}

// Run reports the current sample value and the number of repetitions
// not yet consumed. The count grows when a length-extension word is
// fed; the sample value is stable for the whole run.
func (dec *Decoder) Run() (sample, n uint64) {
	return dec.sample, dec.runLen
}

// Consume removes n repetitions from the current run.
// n must not exceed the count reported by Run.
func (dec *Decoder) Consume(n uint64) {
	dec.runLen -= n
}
