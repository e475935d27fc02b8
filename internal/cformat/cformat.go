// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cformat describes and handles logic capture data in the
// LWLA capture container format.
//
// A capture is a stream of tagged blocks protected by a trailing
// CRC-16 checksum: a header block carrying the samplerate and channel
// geometry, any number of logic data blocks and trigger markers, and
// a trailer.
package cformat // import "github.com/go-sigrok/lwla/internal/cformat"

// Version of the capture container format.
const Version = 1

const (
	capHeader  = 0xc1 // capture header marker
	capLogic   = 0xc2 // logic data block marker
	capTrigger = 0xc3 // trigger marker

	capTrailer = 0xa1 // capture trailer marker
)

// Header describes the geometry of a capture.
type Header struct {
	Samplerate uint64 // samples per second
	Channels   uint8  // number of logic channels
	UnitSize   uint8  // bytes per sample unit
}

// Capture holds a complete logic capture.
type Capture struct {
	Header   Header
	Samples  []byte   // raw logic data, len is a multiple of UnitSize
	Triggers []uint64 // sample indices of trigger marks
}

// NumSamples returns the number of sample units in the capture.
func (cap *Capture) NumSamples() uint64 {
	if cap.Header.UnitSize == 0 {
		return 0
	}
	return uint64(len(cap.Samples)) / uint64(cap.Header.UnitSize)
}

// Sample returns the logic levels of sample unit i as a bit mask.
func (cap *Capture) Sample(i uint64) uint64 {
	var v uint64
	unit := uint64(cap.Header.UnitSize)
	raw := cap.Samples[i*unit : (i+1)*unit]
	for k, b := range raw {
		v |= uint64(b) << (8 * k)
	}
	return v
}
