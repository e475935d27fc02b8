// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "golang.org/x/xerrors"

const (
	kHz = 1000
	mHz = 1000 * 1000
)

// Profile describes the capture geometry and timing of one device
// model. Profiles are immutable; all fields are fixed hardware
// properties.
type Profile struct {
	Name     string
	Channels int // number of logic channels
	UnitSize int // bytes per sample unit in emitted packets

	MemoryDepth   uint32 // capture memory size, in device words
	ReadStartAddr uint32 // first valid capture memory address
	ReadChunkLen  uint32 // device words per memory read request

	BaseClock   uint64   // clock divider reference, in Hz
	Samplerates []uint64 // supported samplerates, descending
}

// LWLA1034 has 34 channels backed by 256k x 36 bit capture memory.
// Samplerates above the 100 MHz base clock require the clock boost.
var LWLA1034 = &Profile{
	Name:          "LWLA1034",
	Channels:      34,
	UnitSize:      (34 + 7) / 8,
	MemoryDepth:   256 * 1024,
	ReadStartAddr: 4,
	ReadChunkLen:  28 * 8,
	BaseClock:     100 * mHz,
	Samplerates: []uint64{
		125 * mHz, 100 * mHz,
		50 * mHz, 20 * mHz, 10 * mHz,
		5 * mHz, 2 * mHz, 1 * mHz,
		500 * kHz, 200 * kHz, 100 * kHz,
		50 * kHz, 20 * kHz, 10 * kHz,
		5 * kHz, 2 * kHz, 1 * kHz,
		500, 200, 100,
	},
}

// LWLA1016 has 16 channels backed by 256k x 32 bit capture memory.
var LWLA1016 = &Profile{
	Name:          "LWLA1016",
	Channels:      16,
	UnitSize:      (16 + 7) / 8,
	MemoryDepth:   256 * 1024,
	ReadStartAddr: 2,
	ReadChunkLen:  250,
	BaseClock:     100 * mHz,
	Samplerates: []uint64{
		100 * mHz,
		50 * mHz, 20 * mHz, 10 * mHz,
		5 * mHz, 2 * mHz, 1 * mHz,
		500 * kHz, 200 * kHz, 100 * kHz,
		50 * kHz, 20 * kHz, 10 * kHz,
		5 * kHz, 2 * kHz, 1 * kHz,
		500, 200, 100,
	},
}

// Profiles lists the supported device models.
var Profiles = []*Profile{LWLA1034, LWLA1016}

// ProfileByName returns the profile for the given model name.
func ProfileByName(name string) (*Profile, error) {
	for _, p := range Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, xerrors.Errorf("wire: unknown device model %q", name)
}

// Supports reports whether rate is an exact entry of the profile's
// samplerate table.
func (p *Profile) Supports(rate uint64) bool {
	for _, r := range p.Samplerates {
		if r == rate {
			return true
		}
	}
	return false
}

// Divider returns the clock divider count for the given samplerate
// and whether the clock boost is needed. Rates above the base clock
// bypass the divider and run the logic at a boosted clock instead.
func (p *Profile) Divider(rate uint64) (count uint32, boost bool, err error) {
	if !p.Supports(rate) {
		return 0, false, xerrors.Errorf("wire: samplerate %d not supported by %s", rate, p.Name)
	}
	if rate > p.BaseClock {
		return 0, true, nil
	}
	return uint32(p.BaseClock/rate - 1), false, nil
}

// USB identifiers shared by all device models.
const (
	USBVendorID  uint16 = 0x2961
	USBProductID uint16 = 0x6689
)

// Hard upper bounds applied when no explicit capture limit is set.
const (
	MaxLimitSamples = uint64(1) << 48
	MaxLimitMsec    = uint64(1) << 32
)
