// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "golang.org/x/xerrors"

// Capture status flag bits. The bit positions follow the 16-channel
// model's status register; the 36-bit models shift their raw status
// left by one on decode so the positions line up.
const (
	StatusCapturing uint32 = 1 << 1 // sampling in progress
	StatusTriggered uint32 = 1 << 4 // trigger event seen
	StatusMemAvail  uint32 = 1 << 5 // capture memory not yet full
)

// Status is the decoded state of a capture status poll.
type Status struct {
	Fill     uint32 // capture memory fill level, in device words
	Duration uint64 // elapsed capture time in ms, uncorrected
	Flags    uint32 // StatusCapturing, StatusTriggered, StatusMemAvail
}

// statusLRegs is the number of long registers returned by the status
// poll of the 36-bit models: fill level, one unused register, elapsed
// duration, current channel state and the status flags.
const statusLRegs = 5

// DecodeStatus decodes the bulk long-register reply to a status poll
// on the 36-bit memory models.
func DecodeStatus(p []byte) (Status, error) {
	if len(p) != statusLRegs*8 {
		return Status{}, xerrors.Errorf("wire: status reply size %d does not match expected size %d",
			len(p), statusLRegs*8)
	}
	fill, _ := LongReg(p, 0)
	dur, _ := LongReg(p, 2)
	raw, _ := LongReg(p, 4)
	return Status{
		Fill:     uint32(fill),
		Duration: dur,
		Flags:    uint32(raw&0x3F) << 1,
	}, nil
}
