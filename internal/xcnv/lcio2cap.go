// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"unsafe"

	"github.com/go-sigrok/lwla/internal/cformat"
	"go-hep.org/x/hep/lcio"
)

// LCIO2CAP converts the LCIO events read from r back to a logic
// capture written to w.
func LCIO2CAP(w io.Writer, r *lcio.Reader, freq int, msg *log.Logger) error {
	var (
		cap cformat.Capture
		i   = 0
	)

	for r.Next() {
		if i%freq == 0 {
			msg.Printf("processing evt %d...", i)
		}
		evt := r.Event()
		raw := evt.Get("LWLA_RAW").(*lcio.GenericObject).Data[0].I32s
		buf := bytesFromI32s(raw)
		n := binary.LittleEndian.Uint32(buf)
		cap.Samples = append(cap.Samples, buf[8:8+n]...)

		if i == 0 {
			trg := evt.Get("LWLA_TRG").(*lcio.GenericObject).Data[0].I32s
			cap.Triggers = append(cap.Triggers, triggersFromI32s(trg)...)
		}
		i++
	}

	if i == 0 {
		return fmt.Errorf("could not find capture events")
	}

	hdr := r.RunHeader()
	rate := hdr.Params.Ints["Samplerate"]
	cap.Header = cformat.Header{
		Samplerate: uint64(uint32(rate[0])) | uint64(uint32(rate[1]))<<32,
		Channels:   uint8(hdr.Params.Ints["Channels"][0]),
		UnitSize:   uint8(hdr.Params.Ints["UnitSize"][0]),
	}

	err := cformat.NewEncoder(w).Encode(&cap)
	if err != nil {
		return fmt.Errorf("could not encode capture: %w", err)
	}

	return nil
}

func bytesFromI32s(raw []int32) []byte {
	n := len(raw)
	if n == 0 {
		return nil
	}
	const i32sz = 4
	ptr := (*byte)(unsafe.Pointer(&raw[0]))
	sli := unsafe.Slice(ptr, i32sz*n)
	return sli
}

func triggersFromI32s(i32s []int32) []uint64 {
	trgs := make([]uint64, 0, len(i32s)/2)
	for i := 0; i+1 < len(i32s); i += 2 {
		trgs = append(trgs,
			uint64(uint32(i32s[i]))|uint64(uint32(i32s[i+1]))<<32,
		)
	}
	return trgs
}
