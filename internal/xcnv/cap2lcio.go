// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"unsafe"

	"github.com/go-sigrok/lwla/internal/cformat"
	"go-hep.org/x/hep/lcio"
)

// evtUnits is the number of sample units carried by one LCIO event.
const evtUnits = 10000

// CAP2LCIO converts the logic capture read from dec to a stream of
// LCIO events written to w. Sample data goes to the "LWLA_RAW"
// collection, trigger marks to "LWLA_TRG" on the first event.
func CAP2LCIO(w *lcio.Writer, dec *cformat.Decoder, run int32, msg *log.Logger) error {
	var cap cformat.Capture
	err := dec.Decode(&cap)
	if err != nil {
		return fmt.Errorf("could not decode capture: %w", err)
	}

	err = w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: run,
		Detector:  "LWLA",
		Descr:     "",
		Params: lcio.Params{
			Ints: map[string][]int32{
				"Samplerate": {
					int32(cap.Header.Samplerate & 0xFFFFFFFF),
					int32(cap.Header.Samplerate >> 32),
				},
				"Channels": {int32(cap.Header.Channels)},
				"UnitSize": {int32(cap.Header.UnitSize)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not write run header: %w", err)
	}

	var (
		buf  = new(bytes.Buffer)
		raw  = &lcio.GenericObject{Data: []lcio.GenericObjectData{{}}}
		trg  = &lcio.GenericObject{Data: []lcio.GenericObjectData{{}}}
		unit = uint64(cap.Header.UnitSize)

		nevt = (cap.NumSamples() + evtUnits - 1) / evtUnits
	)
	if nevt == 0 {
		// carry the trigger marks of an otherwise empty capture.
		nevt = 1
	}

	for i := uint64(0); i < nevt; i++ {
		if i%100 == 0 {
			msg.Printf("processing evt %d...", i)
		}
		beg := i * evtUnits * unit
		end := beg + evtUnits*unit
		if end > uint64(len(cap.Samples)) {
			end = uint64(len(cap.Samples))
		}

		evt := lcio.Event{
			RunNumber:   run,
			EventNumber: int32(i),
			TimeStamp:   int64(i * evtUnits),
			Detector:    "LWLA",
		}
		raw.Data[0].I32s = i32sFrom(buf, cap.Samples[beg:end])
		evt.Add("LWLA_RAW", raw)

		if i == 0 {
			trg.Data[0].I32s = i32sFromTriggers(cap.Triggers)
			evt.Add("LWLA_TRG", trg)
		}

		err = w.WriteEvent(&evt)
		if err != nil {
			return fmt.Errorf("could not write capture event: %w", err)
		}
	}

	return nil
}

func i32sFrom(w *bytes.Buffer, data []byte) []int32 {
	const i32sz = 4

	w.Reset()
	_, _ = w.Write(make([]byte, 2*i32sz))
	_, _ = w.Write(data)

	mod := len(w.Bytes()) % i32sz
	if mod != 0 {
		// align to an even number of int32s
		_, _ = w.Write(make([]byte, i32sz-mod))
	}

	raw := w.Bytes()
	// we use LittleEndian here to match the byte order of the raw
	// capture stream on the wire.
	binary.LittleEndian.PutUint32(raw[0*i32sz:], uint32(len(data)))
	binary.LittleEndian.PutUint32(raw[1*i32sz:], uint32(len(raw)))

	ptr := (*int32)(unsafe.Pointer(&raw[0]))
	sli := unsafe.Slice(ptr, len(raw)/i32sz)

	return sli
}

func i32sFromTriggers(trgs []uint64) []int32 {
	i32s := make([]int32, 0, 2*len(trgs))
	for _, trg := range trgs {
		i32s = append(i32s,
			int32(trg&0xFFFFFFFF),
			int32(trg>>32),
		)
	}
	return i32s
}
