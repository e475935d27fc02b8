// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lwla-daq drives a LWLA capture in stand-alone mode.
package main // import "github.com/go-sigrok/lwla/cmd/lwla-daq"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sigrok/lwla/acq"
	"github.com/go-sigrok/lwla/internal/cformat"
	"github.com/go-sigrok/lwla/transport"
	"github.com/go-sigrok/lwla/wire"
)

func main() {
	var (
		runnbr  = flag.Int("run", -1, "run number")
		model   = flag.String("model", "LWLA1034", "device model")
		rate    = flag.Uint64("rate", 100e6, "samplerate (Hz)")
		samples = flag.Uint64("samples", 0, "sample count limit")
		msec    = flag.Uint64("msec", 0, "capture duration limit (ms)")
		odir    = flag.String("o", "/var/run/lwla", "output dir")
	)

	log.SetPrefix("lwla-daq: ")
	log.SetFlags(0)

	flag.Parse()

	log.Printf("run=%d model=%s rate=%d samples=%d msec=%d",
		*runnbr, *model, *rate, *samples, *msec,
	)

	switch {
	case *runnbr < 0:
		log.Fatalf("invalid run number value")
	case *samples == 0 && *msec == 0:
		log.Fatalf("missing sample count or duration limit")
	}

	err := run(uint32(*runnbr), *model, *rate, *samples, *msec, *odir)
	if err != nil {
		log.Fatalf("could not run lwla-daq: %+v", err)
	}
}

func run(run uint32, model string, rate, samples, msec uint64, odir string) error {
	prof, err := wire.ProfileByName(model)
	if err != nil {
		return fmt.Errorf("could not find model %q: %w", model, err)
	}

	f, err := os.Create(filepath.Join(odir, capName(run)))
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer f.Close()

	xport, err := transport.OpenFTDI(wire.USBVendorID, wire.USBProductID)
	if err != nil {
		return fmt.Errorf("could not open LWLA device: %w", err)
	}
	defer xport.Close()

	opts := []acq.Option{
		acq.WithSamplerate(rate),
	}
	if samples != 0 {
		opts = append(opts, acq.WithLimitSamples(samples))
	}
	if msec != 0 {
		opts = append(opts, acq.WithLimitDuration(time.Duration(msec)*time.Millisecond))
	}

	sink := cformat.NewSink(f, prof.Channels, prof.UnitSize)
	dev, err := acq.New(xport, model, sink, opts...)
	if err != nil {
		return fmt.Errorf("could not initialize LWLA device: %w", err)
	}
	defer dev.Close()

	log.Printf("starting capture...")
	err = dev.Start()
	if err != nil {
		return fmt.Errorf("could not start capture: %w", err)
	}

	err = dev.Wait()
	if err != nil {
		return fmt.Errorf("could not run capture: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}

	return nil
}

func capName(run uint32) string {
	return fmt.Sprintf("lwla_run%06d.cap", run)
}
