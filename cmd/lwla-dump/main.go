// Copyright 2023 The go-sigrok Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// lwla-dump decodes and displays LWLA capture files.
//
// Usage: lwla-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> lwla-dump ./lwla_run000042.cap
//	=== LWLA capture ===
//	Samplerate:    100000000
//	Channels:             34
//	Unit size:             5
//	Samples:               3
//	Triggers:              1
//	  sample[       0] 0004030201
//	  sample[       1] 0114131211
//	  sample[       2] 0224232221
//	  trigger @       1
package main // import "github.com/go-sigrok/lwla/cmd/lwla-dump"

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-sigrok/lwla/internal/cformat"
)

func main() {
	log.SetPrefix("lwla-dump: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`lwla-dump decodes and displays LWLA capture files.

Usage: lwla-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> lwla-dump ./lwla_run000042.cap
 === LWLA capture ===
 Samplerate:    100000000
 Channels:             34
 Unit size:             5
 Samples:               3
 Triggers:              1
   sample[       0] 0004030201
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input capture file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	var cap cformat.Capture
	err = cformat.NewDecoder(f).Decode(&cap)
	if err != nil {
		return fmt.Errorf("could not decode capture: %w", err)
	}

	fmt.Fprintf(wbuf, "=== LWLA capture ===\n")
	fmt.Fprintf(wbuf, "Samplerate: % 12d\n", cap.Header.Samplerate)
	fmt.Fprintf(wbuf, "Channels:   % 12d\n", cap.Header.Channels)
	fmt.Fprintf(wbuf, "Unit size:  % 12d\n", cap.Header.UnitSize)
	fmt.Fprintf(wbuf, "Samples:    % 12d\n", cap.NumSamples())
	fmt.Fprintf(wbuf, "Triggers:   % 12d\n", len(cap.Triggers))

	for i, n := uint64(0), cap.NumSamples(); i < n; i++ {
		fmt.Fprintf(wbuf, "  sample[% 8d] %0*x\n",
			i, int(cap.Header.UnitSize)*2, cap.Sample(i),
		)
	}
	for _, trg := range cap.Triggers {
		fmt.Fprintf(wbuf, "  trigger @% 8d\n", trg)
	}

	return nil
}
